package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordFailureCapsReasons(t *testing.T) {
	stats := &ImportStats{}

	for i := 0; i < 25; i++ {
		stats.RecordFailure(fmt.Sprintf("job-%d", i), errors.New("value too long"))
	}

	assert.Equal(t, 25, stats.FailedJobs)
	assert.Len(t, stats.FailureReasons, MaxFailureReasons)
	assert.Equal(t, "job-0: value too long", stats.FailureReasons[0])
	assert.Equal(t, "job-19: value too long", stats.FailureReasons[MaxFailureReasons-1])
}

func TestTotalImported(t *testing.T) {
	stats := &ImportStats{NewJobs: 3, UpdatedJobs: 4, FailedJobs: 2}
	assert.Equal(t, 7, stats.TotalImported())
}

func TestStatsToLog(t *testing.T) {
	stats := &ImportStats{
		TotalFetched: 10,
		NewJobs:      6,
		UpdatedJobs:  3,
		FailedJobs:   1,
	}
	stats.FailureReasons = append(stats.FailureReasons, "job-9: boom")

	entry := stats.Log("https://jobs.example.com/feed")
	require.NotNil(t, entry)
	assert.Equal(t, "https://jobs.example.com/feed", entry.FeedURL)
	assert.Equal(t, 10, entry.TotalFetched)
	assert.Equal(t, 9, entry.TotalImported)
	assert.Equal(t, 6, entry.NewJobs)
	assert.Equal(t, 3, entry.UpdatedJobs)
	assert.Equal(t, 1, entry.FailedJobs)
	assert.Equal(t, []string{"job-9: boom"}, entry.FailureReasons)
}

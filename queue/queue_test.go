package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient() *Client {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return New(nil, "job-import", 3, 2*time.Second, logger)
}

func TestBackoffSchedule(t *testing.T) {
	c := testClient()

	assert.Equal(t, 2*time.Second, c.BackoffFor(1))
	assert.Equal(t, 4*time.Second, c.BackoffFor(2))
	assert.Equal(t, 8*time.Second, c.BackoffFor(3))
}

func TestBackoffClampsLowAttempts(t *testing.T) {
	c := testClient()

	assert.Equal(t, 2*time.Second, c.BackoffFor(0))
	assert.Equal(t, 2*time.Second, c.BackoffFor(-5))
}

func TestNewDefaults(t *testing.T) {
	logger := logrus.New()
	c := New(nil, "job-import", 0, 0, logger)

	assert.Equal(t, 1, c.maxAttempts)
	assert.Equal(t, 2*time.Second, c.backoffBase)
}

func TestQueueKeys(t *testing.T) {
	c := testClient()

	assert.Equal(t, "job-import:waiting", c.waitingKey())
	assert.Equal(t, "job-import:active", c.activeKey())
	assert.Equal(t, "job-import:delayed", c.delayedKey())
	assert.Equal(t, "job-import:dead", c.deadKey())
}

func TestJobPayloadRoundTrip(t *testing.T) {
	enqueued := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	job := Job{
		Token:      "b5c0e0a4-1111-4222-8333-444455556666",
		FeedURL:    "https://jobs.example.com/feed",
		Attempt:    2,
		EnqueuedAt: enqueued,
	}

	payload, err := json.Marshal(job)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"feedUrl":"https://jobs.example.com/feed"`)

	var decoded Job
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, job, decoded)
}

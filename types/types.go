// Package types contains shared types used across the job import backend
package types

import (
	"encoding/json"
	"time"
)

// Posting is a canonical job listing. Identity is (SourceURL, ExternalID);
// every other field is overwritten on each re-sighting of the same identity.
type Posting struct {
	ID          int64           `json:"id,omitempty"`
	SourceURL   string          `json:"sourceUrl"`
	ExternalID  string          `json:"externalId"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Company     string          `json:"company"`
	Location    string          `json:"location"`
	Link        string          `json:"link"`
	PublishedAt *time.Time      `json:"publishedAt,omitempty"`
	Raw         json.RawMessage `json:"raw,omitempty"` // original feed item, kept for forensic replay
	CreatedAt   time.Time       `json:"createdAt,omitempty"`
	UpdatedAt   time.Time       `json:"updatedAt,omitempty"`
}

// ImportLog is an immutable summary of one worker attempt at one import job.
type ImportLog struct {
	ID             int64     `json:"id"`
	FeedURL        string    `json:"feedUrl"`
	TotalFetched   int       `json:"totalFetched"`
	TotalImported  int       `json:"totalImported"`
	NewJobs        int       `json:"newJobs"`
	UpdatedJobs    int       `json:"updatedJobs"`
	FailedJobs     int       `json:"failedJobs"`
	FailureReasons []string  `json:"failureReasons"`
	CreatedAt      time.Time `json:"createdAt"`
}

// MaxFailureReasons bounds the failure reason list stored per import log
// entry. The failed counter keeps counting past this cap.
const MaxFailureReasons = 20

// ImportStats accumulates per-run counters while a worker processes a feed.
type ImportStats struct {
	TotalFetched   int
	NewJobs        int
	UpdatedJobs    int
	FailedJobs     int
	FailureReasons []string
}

// RecordFailure increments the failed counter and appends a reason string
// until the reason list reaches MaxFailureReasons.
func (s *ImportStats) RecordFailure(externalID string, err error) {
	s.FailedJobs++
	if len(s.FailureReasons) < MaxFailureReasons {
		s.FailureReasons = append(s.FailureReasons, externalID+": "+err.Error())
	}
}

// TotalImported is the number of postings that reached the store, new or
// updated.
func (s *ImportStats) TotalImported() int {
	return s.NewJobs + s.UpdatedJobs
}

// Log converts accumulated stats into an ImportLog entry for the given feed.
func (s *ImportStats) Log(feedURL string) *ImportLog {
	return &ImportLog{
		FeedURL:        feedURL,
		TotalFetched:   s.TotalFetched,
		TotalImported:  s.TotalImported(),
		NewJobs:        s.NewJobs,
		UpdatedJobs:    s.UpdatedJobs,
		FailedJobs:     s.FailedJobs,
		FailureReasons: s.FailureReasons,
	}
}

// FeedSource is a configured syndication feed the importer watches.
type FeedSource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// QueueCounts reports the number of jobs in each queue state.
type QueueCounts struct {
	Waiting int64 `json:"waiting"`
	Active  int64 `json:"active"`
	Delayed int64 `json:"delayed"`
	Dead    int64 `json:"dead"`
}

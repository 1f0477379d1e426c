/*
Package importer executes queued feed-import jobs.

A Worker runs one job attempt end to end: fetch the raw feed, normalize it,
upsert every candidate, and write exactly one audit log entry. A Pool runs a
fixed number of workers pulling independently from the shared queue.
*/
package importer

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jobwire-io/job-import-backend/feed"
	"github.com/jobwire-io/job-import-backend/monitoring"
	"github.com/jobwire-io/job-import-backend/queue"
	"github.com/jobwire-io/job-import-backend/store"
	"github.com/jobwire-io/job-import-backend/types"
)

// Fetcher retrieves a raw feed payload.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// PostingStore persists normalized candidates idempotently.
type PostingStore interface {
	Upsert(ctx context.Context, p types.Posting) (store.Outcome, error)
}

// AuditLog appends import run summaries.
type AuditLog interface {
	Insert(ctx context.Context, entry *types.ImportLog) error
}

// Worker handles dequeued import jobs. All dependencies are injected; the
// worker holds no connection state of its own.
type Worker struct {
	fetcher  Fetcher
	postings PostingStore
	audit    AuditLog
	alerts   *monitoring.AlertManager
	logger   *logrus.Logger
}

// NewWorker constructs a Worker. alerts may be nil.
func NewWorker(fetcher Fetcher, postings PostingStore, audit AuditLog, alerts *monitoring.AlertManager, logger *logrus.Logger) *Worker {
	return &Worker{
		fetcher:  fetcher,
		postings: postings,
		audit:    audit,
		alerts:   alerts,
		logger:   logger,
	}
}

// Handle runs one attempt at one import job.
//
// A fetch failure (unreachable feed, non-2xx status, unparseable document)
// terminates the attempt with a single audit entry and a nil return; the
// queue does not retry a dead feed, the next scheduled cycle will. A
// returned error means an infrastructure fault interrupted the run before a
// reportable terminus; no audit entry is written and the queue retries
// under its backoff policy.
func (w *Worker) Handle(ctx context.Context, job queue.Job) error {
	start := time.Now()
	log := w.logger.WithFields(logrus.Fields{
		"token":    job.Token,
		"feed_url": job.FeedURL,
		"attempt":  job.Attempt,
	})
	log.Info("Processing import job")

	candidates, fetchErr := w.fetchAndNormalize(ctx, job.FeedURL)
	if fetchErr != nil {
		monitoring.RecordFeedFetch("failed", time.Since(start).Seconds())
		if w.alerts != nil {
			w.alerts.RecordFeedResult(job.FeedURL, false)
		}
		log.WithField("error", fetchErr.Error()).Warn("Feed fetch failed")

		entry := &types.ImportLog{
			FeedURL:        job.FeedURL,
			TotalFetched:   0,
			FailedJobs:     1,
			FailureReasons: []string{"Fetch error: " + fetchErr.Error()},
		}
		if err := w.audit.Insert(ctx, entry); err != nil {
			return err
		}
		monitoring.RecordImportRun("fetch_failed", time.Since(start).Seconds())
		return nil
	}

	monitoring.RecordFeedFetch("success", time.Since(start).Seconds())
	if w.alerts != nil {
		w.alerts.RecordFeedResult(job.FeedURL, true)
	}

	stats := types.ImportStats{TotalFetched: len(candidates)}
	for _, candidate := range candidates {
		outcome, err := w.postings.Upsert(ctx, candidate)
		if err != nil {
			var storeErr *store.StoreError
			if errors.As(err, &storeErr) {
				stats.RecordFailure(storeErr.ExternalID, storeErr.Err)
				continue
			}
			// Connectivity-level fault: abort the run and let the queue
			// retry. Idempotent upserts make the full re-run safe.
			return err
		}
		switch outcome {
		case store.OutcomeCreated:
			stats.NewJobs++
		case store.OutcomeUpdated:
			stats.UpdatedJobs++
		}
	}

	if err := w.audit.Insert(ctx, stats.Log(job.FeedURL)); err != nil {
		return err
	}

	monitoring.RecordPostings(stats.NewJobs, stats.UpdatedJobs, stats.FailedJobs)
	monitoring.RecordImportRun("completed", time.Since(start).Seconds())
	log.WithFields(logrus.Fields{
		"fetched":  stats.TotalFetched,
		"imported": stats.TotalImported(),
		"new":      stats.NewJobs,
		"updated":  stats.UpdatedJobs,
		"failed":   stats.FailedJobs,
		"duration": time.Since(start).String(),
	}).Info("Import job completed")
	return nil
}

// fetchAndNormalize collapses fetch and whole-document parse failures into
// one fetch-level error, per the job state machine.
func (w *Worker) fetchAndNormalize(ctx context.Context, feedURL string) ([]types.Posting, error) {
	payload, err := w.fetcher.Fetch(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	candidates, err := feed.Normalize(payload, feedURL)
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

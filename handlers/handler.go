/*
Package handlers provides the HTTP handlers of the job import backend.

The Handler struct carries all its dependencies explicitly, behind narrow
interfaces, so handlers are testable without live Postgres or Redis.
*/
package handlers

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/jobwire-io/job-import-backend/cache"
	"github.com/jobwire-io/job-import-backend/store"
	"github.com/jobwire-io/job-import-backend/types"
)

// AuditReader reads pages of the import audit log.
type AuditReader interface {
	List(ctx context.Context, p store.HistoryParams) ([]types.ImportLog, int64, error)
}

// PostingCounter reports how many postings a feed has produced.
type PostingCounter interface {
	CountBySource(ctx context.Context, sourceURL string) (int64, error)
}

// QueueClient is the queue surface the API consumes: enqueue for the
// trigger endpoint, counts for the status endpoint.
type QueueClient interface {
	EnqueueMany(ctx context.Context, feedURLs []string) (int, error)
	Counts(ctx context.Context) (types.QueueCounts, error)
}

// Pinger probes connectivity of a backing service.
type Pinger func(ctx context.Context) error

// Handler contains all service dependencies for HTTP handlers
type Handler struct {
	Audit        AuditReader
	Postings     PostingCounter
	Queue        QueueClient
	HistoryCache *cache.HistoryCache
	Feeds        []types.FeedSource
	DBPing       Pinger
	RedisPing    Pinger
	Logger       *logrus.Logger
}

// NewHandler creates a new handler instance with injected dependencies
func NewHandler(audit AuditReader, postings PostingCounter, q QueueClient, historyCache *cache.HistoryCache, feeds []types.FeedSource, dbPing, redisPing Pinger, logger *logrus.Logger) *Handler {
	return &Handler{
		Audit:        audit,
		Postings:     postings,
		Queue:        q,
		HistoryCache: historyCache,
		Feeds:        feeds,
		DBPing:       dbPing,
		RedisPing:    redisPing,
		Logger:       logger,
	}
}

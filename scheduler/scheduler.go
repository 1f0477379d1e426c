// Package scheduler wires up the cron job that periodically enqueues every
// configured feed for import.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Enqueuer submits import jobs for feed URLs.
type Enqueuer interface {
	EnqueueMany(ctx context.Context, feedURLs []string) (int, error)
}

// Scheduler wraps robfig/cron and manages the periodic enqueue loop.
type Scheduler struct {
	cron   *cron.Cron
	queue  Enqueuer
	feeds  []string
	spec   string
	logger *logrus.Logger
}

// New creates a Scheduler firing on the given cron spec (hourly by default).
func New(queue Enqueuer, feeds []string, spec string, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		queue:  queue,
		feeds:  feeds,
		spec:   spec,
		logger: logger,
	}
}

// Start registers the cron entry and starts the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.enqueueAll(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.logger.WithFields(logrus.Fields{
		"spec":  s.spec,
		"feeds": len(s.feeds),
	}).Info("Import scheduler started")
	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("Import scheduler stopped")
}

func (s *Scheduler) enqueueAll(ctx context.Context) {
	queued, err := s.queue.EnqueueMany(ctx, s.feeds)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"queued": queued,
			"error":  err.Error(),
		}).Error("Scheduled enqueue failed")
		return
	}
	s.logger.WithField("queued", queued).Info("Scheduled import cycle queued all feeds")
}

package importer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jobwire-io/job-import-backend/monitoring"
	"github.com/jobwire-io/job-import-backend/queue"
)

const (
	dequeueBlock    = 5 * time.Second
	promoteInterval = time.Second
)

// QueueClient is the queue surface the pool consumes.
type QueueClient interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, string, error)
	Ack(ctx context.Context, raw string) error
	Nack(ctx context.Context, job queue.Job, raw string) error
	PromoteDue(ctx context.Context) (int, error)
	Reclaim(ctx context.Context) (int, error)
}

// Pool runs a fixed number of workers, each pulling independently from the
// shared queue. No ordering is guaranteed across jobs; the store's
// uniqueness constraint is the only synchronization between workers.
type Pool struct {
	queue       QueueClient
	worker      *Worker
	concurrency int
	logger      *logrus.Logger

	wg   sync.WaitGroup
	quit chan struct{}
	once sync.Once
}

// NewPool constructs a worker pool with the given concurrency.
func NewPool(q QueueClient, worker *Worker, concurrency int, logger *logrus.Logger) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{
		queue:       q,
		worker:      worker,
		concurrency: concurrency,
		logger:      logger,
		quit:        make(chan struct{}),
	}
}

// Start reclaims orphaned deliveries from a previous crash, then launches
// the workers and the delayed-job promoter.
func (p *Pool) Start(ctx context.Context) {
	if reclaimed, err := p.queue.Reclaim(ctx); err != nil {
		p.logger.WithField("error", err.Error()).Error("Failed to reclaim orphaned jobs")
	} else if reclaimed > 0 {
		p.logger.WithField("reclaimed", reclaimed).Info("Requeued orphaned jobs from previous run")
	}

	monitoring.UpdateActiveWorkers(p.concurrency)
	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}

	p.wg.Add(1)
	go p.promote(ctx)

	p.logger.WithField("concurrency", p.concurrency).Info("Import worker pool started")
}

// Stop signals all workers and waits for in-flight jobs to finish. A job
// already dequeued runs to a terminal outcome; there is no mid-flight
// cancellation.
func (p *Pool) Stop() {
	p.once.Do(func() { close(p.quit) })
	p.wg.Wait()
	monitoring.UpdateActiveWorkers(0)
	p.logger.Info("Import worker pool stopped")
}

func (p *Pool) run(ctx context.Context, workerID int) {
	defer p.wg.Done()
	log := p.logger.WithField("worker_id", workerID)
	log.Info("Import worker started")

	for {
		select {
		case <-p.quit:
			log.Info("Import worker stopping")
			return
		case <-ctx.Done():
			return
		default:
		}

		job, raw, err := p.queue.Dequeue(ctx, dequeueBlock)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithField("error", err.Error()).Error("Dequeue failed")
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		if err := p.worker.Handle(ctx, *job); err != nil {
			log.WithFields(logrus.Fields{
				"token":    job.Token,
				"feed_url": job.FeedURL,
				"error":    err.Error(),
			}).Error("Import job failed, returning to queue")
			if nackErr := p.queue.Nack(ctx, *job, raw); nackErr != nil {
				log.WithField("error", nackErr.Error()).Error("Failed to nack job")
			}
			continue
		}

		if err := p.queue.Ack(ctx, raw); err != nil {
			log.WithField("error", err.Error()).Error("Failed to ack job")
		}
	}
}

// promote periodically returns due delayed jobs to the waiting list.
func (p *Pool) promote(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(promoteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.quit:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.queue.PromoteDue(ctx); err != nil && ctx.Err() == nil {
				p.logger.WithField("error", err.Error()).Error("Failed to promote delayed jobs")
			}
		}
	}
}

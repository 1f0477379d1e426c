/*
Package queue implements the durable import job queue on Redis.

One job carries one feed URL. Delivery is at-least-once: a job moves from
the waiting list to the active list atomically on dequeue, and is only
removed from the active list when the worker acks or nacks it. A process
crash leaves the payload in the active list, from where Reclaim returns it
to waiting on the next startup.

Failed jobs retry with exponential backoff through a delayed sorted set
(score = promotion time in unix milliseconds) until the attempt budget is
exhausted, after which they land on the dead list for operator inspection.
*/
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jobwire-io/job-import-backend/types"
)

// Job is one unit of queued import work. Token is queue-level identity
// only: two jobs for the same feed URL may coexist, which is safe because
// posting writes are idempotent.
type Job struct {
	Token      string    `json:"token"`
	FeedURL    string    `json:"feedUrl"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// Client is the queue handle shared by producers (trigger endpoint,
// scheduler) and the worker pool.
type Client struct {
	rdb         *redis.Client
	name        string
	maxAttempts int
	backoffBase time.Duration
	logger      *logrus.Logger
}

// New constructs a queue client. maxAttempts bounds deliveries per job;
// backoffBase seeds the exponential retry delay.
func New(rdb *redis.Client, name string, maxAttempts int, backoffBase time.Duration, logger *logrus.Logger) *Client {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if backoffBase <= 0 {
		backoffBase = 2 * time.Second
	}
	return &Client{
		rdb:         rdb,
		name:        name,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
		logger:      logger,
	}
}

func (c *Client) waitingKey() string { return c.name + ":waiting" }
func (c *Client) activeKey() string  { return c.name + ":active" }
func (c *Client) delayedKey() string { return c.name + ":delayed" }
func (c *Client) deadKey() string    { return c.name + ":dead" }

// Enqueue submits one import job for the feed URL.
func (c *Client) Enqueue(ctx context.Context, feedURL string) (Job, error) {
	job := Job{
		Token:      uuid.NewString(),
		FeedURL:    feedURL,
		Attempt:    0,
		EnqueuedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return Job{}, fmt.Errorf("marshal job: %w", err)
	}
	if err := c.rdb.LPush(ctx, c.waitingKey(), payload).Err(); err != nil {
		return Job{}, fmt.Errorf("enqueue %s: %w", feedURL, err)
	}
	return job, nil
}

// EnqueueMany submits one job per feed URL and returns how many were
// queued. A failure partway through reports the count queued so far.
func (c *Client) EnqueueMany(ctx context.Context, feedURLs []string) (int, error) {
	for i, url := range feedURLs {
		if _, err := c.Enqueue(ctx, url); err != nil {
			return i, err
		}
	}
	return len(feedURLs), nil
}

// Dequeue blocks up to the given timeout for a job, moving its payload
// atomically from waiting to active. It returns (nil, "", nil) when no job
// arrived within the timeout.
//
// The raw payload is handed back alongside the job; Ack and Nack need the
// exact bytes to remove the entry from the active list.
func (c *Client) Dequeue(ctx context.Context, timeout time.Duration) (*Job, string, error) {
	raw, err := c.rdb.BLMove(ctx, c.waitingKey(), c.activeKey(), "RIGHT", "LEFT", timeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("dequeue: %w", err)
	}

	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		// Unparseable payloads cannot be retried; park them for inspection.
		c.rdb.LRem(ctx, c.activeKey(), 1, raw)
		c.rdb.LPush(ctx, c.deadKey(), raw)
		return nil, "", fmt.Errorf("decode job payload: %w", err)
	}
	return &job, raw, nil
}

// Ack marks the delivery handled and removes it from the active list.
func (c *Client) Ack(ctx context.Context, raw string) error {
	if err := c.rdb.LRem(ctx, c.activeKey(), 1, raw).Err(); err != nil {
		return fmt.Errorf("ack: %w", err)
	}
	return nil
}

// Nack reports a failed attempt. The job is rescheduled with exponential
// backoff, or dead-lettered once its attempt budget is spent.
func (c *Client) Nack(ctx context.Context, job Job, raw string) error {
	if err := c.rdb.LRem(ctx, c.activeKey(), 1, raw).Err(); err != nil {
		return fmt.Errorf("nack: %w", err)
	}

	job.Attempt++
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal retried job: %w", err)
	}

	if job.Attempt >= c.maxAttempts {
		if err := c.rdb.LPush(ctx, c.deadKey(), payload).Err(); err != nil {
			return fmt.Errorf("dead-letter job %s: %w", job.Token, err)
		}
		c.logger.WithFields(logrus.Fields{
			"token":    job.Token,
			"feed_url": job.FeedURL,
			"attempts": job.Attempt,
		}).Error("Import job exhausted retries, moved to dead letter list")
		return nil
	}

	delay := c.BackoffFor(job.Attempt)
	due := time.Now().Add(delay)
	err = c.rdb.ZAdd(ctx, c.delayedKey(), redis.Z{
		Score:  float64(due.UnixMilli()),
		Member: payload,
	}).Err()
	if err != nil {
		return fmt.Errorf("schedule retry for job %s: %w", job.Token, err)
	}

	c.logger.WithFields(logrus.Fields{
		"token":    job.Token,
		"feed_url": job.FeedURL,
		"attempt":  job.Attempt,
		"delay":    delay.String(),
	}).Warn("Import job failed, retry scheduled")
	return nil
}

// BackoffFor returns the delay before the given attempt number runs:
// base * 2^(attempt-1), i.e. 2s, 4s, 8s, … for the default base.
func (c *Client) BackoffFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return c.backoffBase << (attempt - 1)
}

// PromoteDue moves delayed jobs whose backoff has elapsed back to the
// waiting list. Called periodically by the worker pool.
func (c *Client) PromoteDue(ctx context.Context) (int, error) {
	now := fmt.Sprintf("%d", time.Now().UnixMilli())
	due, err := c.rdb.ZRangeByScore(ctx, c.delayedKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("promote due: %w", err)
	}

	promoted := 0
	for _, payload := range due {
		// ZRem before LPush so a concurrent promoter cannot double-deliver.
		removed, err := c.rdb.ZRem(ctx, c.delayedKey(), payload).Result()
		if err != nil {
			return promoted, fmt.Errorf("promote due: %w", err)
		}
		if removed == 0 {
			continue
		}
		if err := c.rdb.LPush(ctx, c.waitingKey(), payload).Err(); err != nil {
			return promoted, fmt.Errorf("promote due: %w", err)
		}
		promoted++
	}
	return promoted, nil
}

// Reclaim drains the active list back to waiting. Run once at startup, it
// re-delivers jobs orphaned by a crash between dequeue and ack, which is
// the at-least-once half of the delivery contract.
func (c *Client) Reclaim(ctx context.Context) (int, error) {
	reclaimed := 0
	for {
		raw, err := c.rdb.LPop(ctx, c.activeKey()).Result()
		if errors.Is(err, redis.Nil) {
			return reclaimed, nil
		}
		if err != nil {
			return reclaimed, fmt.Errorf("reclaim: %w", err)
		}
		if err := c.rdb.LPush(ctx, c.waitingKey(), raw).Err(); err != nil {
			return reclaimed, fmt.Errorf("reclaim: %w", err)
		}
		reclaimed++
	}
}

// Counts reports queue depth per state for the status endpoint.
func (c *Client) Counts(ctx context.Context) (types.QueueCounts, error) {
	var counts types.QueueCounts
	var err error
	if counts.Waiting, err = c.rdb.LLen(ctx, c.waitingKey()).Result(); err != nil {
		return counts, fmt.Errorf("queue counts: %w", err)
	}
	if counts.Active, err = c.rdb.LLen(ctx, c.activeKey()).Result(); err != nil {
		return counts, fmt.Errorf("queue counts: %w", err)
	}
	if counts.Delayed, err = c.rdb.ZCard(ctx, c.delayedKey()).Result(); err != nil {
		return counts, fmt.Errorf("queue counts: %w", err)
	}
	if counts.Dead, err = c.rdb.LLen(ctx, c.deadKey()).Result(); err != nil {
		return counts, fmt.Errorf("queue counts: %w", err)
	}
	return counts, nil
}

package monitoring

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultFailureThreshold is how many consecutive fetch failures a feed may
// accumulate before an alert fires.
const DefaultFailureThreshold = 3

// feedHealth tracks consecutive outcomes for a single feed URL.
type feedHealth struct {
	consecutiveFailures int
	lastFailure         time.Time
	alerted             bool
}

// AlertManager watches import outcomes per feed and raises log alerts when
// a feed keeps failing to fetch. State is in-memory; a restart resets the
// failure streaks, which is acceptable for an operator-attention signal.
type AlertManager struct {
	mu        sync.Mutex
	feeds     map[string]*feedHealth
	threshold int
	logger    *logrus.Logger
}

// NewAlertManager creates an AlertManager raising alerts after threshold
// consecutive failures. A threshold below 1 falls back to the default.
func NewAlertManager(threshold int, logger *logrus.Logger) *AlertManager {
	if threshold < 1 {
		threshold = DefaultFailureThreshold
	}
	return &AlertManager{
		feeds:     make(map[string]*feedHealth),
		threshold: threshold,
		logger:    logger,
	}
}

// RecordFeedResult records one fetch outcome for a feed. A success clears
// the streak and, if the feed had alerted, logs a recovery.
func (am *AlertManager) RecordFeedResult(feedURL string, ok bool) {
	am.mu.Lock()
	defer am.mu.Unlock()

	health, exists := am.feeds[feedURL]
	if !exists {
		health = &feedHealth{}
		am.feeds[feedURL] = health
	}

	if ok {
		if health.alerted {
			am.logger.WithFields(logrus.Fields{
				"feed_url": feedURL,
			}).Info("ALERT RESOLVED: feed recovered")
		}
		health.consecutiveFailures = 0
		health.alerted = false
		return
	}

	health.consecutiveFailures++
	health.lastFailure = time.Now()
	if health.consecutiveFailures >= am.threshold && !health.alerted {
		health.alerted = true
		am.logger.WithFields(logrus.Fields{
			"feed_url":             feedURL,
			"consecutive_failures": health.consecutiveFailures,
			"threshold":            am.threshold,
		}).Error("ALERT: feed failing repeatedly, needs operator attention")
	}
}

// ConsecutiveFailures reports the current failure streak for a feed.
func (am *AlertManager) ConsecutiveFailures(feedURL string) int {
	am.mu.Lock()
	defer am.mu.Unlock()
	if health, exists := am.feeds[feedURL]; exists {
		return health.consecutiveFailures
	}
	return 0
}

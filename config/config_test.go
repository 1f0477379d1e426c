package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("FEED_URLS", "")

	cfg := NewConfig()

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "job-import", cfg.QueueName)
	assert.Equal(t, 5, cfg.WorkerConcurrency)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.RetryBackoff)
	assert.Equal(t, "0 * * * *", cfg.ImportCron)
	assert.Equal(t, 30*time.Second, cfg.HistoryCacheTTL)
	assert.NotEmpty(t, cfg.Feeds)
}

func TestValidateRequiresConnectionURLs(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")

	cfg := NewConfig()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")

	cfg.DatabaseURL = "postgres://localhost:5432/jobs"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_URL")

	cfg.RedisURL = "redis://localhost:6379"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadPipelineSettings(t *testing.T) {
	cfg := NewConfig()
	cfg.DatabaseURL = "postgres://localhost:5432/jobs"
	cfg.RedisURL = "redis://localhost:6379"

	cfg.WorkerConcurrency = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WORKER_CONCURRENCY")

	cfg.WorkerConcurrency = 5
	cfg.MaxAttempts = 0
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QUEUE_MAX_ATTEMPTS")

	cfg.MaxAttempts = 3
	cfg.Feeds = nil
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feed")
}

func TestFeedsFromEnvOverride(t *testing.T) {
	t.Setenv("FEED_URLS", "https://a.example.com/feed, https://b.example.com/rss ,")

	feeds := feedsFromEnv()
	require.Len(t, feeds, 2)
	assert.Equal(t, "a.example.com", feeds[0].Name)
	assert.Equal(t, "https://a.example.com/feed", feeds[0].URL)
	assert.Equal(t, "b.example.com", feeds[1].Name)
}

func TestFeedsFromEnvDefaults(t *testing.T) {
	t.Setenv("FEED_URLS", "")

	feeds := feedsFromEnv()
	assert.Equal(t, defaultFeeds, feeds)
}

func TestFeedURLs(t *testing.T) {
	t.Setenv("FEED_URLS", "")
	cfg := NewConfig()

	urls := cfg.FeedURLs()
	require.Len(t, urls, len(cfg.Feeds))
	for i, f := range cfg.Feeds {
		assert.Equal(t, f.URL, urls[i])
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "value")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_FLOAT", "2.5")
	t.Setenv("TEST_DUR", "15s")
	t.Setenv("TEST_SLICE", "a,b,c")

	assert.Equal(t, "value", getEnv("TEST_STR", "fallback"))
	assert.Equal(t, "fallback", getEnv("TEST_STR_MISSING", "fallback"))
	assert.Equal(t, 42, getEnvInt("TEST_INT", 1))
	assert.Equal(t, 1, getEnvInt("TEST_INT_MISSING", 1))
	assert.Equal(t, 2.5, getEnvFloat("TEST_FLOAT", 1.0))
	assert.Equal(t, 15*time.Second, getEnvDuration("TEST_DUR", time.Minute))
	assert.Equal(t, time.Minute, getEnvDuration("TEST_DUR_MISSING", time.Minute))
	assert.Equal(t, []string{"a", "b", "c"}, getEnvSlice("TEST_SLICE", nil))

	t.Setenv("TEST_INT_BAD", "not-a-number")
	assert.Equal(t, 7, getEnvInt("TEST_INT_BAD", 7))
}

/*
Package config provides configuration management for the job import backend.

Configuration is environment-driven with sensible defaults; connection
URLs are required and validated fail-fast at startup. NewServices builds
the shared connection handles and the dependency container so no package
holds process-wide mutable state.
*/
package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jobwire-io/job-import-backend/cache"
	"github.com/jobwire-io/job-import-backend/container"
	"github.com/jobwire-io/job-import-backend/middleware"
	"github.com/jobwire-io/job-import-backend/monitoring"
	"github.com/jobwire-io/job-import-backend/queue"
	"github.com/jobwire-io/job-import-backend/store"
	"github.com/jobwire-io/job-import-backend/types"
)

// Config holds all application configuration
type Config struct {
	ServerPort  string
	LogLevel    string
	DatabaseURL string
	RedisURL    string

	// Import pipeline settings
	QueueName         string
	WorkerConcurrency int
	FetchTimeout      time.Duration
	MaxAttempts       int
	RetryBackoff      time.Duration
	ImportCron        string
	Feeds             []types.FeedSource

	// API settings
	RateLimitRequestsPerMinute float64
	RateLimitBurst             int
	ClientCleanupInterval      time.Duration
	AllowedOrigins             []string
	HistoryCacheTTL            time.Duration

	// Alerting
	AlertFailureThreshold int
}

// defaultFeeds are the syndication feeds imported when FEED_URLS is unset.
var defaultFeeds = []types.FeedSource{
	{Name: "Jobicy - All", URL: "https://jobicy.com/?feed=job_feed"},
	{Name: "Jobicy - SMM Full-Time", URL: "https://jobicy.com/?feed=job_feed&job_categories=smm&job_types=full-time"},
	{Name: "Jobicy - Design & Multimedia", URL: "https://jobicy.com/?feed=job_feed&job_categories=design-multimedia"},
	{Name: "Jobicy - Data Science", URL: "https://jobicy.com/?feed=job_feed&job_categories=data-science"},
	{Name: "Jobicy - Copywriting", URL: "https://jobicy.com/?feed=job_feed&job_categories=copywriting"},
	{Name: "Jobicy - Business", URL: "https://jobicy.com/?feed=job_feed&job_categories=business"},
	{Name: "Jobicy - Management", URL: "https://jobicy.com/?feed=job_feed&job_categories=management"},
	{Name: "HigherEdJobs - Articles", URL: "https://www.higheredjobs.com/rss/articleFeed.cfm"},
}

// NewConfig creates a new configuration instance from the environment.
func NewConfig() *Config {
	return &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		QueueName:         getEnv("QUEUE_NAME", "job-import"),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 5),
		FetchTimeout:      getEnvDuration("FETCH_TIMEOUT", 30*time.Second),
		MaxAttempts:       getEnvInt("QUEUE_MAX_ATTEMPTS", 3),
		RetryBackoff:      getEnvDuration("QUEUE_RETRY_BACKOFF", 2*time.Second),
		ImportCron:        getEnv("IMPORT_CRON", "0 * * * *"),
		Feeds:             feedsFromEnv(),

		RateLimitRequestsPerMinute: getEnvFloat("RATE_LIMIT_RPM", 60.0),
		RateLimitBurst:             getEnvInt("RATE_LIMIT_BURST", 10),
		ClientCleanupInterval:      getEnvDuration("CLIENT_CLEANUP_INTERVAL", time.Minute),
		AllowedOrigins: getEnvSlice("CORS_ORIGINS", []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
		}),
		HistoryCacheTTL: getEnvDuration("HISTORY_CACHE_TTL", 30*time.Second),

		AlertFailureThreshold: getEnvInt("ALERT_FAILURE_THRESHOLD", monitoring.DefaultFailureThreshold),
	}
}

// Validate validates the configuration. Required variables fail fast.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL environment variable is required")
	}
	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be a positive integer, got %d", c.WorkerConcurrency)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("QUEUE_MAX_ATTEMPTS must be a positive integer, got %d", c.MaxAttempts)
	}
	if len(c.Feeds) == 0 {
		return fmt.Errorf("at least one feed URL must be configured")
	}
	return nil
}

// feedsFromEnv reads FEED_URLS (comma-separated) or falls back to the
// default feed list. Names for overridden feeds derive from their host.
func feedsFromEnv() []types.FeedSource {
	raw := os.Getenv("FEED_URLS")
	if raw == "" {
		return defaultFeeds
	}
	var feeds []types.FeedSource
	for _, u := range strings.Split(raw, ",") {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		name := u
		if parsed, err := url.Parse(u); err == nil && parsed.Host != "" {
			name = parsed.Host
		}
		feeds = append(feeds, types.FeedSource{Name: name, URL: u})
	}
	return feeds
}

// FeedURLs returns just the URLs of the configured feeds.
func (c *Config) FeedURLs() []string {
	urls := make([]string, len(c.Feeds))
	for i, f := range c.Feeds {
		urls[i] = f.URL
	}
	return urls
}

// Services holds all shared service dependencies
type Services struct {
	Container *container.Container
	Logger    *logrus.Logger
	Pool      *pgxpool.Pool
	Redis     *redis.Client
}

// AppConfig holds both configuration and services
type AppConfig struct {
	Config   *Config
	Services *Services
}

// NewServices creates and initializes all service dependencies.
func NewServices(ctx context.Context, cfg *Config) (*Services, error) {
	logger := middleware.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.InfoLevel)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	logger.Info("PostgreSQL pool initialized successfully")

	if err := store.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		pool.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	logger.Info("Redis client initialized successfully")

	postings := store.NewPostingStore(pool)
	auditLog := store.NewAuditLog(pool)
	importQueue := queue.New(rdb, cfg.QueueName, cfg.MaxAttempts, cfg.RetryBackoff, logger)
	historyCache := cache.NewHistoryCache(cfg.HistoryCacheTTL, logger)
	alerts := monitoring.NewAlertManager(cfg.AlertFailureThreshold, logger)

	diContainer := container.NewContainer()
	diContainer.InitializeServices(container.Dependencies{
		Logger:       logger,
		PostingStore: postings,
		AuditLog:     auditLog,
		Queue:        importQueue,
		HistoryCache: historyCache,
		Alerts:       alerts,
		Feeds:        cfg.Feeds,
		DBPing:       pool.Ping,
		RedisPing:    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	})

	return &Services{
		Container: diContainer,
		Logger:    logger,
		Pool:      pool,
		Redis:     rdb,
	}, nil
}

// NewAppConfig validates the given configuration and wires all dependencies
func NewAppConfig(ctx context.Context, cfg *Config) (*AppConfig, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	services, err := NewServices(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &AppConfig{Config: cfg, Services: services}, nil
}

// Close gracefully closes all service connections
func (s *Services) Close() {
	if c, err := s.Container.GetHistoryCache(); err == nil {
		c.Stop()
	}
	if s.Pool != nil {
		s.Pool.Close()
	}
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvFloat gets an environment variable as float64 with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvInt gets an environment variable as int with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as time.Duration with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvSlice gets an environment variable as a string slice with a default value
func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

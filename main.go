/*
Package main initializes the job import backend.

The backend ingests job postings from external syndication feeds (RSS and
Atom shapes), normalizes them into canonical records, and persists them
idempotently so re-importing a feed never creates duplicates. Each import
run is summarized into an append-only audit log.

One binary hosts three things:
  - the HTTP API (import history, manual trigger, feed list, queue status),
  - the hourly scheduler that enqueues every configured feed,
  - the worker pool consuming the Redis-durable import queue.

Run the application:

	$ go run main.go

Required environment: DATABASE_URL (PostgreSQL), REDIS_URL.
*/
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/jobwire-io/job-import-backend/config"
	"github.com/jobwire-io/job-import-backend/feed"
	"github.com/jobwire-io/job-import-backend/importer"
	"github.com/jobwire-io/job-import-backend/middleware"
	"github.com/jobwire-io/job-import-backend/monitoring"
	"github.com/jobwire-io/job-import-backend/scheduler"
	"github.com/jobwire-io/job-import-backend/utils"
)

// RateLimiter implements a simple token bucket rate limiter per client
type RateLimiter struct {
	clients map[string]*ClientLimiter
	mutex   sync.Mutex
	rate    rate.Limit
	burst   int
}

// ClientLimiter represents a rate limiter for a specific client
type ClientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(r rate.Limit, b int) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*ClientLimiter),
		rate:    r,
		burst:   b,
	}
}

// Allow checks if a client is allowed to make a request
func (rl *RateLimiter) Allow(clientID string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	client, exists := rl.clients[clientID]
	if !exists {
		client = &ClientLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.clients[clientID] = client
	}
	client.lastSeen = time.Now()
	return client.limiter.Allow()
}

// Cleanup removes stale client entries
func (rl *RateLimiter) Cleanup() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	for clientID, client := range rl.clients {
		if time.Since(client.lastSeen) > 5*time.Minute {
			delete(rl.clients, clientID)
		}
	}
}

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.NewConfig()
	middleware.InitLogger(cfg.LogLevel)
	middleware.Logger.Info("Starting Job Import Backend")

	tracerProvider, err := monitoring.InitTracing("job-import-backend")
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer monitoring.ShutdownTracing(tracerProvider)

	appConfig, err := config.NewAppConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application configuration: %v", err)
	}
	defer appConfig.Services.Close()

	services := appConfig.Services
	logger := services.Logger

	handler, err := services.Container.GetHandler()
	if err != nil {
		log.Fatalf("Failed to initialize handler: %v", err)
	}
	importQueue, err := services.Container.GetQueue()
	if err != nil {
		log.Fatalf("Failed to initialize queue: %v", err)
	}
	postings, err := services.Container.GetPostingStore()
	if err != nil {
		log.Fatalf("Failed to initialize posting store: %v", err)
	}
	auditLog, err := services.Container.GetAuditLog()
	if err != nil {
		log.Fatalf("Failed to initialize audit log: %v", err)
	}
	alerts, err := services.Container.GetAlerts()
	if err != nil {
		log.Fatalf("Failed to initialize alert manager: %v", err)
	}

	// Import pipeline: fetcher → worker → pool on the shared queue.
	fetcher := feed.NewFetcher(appConfig.Config.FetchTimeout)
	worker := importer.NewWorker(fetcher, postings, auditLog, alerts, logger)
	pool := importer.NewPool(importQueue, worker, appConfig.Config.WorkerConcurrency, logger)
	pool.Start(ctx)
	defer pool.Stop()

	// Hourly scheduler enqueuing every configured feed.
	sched := scheduler.New(importQueue, appConfig.Config.FeedURLs(), appConfig.Config.ImportCron, logger)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	limiter := NewRateLimiter(rate.Limit(appConfig.Config.RateLimitRequestsPerMinute/60.0), appConfig.Config.RateLimitBurst)
	go func() {
		ticker := time.NewTicker(appConfig.Config.ClientCleanupInterval)
		defer ticker.Stop()
		for range ticker.C {
			limiter.Cleanup()
		}
	}()

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(NotFoundHandler)
	monitoring.SetupMetricsEndpoint(router)

	router.HandleFunc("/health", handler.HandleHealthCheck).Methods("GET")
	router.HandleFunc("/health/live", handler.HandleLivenessCheck).Methods("GET")
	router.HandleFunc("/health/ready", handler.HandleReadinessCheck).Methods("GET")

	router.HandleFunc("/api/imports/history", MonitoringMiddleware(RateLimitMiddleware(limiter, handler.HandleGetHistory))).Methods("GET")
	router.HandleFunc("/api/imports/trigger", MonitoringMiddleware(RateLimitMiddleware(limiter, handler.HandleTriggerImport))).Methods("POST")
	router.HandleFunc("/api/imports/feeds", MonitoringMiddleware(RateLimitMiddleware(limiter, handler.HandleGetFeeds))).Methods("GET")
	router.HandleFunc("/api/imports/queue-status", MonitoringMiddleware(RateLimitMiddleware(limiter, handler.HandleGetQueueStatus))).Methods("GET")

	withLogging := middleware.LoggingMiddleware(router)
	withCORS := CORSMiddleware(withLogging, appConfig.Config.AllowedOrigins)

	server := &http.Server{
		Addr:    ":" + appConfig.Config.ServerPort,
		Handler: withCORS,
	}

	go func() {
		logger.WithField("port", appConfig.Config.ServerPort).Info("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithField("error", err.Error()).Fatal("HTTP server failed")
		}
	}()

	// Block until interrupted, then drain in-flight work.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithField("error", err.Error()).Error("HTTP server shutdown failed")
	}
}

// MonitoringMiddleware adds metrics and tracing to HTTP handlers
func MonitoringMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ctx, span := monitoring.CreateSpan(r.Context(), fmt.Sprintf("%s %s", r.Method, r.URL.Path))
		defer span.End()

		monitoring.SetSpanAttributes(span, map[string]interface{}{
			"http.method":     r.Method,
			"http.url":        r.URL.String(),
			"http.user_agent": r.UserAgent(),
			"remote.addr":     r.RemoteAddr,
		})

		r = r.WithContext(ctx)
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		monitoring.RecordHTTPRequest(r.Method, r.URL.Path, fmt.Sprintf("%d", rw.statusCode), duration)

		monitoring.SetSpanAttributes(span, map[string]interface{}{
			"http.status_code": rw.statusCode,
			"duration_seconds": duration,
		})
		if rw.statusCode >= 400 {
			monitoring.SetSpanError(span, fmt.Errorf("HTTP %d", rw.statusCode))
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// clientIdentifier resolves the caller's address, honoring forwarding
// headers set by proxies.
func clientIdentifier(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		ips := strings.Split(forwarded, ",")
		return strings.TrimSpace(ips[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}

// NotFoundHandler answers unmatched routes with the standard error envelope
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = utils.GenerateRequestID()
	}
	middleware.RespondNotFound(w, fmt.Errorf("no route for %s %s", r.Method, r.URL.Path), requestID)
}

// RateLimitMiddleware implements per-client rate limiting for HTTP handlers
func RateLimitMiddleware(limiter *RateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow(clientIdentifier(r)) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = utils.GenerateRequestID()
			}
			middleware.RespondRateLimited(w, fmt.Errorf("rate limit exceeded"), requestID)
			return
		}
		next.ServeHTTP(w, r)
	}
}

// CORSMiddleware allows configured origins to call the API from browsers
func CORSMiddleware(next http.Handler, allowedOrigins []string) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[strings.TrimSpace(origin)] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Requested-With, X-Request-ID")
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, X-Cache")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

/*
Package middleware provides HTTP middleware for logging and structured
error responses.
*/
package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jobwire-io/job-import-backend/utils"
)

// Logger is the global structured logger
var Logger *logrus.Logger

// InitLogger initializes the structured logger
func InitLogger(level string) {
	Logger = logrus.New()
	Logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	Logger.SetLevel(parsed)
}

// ResponseWriter captures the response status for logging
type ResponseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *ResponseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs HTTP requests and responses
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = utils.GenerateRequestID()
			r.Header.Set("X-Request-ID", requestID)
		}
		w.Header().Set("X-Request-ID", requestID)

		rw := &ResponseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		fields := logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"query":       r.URL.RawQuery,
			"remote_addr": r.RemoteAddr,
			"status":      rw.status,
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  requestID,
		}

		switch {
		case rw.status >= 500:
			Logger.WithFields(fields).Error("Request completed with server error")
		case rw.status >= 400:
			Logger.WithFields(fields).Warn("Request completed with client error")
		default:
			Logger.WithFields(fields).Info("Request completed successfully")
		}
	})
}

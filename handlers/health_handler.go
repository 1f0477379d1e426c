package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jobwire-io/job-import-backend/middleware"
	"github.com/jobwire-io/job-import-backend/utils"
)

var startTime = time.Now()

const healthProbeTimeout = 5 * time.Second

// HealthStatus represents the health check response structure
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Version   string            `json:"version"`
	Services  map[string]string `json:"services"`
	Uptime    string            `json:"uptime"`
}

// HandleHealthCheck provides a health check endpoint for monitoring
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Version:   "1.0.0",
		Services:  make(map[string]string),
		Uptime:    time.Since(startTime).String(),
	}

	for name, ping := range map[string]Pinger{"postgres": h.DBPing, "redis": h.RedisPing} {
		if err := h.probe(r.Context(), ping); err != nil {
			health.Status = "unhealthy"
			health.Services[name] = "unhealthy: " + err.Error()
			h.Logger.WithFields(logrus.Fields{
				"service": name,
				"error":   err.Error(),
			}).Error("Health check failed")
		} else {
			health.Services[name] = "healthy"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(health)
}

// HandleLivenessCheck provides a simple liveness probe
func (h *Handler) HandleLivenessCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(startTime).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// HandleReadinessCheck provides a readiness probe
func (h *Handler) HandleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = utils.GenerateRequestID()
	}

	for _, ping := range []Pinger{h.DBPing, h.RedisPing} {
		if err := h.probe(r.Context(), ping); err != nil {
			middleware.RespondServiceUnavailable(w, err, requestID)
			return
		}
	}

	response := map[string]interface{}{
		"status":    "ready",
		"timestamp": time.Now().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

func (h *Handler) probe(ctx context.Context, ping Pinger) error {
	if ping == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()
	return ping(ctx)
}

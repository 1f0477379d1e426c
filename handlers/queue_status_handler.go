package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/jobwire-io/job-import-backend/middleware"
	"github.com/jobwire-io/job-import-backend/monitoring"
	"github.com/jobwire-io/job-import-backend/types"
	"github.com/jobwire-io/job-import-backend/utils"
)

// QueueStatusResponse reports jobs per queue state for operators.
type QueueStatusResponse struct {
	Queue  string            `json:"queue"`
	Counts types.QueueCounts `json:"counts"`
}

/*
HandleGetQueueStatus reports how many import jobs are waiting, active,
delayed, or dead.

Example:

	GET /api/imports/queue-status

Response:
  - 200 OK: Per-state job counts.
  - 500 Internal Server Error: Queue unreachable.
*/
func (h *Handler) HandleGetQueueStatus(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = utils.GenerateRequestID()
		w.Header().Set("X-Request-ID", requestID)
	}

	counts, err := h.Queue.Counts(r.Context())
	if err != nil {
		h.Logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to read queue counts")
		middleware.RespondInternalError(w, err, requestID)
		return
	}

	monitoring.UpdateQueueDepth(counts.Waiting, counts.Active, counts.Delayed, counts.Dead)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(QueueStatusResponse{
		Queue:  "job-import",
		Counts: counts,
	})
}

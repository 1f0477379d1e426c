package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/jobwire-io/job-import-backend/middleware"
	"github.com/jobwire-io/job-import-backend/utils"
)

// TriggerRequest optionally narrows a manual import to specific feed URLs.
type TriggerRequest struct {
	URLs []string `json:"urls"`
}

// TriggerResponse acknowledges how many feeds were queued. Import outcomes
// surface asynchronously through the audit trail, never here.
type TriggerResponse struct {
	Message string `json:"message"`
	Queued  int    `json:"queued"`
}

// @Summary Trigger feed imports
// @Description Enqueues import jobs for the given feed URLs, or for all configured feeds when the body is empty.
// @Tags Imports
// @Accept json
// @Produce json
// @Param request body TriggerRequest false "Optional feed URL subset"
// @Success 200 {object} TriggerResponse "Feeds queued"
// @Failure 400 {object} middleware.APIError "Bad request"
// @Failure 500 {object} middleware.APIError "Internal server error"
// @Router /api/imports/trigger [post]
func (h *Handler) HandleTriggerImport(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = utils.GenerateRequestID()
		w.Header().Set("X-Request-ID", requestID)
	}

	urls := make([]string, 0, len(h.Feeds))
	for _, f := range h.Feeds {
		urls = append(urls, f.URL)
	}

	if r.Body != nil {
		var req TriggerRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		switch {
		case errors.Is(err, io.EOF):
			// Empty body means all configured feeds.
		case err != nil:
			middleware.RespondBadRequest(w, fmt.Errorf("invalid request body: %w", err), requestID)
			return
		case len(req.URLs) > 0:
			urls = req.URLs
		}
	}

	queued, err := h.Queue.EnqueueMany(r.Context(), urls)
	if err != nil {
		h.Logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"queued":     queued,
			"error":      err.Error(),
		}).Error("Failed to enqueue import jobs")
		middleware.RespondInternalError(w, err, requestID)
		return
	}

	h.Logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"queued":     queued,
	}).Info("Import jobs queued")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(TriggerResponse{
		Message: fmt.Sprintf("Queued %d feed(s) for import", queued),
		Queued:  queued,
	})
}

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/jobwire-io/job-import-backend/cache"
	"github.com/jobwire-io/job-import-backend/middleware"
	"github.com/jobwire-io/job-import-backend/store"
	"github.com/jobwire-io/job-import-backend/types"
	"github.com/jobwire-io/job-import-backend/utils"
)

// Pagination describes the page of a history response.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

// HistoryResponse is the paginated audit log payload.
type HistoryResponse struct {
	Data       []types.ImportLog `json:"data"`
	Pagination Pagination        `json:"pagination"`
}

// @Summary Get import history
// @Description Retrieves paginated import audit log entries, newest first.
// @Tags Imports
// @Produce json
// @Param page query int false "Page number (default: 1)"
// @Param limit query int false "Entries per page (default: 20, max: 50)"
// @Param feed query string false "Case-insensitive feed URL substring filter"
// @Success 200 {object} HistoryResponse "Import history retrieved"
// @Failure 400 {object} middleware.APIError "Bad request"
// @Failure 500 {object} middleware.APIError "Internal server error"
// @Router /api/imports/history [get]
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = utils.GenerateRequestID()
		w.Header().Set("X-Request-ID", requestID)
	}

	params := store.HistoryParams{
		Page:    1,
		Limit:   store.DefaultHistoryLimit,
		FeedURL: r.URL.Query().Get("feed"),
	}

	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil {
			middleware.RespondBadRequest(w, fmt.Errorf("invalid page parameter: %w", err), requestID)
			return
		}
		params.Page = page
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			middleware.RespondBadRequest(w, fmt.Errorf("invalid limit parameter: %w", err), requestID)
			return
		}
		params.Limit = limit
	}
	params.Normalize()

	h.Logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"action":     "get_import_history",
		"page":       params.Page,
		"limit":      params.Limit,
		"feed":       params.FeedURL,
	}).Info("Processing import history request")

	cacheKey := fmt.Sprintf("history:page:%d:limit:%d:feed:%s", params.Page, params.Limit, params.FeedURL)
	if h.HistoryCache != nil {
		if page, found := h.HistoryCache.Get(cacheKey); found {
			w.Header().Set("X-Cache", "HIT")
			writeHistory(w, page, params)
			return
		}
	}

	logs, total, err := h.Audit.List(r.Context(), params)
	if err != nil {
		h.Logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to fetch import history")
		middleware.RespondInternalError(w, err, requestID)
		return
	}

	page := &cache.HistoryPage{Logs: logs, Total: total}
	if h.HistoryCache != nil {
		h.HistoryCache.Set(cacheKey, page)
	}

	w.Header().Set("X-Cache", "MISS")
	writeHistory(w, page, params)
}

func writeHistory(w http.ResponseWriter, page *cache.HistoryPage, params store.HistoryParams) {
	totalPages := (page.Total + int64(params.Limit) - 1) / int64(params.Limit)
	resp := HistoryResponse{
		Data: page.Logs,
		Pagination: Pagination{
			Page:       params.Page,
			Limit:      params.Limit,
			Total:      page.Total,
			TotalPages: totalPages,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

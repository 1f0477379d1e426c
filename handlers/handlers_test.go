package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jobwire-io/job-import-backend/cache"
	"github.com/jobwire-io/job-import-backend/middleware"
	"github.com/jobwire-io/job-import-backend/store"
	"github.com/jobwire-io/job-import-backend/types"
)

func init() {
	// error responses log through the shared middleware logger
	middleware.InitLogger("error")
}

type MockAuditReader struct {
	mock.Mock
}

func (m *MockAuditReader) List(ctx context.Context, p store.HistoryParams) ([]types.ImportLog, int64, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]types.ImportLog), args.Get(1).(int64), args.Error(2)
}

type MockQueueClient struct {
	mock.Mock
}

func (m *MockQueueClient) EnqueueMany(ctx context.Context, feedURLs []string) (int, error) {
	args := m.Called(ctx, feedURLs)
	return args.Int(0), args.Error(1)
}

func (m *MockQueueClient) Counts(ctx context.Context) (types.QueueCounts, error) {
	args := m.Called(ctx)
	return args.Get(0).(types.QueueCounts), args.Error(1)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

var testFeeds = []types.FeedSource{
	{Name: "jobicy.com", URL: "https://jobicy.com/?feed=job_feed"},
	{Name: "higheredjobs.com", URL: "https://www.higheredjobs.com/rss/articleFeed.cfm"},
}

type MockPostingCounter struct {
	mock.Mock
}

func (m *MockPostingCounter) CountBySource(ctx context.Context, sourceURL string) (int64, error) {
	args := m.Called(ctx, sourceURL)
	return args.Get(0).(int64), args.Error(1)
}

func newTestHandler(audit AuditReader, q QueueClient, historyCache *cache.HistoryCache) *Handler {
	return NewHandler(audit, nil, q, historyCache, testFeeds, nil, nil, quietLogger())
}

func TestGetHistoryReturnsPage(t *testing.T) {
	audit := new(MockAuditReader)
	logs := []types.ImportLog{
		{ID: 2, FeedURL: "https://jobicy.com/?feed=job_feed", TotalFetched: 10, NewJobs: 3},
		{ID: 1, FeedURL: "https://jobicy.com/?feed=job_feed", TotalFetched: 8, UpdatedJobs: 8},
	}
	audit.On("List", mock.Anything, store.HistoryParams{Page: 2, Limit: 10}).
		Return(logs, int64(42), nil)

	h := newTestHandler(audit, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/imports/history?page=2&limit=10", nil)
	w := httptest.NewRecorder()
	h.HandleGetHistory(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	var resp HistoryResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Len(t, resp.Data, 2)
	assert.Equal(t, int64(2), resp.Data[0].ID)
	assert.Equal(t, 2, resp.Pagination.Page)
	assert.Equal(t, 10, resp.Pagination.Limit)
	assert.Equal(t, int64(42), resp.Pagination.Total)
	assert.Equal(t, int64(5), resp.Pagination.TotalPages)
}

func TestGetHistoryClampsLimit(t *testing.T) {
	audit := new(MockAuditReader)
	audit.On("List", mock.Anything, store.HistoryParams{Page: 1, Limit: store.MaxHistoryLimit}).
		Return([]types.ImportLog{}, int64(0), nil)

	h := newTestHandler(audit, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/imports/history?limit=999", nil)
	w := httptest.NewRecorder()
	h.HandleGetHistory(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	audit.AssertExpectations(t)
}

func TestGetHistoryInvalidPage(t *testing.T) {
	h := newTestHandler(new(MockAuditReader), nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/imports/history?page=abc", nil)
	w := httptest.NewRecorder()
	h.HandleGetHistory(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetHistoryFeedFilterPassedThrough(t *testing.T) {
	audit := new(MockAuditReader)
	audit.On("List", mock.Anything, store.HistoryParams{Page: 1, Limit: store.DefaultHistoryLimit, FeedURL: "jobicy"}).
		Return([]types.ImportLog{}, int64(0), nil)

	h := newTestHandler(audit, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/imports/history?feed=jobicy", nil)
	w := httptest.NewRecorder()
	h.HandleGetHistory(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	audit.AssertExpectations(t)
}

func TestGetHistoryServesSecondRequestFromCache(t *testing.T) {
	audit := new(MockAuditReader)
	audit.On("List", mock.Anything, mock.Anything).
		Return([]types.ImportLog{{ID: 1}}, int64(1), nil).Once()

	historyCache := cache.NewHistoryCache(30*time.Second, quietLogger())
	defer historyCache.Stop()

	h := newTestHandler(audit, nil, historyCache)

	first := httptest.NewRecorder()
	h.HandleGetHistory(first, httptest.NewRequest(http.MethodGet, "/api/imports/history", nil))
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := httptest.NewRecorder()
	h.HandleGetHistory(second, httptest.NewRequest(http.MethodGet, "/api/imports/history", nil))
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	audit.AssertNumberOfCalls(t, "List", 1)
}

func TestGetHistoryStoreFailure(t *testing.T) {
	audit := new(MockAuditReader)
	audit.On("List", mock.Anything, mock.Anything).
		Return(nil, int64(0), errors.New("conn closed"))

	h := newTestHandler(audit, nil, nil)
	w := httptest.NewRecorder()
	h.HandleGetHistory(w, httptest.NewRequest(http.MethodGet, "/api/imports/history", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestTriggerAllConfiguredFeeds(t *testing.T) {
	q := new(MockQueueClient)
	q.On("EnqueueMany", mock.Anything, []string{testFeeds[0].URL, testFeeds[1].URL}).
		Return(2, nil)

	h := newTestHandler(nil, q, nil)
	w := httptest.NewRecorder()
	h.HandleTriggerImport(w, httptest.NewRequest(http.MethodPost, "/api/imports/trigger", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var resp TriggerResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Queued)
	assert.Equal(t, "Queued 2 feed(s) for import", resp.Message)
	q.AssertExpectations(t)
}

func TestTriggerSubsetOfFeeds(t *testing.T) {
	q := new(MockQueueClient)
	q.On("EnqueueMany", mock.Anything, []string{"https://jobicy.com/?feed=job_feed&job_categories=design"}).
		Return(1, nil)

	h := newTestHandler(nil, q, nil)
	body := strings.NewReader(`{"urls": ["https://jobicy.com/?feed=job_feed&job_categories=design"]}`)
	w := httptest.NewRecorder()
	h.HandleTriggerImport(w, httptest.NewRequest(http.MethodPost, "/api/imports/trigger", body))

	assert.Equal(t, http.StatusOK, w.Code)

	var resp TriggerResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Queued)
	q.AssertExpectations(t)
}

func TestTriggerMalformedBody(t *testing.T) {
	h := newTestHandler(nil, new(MockQueueClient), nil)
	body := strings.NewReader(`{"urls": not-json`)
	w := httptest.NewRecorder()
	h.HandleTriggerImport(w, httptest.NewRequest(http.MethodPost, "/api/imports/trigger", body))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTriggerQueueFailure(t *testing.T) {
	q := new(MockQueueClient)
	q.On("EnqueueMany", mock.Anything, mock.Anything).Return(1, errors.New("redis down"))

	h := newTestHandler(nil, q, nil)
	w := httptest.NewRecorder()
	h.HandleTriggerImport(w, httptest.NewRequest(http.MethodPost, "/api/imports/trigger", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetFeeds(t *testing.T) {
	postings := new(MockPostingCounter)
	postings.On("CountBySource", mock.Anything, testFeeds[0].URL).Return(int64(120), nil)
	postings.On("CountBySource", mock.Anything, testFeeds[1].URL).Return(int64(0), errors.New("conn closed"))

	h := NewHandler(nil, postings, nil, nil, testFeeds, nil, nil, quietLogger())
	w := httptest.NewRecorder()
	h.HandleGetFeeds(w, httptest.NewRequest(http.MethodGet, "/api/imports/feeds", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Feeds []FeedStatus `json:"feeds"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Feeds, 2)
	assert.Equal(t, testFeeds[0].URL, resp.Feeds[0].URL)
	assert.Equal(t, int64(120), resp.Feeds[0].Postings)
	// count failure degrades to zero instead of failing the listing
	assert.Equal(t, int64(0), resp.Feeds[1].Postings)
}

func TestGetFeedsWithoutCounter(t *testing.T) {
	h := newTestHandler(nil, nil, nil)
	w := httptest.NewRecorder()
	h.HandleGetFeeds(w, httptest.NewRequest(http.MethodGet, "/api/imports/feeds", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Feeds []FeedStatus `json:"feeds"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Feeds, 2)
	assert.Equal(t, testFeeds[0].Name, resp.Feeds[0].Name)
}

func TestGetQueueStatus(t *testing.T) {
	q := new(MockQueueClient)
	q.On("Counts", mock.Anything).Return(types.QueueCounts{Waiting: 3, Active: 1, Delayed: 2, Dead: 0}, nil)

	h := newTestHandler(nil, q, nil)
	w := httptest.NewRecorder()
	h.HandleGetQueueStatus(w, httptest.NewRequest(http.MethodGet, "/api/imports/queue-status", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var resp QueueStatusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "job-import", resp.Queue)
	assert.Equal(t, int64(3), resp.Counts.Waiting)
	assert.Equal(t, int64(1), resp.Counts.Active)
	assert.Equal(t, int64(2), resp.Counts.Delayed)
}

func TestGetQueueStatusFailure(t *testing.T) {
	q := new(MockQueueClient)
	q.On("Counts", mock.Anything).Return(types.QueueCounts{}, errors.New("redis down"))

	h := newTestHandler(nil, q, nil)
	w := httptest.NewRecorder()
	h.HandleGetQueueStatus(w, httptest.NewRequest(http.MethodGet, "/api/imports/queue-status", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHealthCheckHealthy(t *testing.T) {
	ok := func(ctx context.Context) error { return nil }
	h := NewHandler(nil, nil, nil, nil, testFeeds, ok, ok, quietLogger())

	w := httptest.NewRecorder()
	h.HandleHealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var status HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "healthy", status.Services["postgres"])
	assert.Equal(t, "healthy", status.Services["redis"])
}

func TestHealthCheckUnhealthyDependency(t *testing.T) {
	ok := func(ctx context.Context) error { return nil }
	down := func(ctx context.Context) error { return errors.New("connection refused") }
	h := NewHandler(nil, nil, nil, nil, testFeeds, ok, down, quietLogger())

	w := httptest.NewRecorder()
	h.HandleHealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	var status HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "healthy", status.Services["postgres"])
	assert.Contains(t, status.Services["redis"], "unhealthy")
}

func TestReadinessCheck(t *testing.T) {
	ok := func(ctx context.Context) error { return nil }
	down := func(ctx context.Context) error { return errors.New("connection refused") }

	ready := NewHandler(nil, nil, nil, nil, testFeeds, ok, ok, quietLogger())
	w := httptest.NewRecorder()
	ready.HandleReadinessCheck(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	notReady := NewHandler(nil, nil, nil, nil, testFeeds, down, ok, quietLogger())
	w = httptest.NewRecorder()
	notReady.HandleReadinessCheck(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestLivenessCheck(t *testing.T) {
	h := newTestHandler(nil, nil, nil)
	w := httptest.NewRecorder()
	h.HandleLivenessCheck(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"alive"`)
}

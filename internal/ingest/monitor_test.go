package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phone-catalog-ingest/internal/model"
	"phone-catalog-ingest/internal/stats"
)

func serve(t *testing.T, m *HTTPMonitor, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHTTPMonitor_Health(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	none := func() *stats.Aggregator { return nil }

	ok := NewHTTPMonitor(0, none, func(ctx context.Context) error { return nil }, logger)
	rec, body := serve(t, ok, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	down := NewHTTPMonitor(0, none, func(ctx context.Context) error { return errors.New("connection refused") }, logger)
	_, body = serve(t, down, "/health")
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "disconnected", body["store"])
}

func TestHTTPMonitor_StatusAndReport(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var agg *stats.Aggregator
	m := NewHTTPMonitor(0, func() *stats.Aggregator { return agg }, nil, logger)

	_, body := serve(t, m, "/status")
	assert.Equal(t, "idle", body["status"])
	rec, _ := serve(t, m, "/report")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	agg = stats.NewAggregator("run-7")
	agg.SetTotal(2)
	agg.RecordSuccess()
	agg.RecordMatch(model.MatchModelNumber)

	_, body = serve(t, m, "/status")
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, "run-7", body["run_id"])
	progress := body["progress"].(map[string]any)
	assert.Equal(t, float64(1), progress["processed"])
	assert.Equal(t, "50.00", progress["percentage"])

	agg.RecordSkipped()
	_, body = serve(t, m, "/status")
	assert.Equal(t, "finished", body["status"])

	rec, body = serve(t, m, "/report")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "run-7", body["run_id"])
	matches := body["matches"].(map[string]any)
	assert.Equal(t, float64(1), matches["model_number"])
}

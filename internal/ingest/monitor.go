package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"phone-catalog-ingest/internal/stats"
)

// PingFunc checks that the store is reachable.
type PingFunc func(ctx context.Context) error

type healthResponse struct {
	Status    string    `json:"status"`
	Store     string    `json:"store"`
	Timestamp time.Time `json:"timestamp"`
}

// HTTPMonitor exposes run progress over HTTP while a batch runs.
type HTTPMonitor struct {
	server *http.Server
	stats  func() *stats.Aggregator
	ping   PingFunc
	logger *slog.Logger
}

// NewHTTPMonitor creates the monitor. statsFn returns the aggregator of the
// current run; ping may be nil.
func NewHTTPMonitor(port int, statsFn func() *stats.Aggregator, ping PingFunc, logger *slog.Logger) *HTTPMonitor {
	m := &HTTPMonitor{
		stats:  statsFn,
		ping:   ping,
		logger: logger,
	}
	m.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      m.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return m
}

// Routes returns the monitor router.
func (m *HTTPMonitor) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/health", m.handleHealth)
	r.Get("/status", m.handleStatus)
	r.Get("/report", m.handleReport)
	return r
}

// Start starts the HTTP server in a goroutine
func (m *HTTPMonitor) Start() {
	go func() {
		m.logger.Info("Starting HTTP monitor", "addr", m.server.Addr)
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("HTTP monitor error", "error", err)
		}
	}()
}

// Stop gracefully stops the HTTP server
func (m *HTTPMonitor) Stop(ctx context.Context) error {
	m.logger.Info("Stopping HTTP monitor")
	return m.server.Shutdown(ctx)
}

func (m *HTTPMonitor) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := healthResponse{
		Status:    "ok",
		Store:     "connected",
		Timestamp: time.Now(),
	}
	if m.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := m.ping(ctx); err != nil {
			response.Status = "degraded"
			response.Store = "disconnected"
		}
	}
	writeJSON(w, http.StatusOK, response)
}

func (m *HTTPMonitor) handleStatus(w http.ResponseWriter, r *http.Request) {
	agg := m.stats()
	if agg == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "idle"})
		return
	}
	snapshot := agg.GetSnapshot()

	status := "running"
	if snapshot.Records.Total > 0 && snapshot.Records.Processed >= snapshot.Records.Total {
		status = "finished"
	}

	response := map[string]any{
		"status":     status,
		"run_id":     snapshot.RunID,
		"started_at": snapshot.StartedAt.Format(time.RFC3339),
		"elapsed":    snapshot.Elapsed.Round(time.Second).String(),
		"progress": map[string]any{
			"total":      snapshot.Records.Total,
			"processed":  snapshot.Records.Processed,
			"succeeded":  snapshot.Records.Succeeded,
			"failed":     snapshot.Records.Failed,
			"skipped":    snapshot.Records.Skipped,
			"percentage": fmt.Sprintf("%.2f", snapshot.Percentage),
		},
		"matches": snapshot.Matches,
		"rate": map[string]any{
			"records_per_sec": fmt.Sprintf("%.2f", snapshot.RecordsPerSec),
		},
		"eta": map[string]any{
			"remaining_records": snapshot.Records.Total - snapshot.Records.Processed,
			"time_remaining":    snapshot.Remaining.Round(time.Second).String(),
		},
		"errors":         snapshot.ErrorCount,
		"reviews":        snapshot.ReviewCount,
		"last_error":     snapshot.LastError,
		"current_record": snapshot.CurrentRecord,
	}
	if !snapshot.ETA.IsZero() {
		response["eta"].(map[string]any)["estimated_completion"] = snapshot.ETA.Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, response)
}

func (m *HTTPMonitor) handleReport(w http.ResponseWriter, r *http.Request) {
	agg := m.stats()
	if agg == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no run in progress"})
		return
	}
	writeJSON(w, http.StatusOK, agg.Report())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

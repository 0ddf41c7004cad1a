// Package api implements the HTTP surface of the sync service.
//
// Routes:
//
//	GET  /health      → liveness + version
//	POST /runs        → trigger one reconciliation run (202; skipped if busy)
//	GET  /runs/latest → report of the most recent completed run
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/joshslade/upwork-analysis-project/internal/scheduler"
)

// Handler holds shared dependencies.
type Handler struct {
	sched   *scheduler.Scheduler
	version string
}

// NewHandler returns a configured Handler.
func NewHandler(sched *scheduler.Scheduler, version string) *Handler {
	return &Handler{sched: sched, version: version}
}

// RegisterRoutes mounts all sync-service routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/runs", h.handleRuns)
	mux.HandleFunc("/runs/latest", h.handleLatestRun)
}

// ─── Individual handlers ──────────────────────────────────────────────────────

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, map[string]string{
		"status":  "ok",
		"service": "sync-service",
		"version": h.version,
	})
}

// handleRuns handles POST /runs: kicks off a reconciliation run in the
// background. Runs are serialised by the scheduler, so a trigger while a run
// is in flight reports "busy" rather than queueing a second writer.
func (h *Handler) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// The run outlives the request: detach it from the request context so
	// writing the response does not cancel it mid-phase.
	if !h.sched.Trigger(context.WithoutCancel(r.Context())) {
		jsonError(w, "a run is already in flight", http.StatusConflict)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "started"})
}

func (h *Handler) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	report := h.sched.LastReport()
	if report == nil {
		jsonError(w, "no completed run yet", http.StatusNotFound)
		return
	}
	jsonOK(w, report)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func jsonOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"telemt-admin/internal/domain"
	"telemt-admin/internal/logger"
)

// Pinger checks that the database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatsSource provides the ledger counters.
type StatsSource interface {
	Stats(ctx context.Context) (*domain.AdminStats, error)
}

// StatusHandler serves read-only health and statistics endpoints
type StatusHandler struct {
	db    Pinger
	stats StatsSource
}

func NewStatusHandler(db Pinger, stats StatsSource) *StatusHandler {
	return &StatusHandler{db: db, stats: stats}
}

// NewRouter registers the status endpoints on a gorilla/mux router.
func NewRouter(h *StatusHandler) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", h.HandleHealth).Methods(http.MethodGet)
	router.HandleFunc("/stats", h.HandleStats).Methods(http.MethodGet)
	return router
}

// HandleHealth reports 200 when the database is reachable
func (h *StatusHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		logger.Warn("Health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *StatusHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		logger.Error("Failed to load stats", "error", err)
		http.Error(w, "Failed to load stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to write response", "error", err)
	}
}

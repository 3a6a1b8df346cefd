// Package health exposes the liveness and readiness endpoints shared by
// cmd/clobchaind and cmd/indexer — adapted from the teacher's
// internal/common.HealthHandler, with its gin.IRouter registration
// replaced by plain net/http since this repo carries no HTTP router
// dependency.
package health

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Handler struct {
	serviceName    string
	serviceVersion string
	logger         *zap.Logger
	startTime      time.Time
	ready          func() bool
}

// New creates a Handler for serviceName. ready is consulted by the
// readiness endpoint; a nil ready always reports ready.
func New(serviceName, serviceVersion string, ready func() bool, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		serviceName:    serviceName,
		serviceVersion: serviceVersion,
		logger:         logger,
		startTime:      time.Now(),
		ready:          ready,
	}
}

// Register mounts the health, readiness and liveness endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.healthCheck)
	mux.HandleFunc("/health/ready", h.readinessCheck)
	mux.HandleFunc("/health/live", h.livenessCheck)
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"service":   h.serviceName,
		"version":   h.serviceVersion,
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC(),
	})
}

func (h *Handler) readinessCheck(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	state := "ready"
	if h.ready != nil && !h.ready() {
		status = http.StatusServiceUnavailable
		state = "not_ready"
	}
	h.writeJSON(w, status, map[string]any{
		"status":    state,
		"service":   h.serviceName,
		"timestamp": time.Now().UTC(),
	})
}

func (h *Handler) livenessCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "alive",
		"service":   h.serviceName,
		"timestamp": time.Now().UTC(),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("failed to encode health response", zap.Error(err))
	}
}

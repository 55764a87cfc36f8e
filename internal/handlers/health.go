package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"video-converter/internal/logging"
	"video-converter/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
	statusStopping = "stopping"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	ActiveConversions int    `json:"activeConversions"`
	ReservedOutputs   int    `json:"reservedOutputs"`
	FFmpegPath        string `json:"ffmpegPath"`
	HistoryEnabled    bool   `json:"historyEnabled"`
	HistoryError      string `json:"historyError,omitempty"`
	PostersEnabled    bool   `json:"postersEnabled"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:            statusHealthy,
		Ready:             true,
		Version:           startup.Version,
		Uptime:            time.Since(h.startTime).Round(time.Second).String(),
		ActiveConversions: len(h.converter.Active()),
		ReservedOutputs:   h.reserver.Claimed(),
		FFmpegPath:        h.config.FFmpegPath,
		HistoryEnabled:    h.history != nil,
		PostersEnabled:    h.posters != nil && h.posters.IsEnabled(),
		GoVersion:         runtime.Version(),
		NumCPU:            runtime.NumCPU(),
		NumGoroutine:      runtime.NumGoroutine(),
	}

	// History is optional, so a broken database only degrades the service.
	if err := h.pingHistory(r.Context()); err != nil {
		response.Status = statusDegraded
		response.HistoryError = err.Error()
	}

	statusCode := http.StatusOK
	if h.shuttingDown.Load() {
		response.Status = statusStopping
		response.Ready = false
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the service accepts new conversions
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if h.shuttingDown.Load() {
		writeJSONStatus(w, http.StatusServiceUnavailable, "not_ready")
		return
	}
	if err := h.pingHistory(r.Context()); err != nil {
		logging.Warn("Readiness check: history database unavailable: %v", err)
	}
	writeJSONStatus(w, http.StatusOK, "ready")
}

func (h *Handlers) pingHistory(ctx context.Context) error {
	if h.history == nil {
		return nil
	}
	return h.history.Ping(ctx)
}

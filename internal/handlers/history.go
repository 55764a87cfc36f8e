package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"video-converter/internal/database"
	"video-converter/internal/logging"

	"github.com/gorilla/mux"
)

const maxListLimit = 500

// HistoryResponse is returned by ListConversions.
type HistoryResponse struct {
	Conversions []database.Conversion `json:"conversions"`
	Stats       map[string]int        `json:"stats"`
}

// ListConversions returns the most recent conversions, newest first.
// The optional "limit" query parameter bounds the result.
func (h *Handlers) ListConversions(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSONError(w, "History is disabled", http.StatusNotFound)
		return
	}

	limit := database.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSONError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxListLimit)
	}

	list, err := h.history.List(r.Context(), limit)
	if err != nil {
		logging.Error("Failed to list conversions: %v", err)
		writeJSONError(w, "Failed to list conversions", http.StatusInternalServerError)
		return
	}
	stats, err := h.history.Stats(r.Context())
	if err != nil {
		logging.Error("Failed to count conversions: %v", err)
		writeJSONError(w, "Failed to list conversions", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, HistoryResponse{Conversions: list, Stats: stats})
}

// GetConversion returns one conversion including its log.
func (h *Handlers) GetConversion(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSONError(w, "History is disabled", http.StatusNotFound)
		return
	}

	c, err := h.history.Get(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, database.ErrNotFound) {
		writeJSONError(w, "Conversion not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("Failed to get conversion: %v", err)
		writeJSONError(w, "Failed to get conversion", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, c)
}

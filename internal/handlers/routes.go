package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes adds every application route to r. convertLimit wraps the
// conversion endpoint and may be nil.
func (h *Handlers) RegisterRoutes(r *mux.Router, convertLimit func(http.Handler) http.Handler) {
	// Health and version endpoints
	r.HandleFunc("/health", h.HealthCheck).Methods("GET").Name("health")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// Upload page and conversion
	r.HandleFunc("/", h.Index).Methods("GET").Name("index")
	var convert http.Handler = http.HandlerFunc(h.Convert)
	if convertLimit != nil {
		convert = convertLimit(convert)
	}
	r.Handle("/convert", convert).Methods("POST").Name("convert")

	// Converted files
	r.HandleFunc("/download/{filename}", h.Download).Methods("GET", "HEAD").Name("download")
	r.HandleFunc("/video/{filename}", h.Video).Methods("GET", "HEAD").Name("video")
	r.HandleFunc("/poster/{filename}", h.Poster).Methods("GET", "HEAD").Name("poster")

	// History API
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/conversions", h.ListConversions).Methods("GET")
	api.HandleFunc("/conversions/{id}", h.GetConversion).Methods("GET")
}

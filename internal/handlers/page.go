package handlers

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"net/http"
	"time"

	"video-converter/internal/database"
	"video-converter/internal/logging"
	"video-converter/internal/startup"

	"github.com/dustin/go-humanize"
)

//go:embed templates/index.html
var templateFS embed.FS

// recentLimit is how many history rows the page shows.
const recentLimit = 10

var pageTemplate = template.Must(template.New("index.html").Funcs(template.FuncMap{
	"since": humanize.Time,
	"bytes": func(n int64) string {
		if n < 0 {
			n = 0
		}
		return humanize.Bytes(uint64(n))
	},
}).ParseFS(templateFS, "templates/index.html"))

// pageData is everything the upload page can show.
type pageData struct {
	Error        string
	Log          string
	DownloadName string
	PosterName   string
	MaxUpload    string
	Version      string
	Recent       []database.Conversion
}

// Index renders the upload form.
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, http.StatusOK, pageData{})
}

func (h *Handlers) renderPage(w http.ResponseWriter, r *http.Request, statusCode int, data pageData) {
	data.MaxUpload = humanize.IBytes(uint64(h.config.MaxUploadBytes))
	data.Version = startup.Version
	data.Recent = h.recent(r.Context())

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		logging.Error("failed to render page: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	if _, err := w.Write(buf.Bytes()); err != nil {
		logging.Debug("failed to write page: %v", err)
	}
}

func (h *Handlers) recent(ctx context.Context) []database.Conversion {
	if h.history == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	list, err := h.history.List(ctx, recentLimit)
	if err != nil {
		logging.Warn("Failed to load recent conversions: %v", err)
		return nil
	}
	return list
}

package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"video-converter/internal/logging"
	"video-converter/internal/naming"

	"github.com/gorilla/mux"
)

// Download serves a converted file as an attachment.
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	h.serveOutput(w, r, ".mp4", "video/mp4", true)
}

// Video serves a converted file inline for the preview player. Range
// requests are honoured so the player can seek.
func (h *Handlers) Video(w http.ResponseWriter, r *http.Request) {
	h.serveOutput(w, r, ".mp4", "video/mp4", false)
}

// Poster serves a poster frame.
func (h *Handlers) Poster(w http.ResponseWriter, r *http.Request) {
	h.serveOutput(w, r, ".jpg", "image/jpeg", false)
}

// serveOutput serves a file from the top level of the upload directory. The
// requested name is sanitised the same way uploads are, so it can never
// reach the incoming directory or leave the upload directory.
func (h *Handlers) serveOutput(w http.ResponseWriter, r *http.Request, ext, contentType string, attachment bool) {
	name := naming.SecureFilename(mux.Vars(r)["filename"])
	if name == "" || !strings.EqualFold(filepath.Ext(name), ext) {
		http.NotFound(w, r)
		return
	}

	path := filepath.Join(h.config.UploadDir, name)
	f, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.Warn("Failed to open %s: %v", path, err)
		}
		http.NotFound(w, r)
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", contentType)
	if attachment {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	}
	http.ServeContent(w, r, name, info.ModTime(), f)
}

package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"video-converter/internal/database"
	"video-converter/internal/logging"
	"video-converter/internal/metrics"
	"video-converter/internal/naming"
	"video-converter/internal/transcoder"

	"github.com/dustin/go-humanize"
)

// Form error messages
const (
	msgNoFileSubmitted = "No file was submitted."
	msgNoFileSelected  = "No file was selected."
	msgInvalidName     = "Invalid file name."
	msgTooLarge        = "Upload exceeds size limit."
	msgUnreadable      = "The upload could not be read."
	msgStartFailed     = "Transcoder could not be started"
	msgShuttingDown    = "The server is shutting down. Please try again later."
)

// formMemory is how much of a multipart body is kept in memory before the
// rest spills to temporary files.
const formMemory = 32 << 20

// formOverhead allows for multipart boundaries and the key field on top of
// the file itself.
const formOverhead = 1 << 20

// ConvertResponse is the JSON form of a conversion result.
type ConvertResponse struct {
	ID          string `json:"id,omitempty"`
	Success     bool   `json:"success"`
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
	OutputName  string `json:"outputName,omitempty"`
	DownloadURL string `json:"downloadUrl,omitempty"`
	VideoURL    string `json:"videoUrl,omitempty"`
	PosterURL   string `json:"posterUrl,omitempty"`
	Attempts    int    `json:"attempts"`
	Rounds      int    `json:"rounds"`
	DurationMS  int64  `json:"durationMs"`
	Log         string `json:"log"`
}

// upload is a saved multipart file.
type upload struct {
	original string
	path     string
	stem     string
	size     int64
}

// Convert handles POST /convert: it stores the upload, runs a conversion
// session and renders the result.
func (h *Handlers) Convert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadBytes+formOverhead)

	up, statusCode, msg := h.saveUpload(r)
	if up == nil {
		h.respondError(w, r, statusCode, msg, "")
		return
	}
	defer h.removeUpload(up.path)

	key := strings.TrimSpace(r.FormValue("decrypt_key"))

	outputPath, err := h.reserver.Reserve(h.config.UploadDir, up.stem, ".mp4")
	if err != nil {
		logging.Error("Failed to reserve output name for %s: %v", up.original, err)
		h.respondError(w, r, http.StatusInternalServerError, "Could not allocate an output file name.", "")
		return
	}
	defer h.reserver.Release(outputPath)

	logging.Info("Converting %s (%s, encrypted: %v) -> %s",
		up.original, humanize.IBytes(uint64(up.size)), key != "", filepath.Base(outputPath))

	outcome, convErr := h.converter.Convert(r.Context(), transcoder.Request{
		InputPath:     up.path,
		OutputPath:    outputPath,
		DecryptionKey: key,
	})
	if outcome == nil {
		outcome = &transcoder.Outcome{}
	}

	status := metrics.SessionStatus(outcome, convErr)
	log := transcoder.Redact(outcome.Log(), key)

	var posterName string
	if outcome.Success {
		if info, err := os.Stat(outputPath); err == nil {
			metrics.OutputBytes.Observe(float64(info.Size()))
		}
		posterName = h.makePoster(r.Context(), outputPath)
	} else {
		// A failed session may leave a partial file behind.
		if err := os.Remove(outputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.Warn("Failed to remove partial output %s: %v", outputPath, err)
		}
	}

	message := outcome.Message
	if convErr != nil {
		message = transcoder.Redact(convErr.Error(), key)
	}

	record := &database.Conversion{
		InputName:  up.original,
		Encrypted:  key != "",
		Status:     database.Status(status),
		Attempts:   len(outcome.Attempts()),
		Rounds:     len(outcome.Rounds),
		InputBytes: up.size,
		DurationMS: outcome.Duration.Milliseconds(),
		Message:    message,
		Log:        log,
	}
	if outcome.Success {
		record.OutputName = filepath.Base(outputPath)
	}
	h.recordHistory(r.Context(), record)

	switch {
	case convErr == nil && outcome.Success:
		logging.Info("Converted %s -> %s in %s", up.original, record.OutputName, outcome.Duration.Round(time.Millisecond))
		h.respondResult(w, r, http.StatusOK, record, posterName)

	case convErr == nil:
		logging.Warn("Conversion of %s failed: %s", up.original, outcome.Message)
		h.respondResult(w, r, http.StatusUnprocessableEntity, record, "")

	case transcoder.IsEnvironmentError(convErr):
		logging.Error("Transcoder could not be started for %s: %v", up.original, convErr)
		h.respondError(w, r, http.StatusInternalServerError, fmt.Sprintf("%s: %s", msgStartFailed, message), log)

	case errors.Is(convErr, context.Canceled) && r.Context().Err() != nil:
		logging.Info("Client went away, conversion of %s canceled", up.original)

	case errors.Is(convErr, context.Canceled):
		logging.Warn("Conversion of %s stopped by shutdown", up.original)
		h.respondError(w, r, http.StatusServiceUnavailable, msgShuttingDown, log)

	default:
		logging.Error("Conversion of %s failed: %v", up.original, convErr)
		h.respondError(w, r, http.StatusInternalServerError, message, log)
	}
}

// saveUpload parses the form and writes the file part into the incoming
// directory. On failure it returns nil with the status and message to show.
func (h *Handlers) saveUpload(r *http.Request) (*upload, int, string) {
	if err := r.ParseMultipartForm(formMemory); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return nil, http.StatusRequestEntityTooLarge, msgTooLarge
		case errors.Is(err, http.ErrNotMultipart):
			return nil, http.StatusBadRequest, msgNoFileSubmitted
		default:
			logging.Warn("Failed to parse upload form: %v", err)
			return nil, http.StatusBadRequest, msgUnreadable
		}
	}

	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		// Browsers send an empty part with no file name when nothing was
		// chosen; multipart stores such parts as plain values.
		if _, ok := r.MultipartForm.Value["file"]; ok {
			return nil, http.StatusBadRequest, msgNoFileSelected
		}
		return nil, http.StatusBadRequest, msgNoFileSubmitted
	}
	header := files[0]
	if header.Filename == "" {
		return nil, http.StatusBadRequest, msgNoFileSelected
	}
	if header.Size > h.config.MaxUploadBytes {
		return nil, http.StatusRequestEntityTooLarge, msgTooLarge
	}

	path, stem, err := naming.UploadPath(h.config.UploadDir, header.Filename)
	if err != nil {
		return nil, http.StatusBadRequest, msgInvalidName
	}

	size, err := copyUpload(header, path)
	if err != nil {
		logging.Error("Failed to save upload %s: %v", header.Filename, err)
		return nil, http.StatusInternalServerError, "The upload could not be saved."
	}
	metrics.UploadBytes.Observe(float64(size))

	return &upload{
		original: stem + filepath.Ext(path),
		path:     path,
		stem:     stem,
		size:     size,
	}, 0, ""
}

func copyUpload(header *multipart.FileHeader, path string) (int64, error) {
	src, err := header.Open()
	if err != nil {
		return 0, err
	}
	defer func() { _ = src.Close() }()

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, err
	}
	return n, nil
}

func (h *Handlers) removeUpload(path string) {
	if h.config.KeepUploads {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warn("Failed to remove upload %s: %v", path, err)
	}
}

// makePoster returns the poster file name, or "" when none was made.
func (h *Handlers) makePoster(ctx context.Context, videoPath string) string {
	if h.posters == nil || !h.posters.IsEnabled() {
		return ""
	}
	path, err := h.posters.Generate(ctx, videoPath)
	if err != nil {
		logging.Warn("Poster generation failed for %s: %v", filepath.Base(videoPath), err)
		return ""
	}
	return filepath.Base(path)
}

// recordHistory stores the session even when the client has gone away.
func (h *Handlers) recordHistory(ctx context.Context, c *database.Conversion) {
	if h.history == nil {
		return
	}
	if err := h.history.Record(context.WithoutCancel(ctx), c); err != nil {
		metrics.HistoryWriteErrors.Inc()
		logging.Error("Failed to record conversion of %s: %v", c.InputName, err)
	}
}

func (h *Handlers) respondResult(w http.ResponseWriter, r *http.Request, statusCode int, c *database.Conversion, posterName string) {
	if wantsJSON(r) {
		resp := ConvertResponse{
			ID:         c.ID,
			Success:    c.Status == database.StatusSucceeded,
			Status:     string(c.Status),
			Message:    c.Message,
			OutputName: c.OutputName,
			Attempts:   c.Attempts,
			Rounds:     c.Rounds,
			DurationMS: c.DurationMS,
			Log:        c.Log,
		}
		if c.OutputName != "" {
			resp.DownloadURL = "/download/" + c.OutputName
			resp.VideoURL = "/video/" + c.OutputName
		}
		if posterName != "" {
			resp.PosterURL = "/poster/" + posterName
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		writeJSON(w, resp)
		return
	}

	data := pageData{Log: c.Log}
	if c.Status == database.StatusSucceeded {
		data.DownloadName = c.OutputName
		data.PosterName = posterName
	} else {
		data.Error = c.Message
	}
	// Browsers show the failure page like any other result.
	h.renderPage(w, r, http.StatusOK, data)
}

func (h *Handlers) respondError(w http.ResponseWriter, r *http.Request, statusCode int, message, log string) {
	if wantsJSON(r) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		writeJSON(w, map[string]string{"error": message, "log": log})
		return
	}
	h.renderPage(w, r, statusCode, pageData{Error: message, Log: log})
}

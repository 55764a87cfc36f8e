package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"video-converter/internal/database"
	"video-converter/internal/naming"
	"video-converter/internal/startup"
	"video-converter/internal/transcoder"

	"github.com/gorilla/mux"
)

// =============================================================================
// Fakes
// =============================================================================

// fakeConverter writes the output file when a session is meant to succeed.
type fakeConverter struct {
	mu       sync.Mutex
	succeed  bool
	partial  bool
	err      error
	requests []transcoder.Request
}

func (f *fakeConverter) Convert(_ context.Context, req transcoder.Request) (*transcoder.Outcome, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	mode := transcoder.ModePlain
	args := []string{"ffmpeg", "-y"}
	if req.DecryptionKey != "" {
		mode = transcoder.ModeCENC
		args = append(args, "-decryption_key", req.DecryptionKey)
	}
	args = append(args, "-i", req.InputPath, req.OutputPath)

	if f.err != nil {
		return &transcoder.Outcome{}, f.err
	}

	if f.succeed || f.partial {
		if err := os.WriteFile(req.OutputPath, []byte("mp4 data"), 0o644); err != nil {
			return nil, err
		}
	}

	attempt := transcoder.AttemptResult{
		Round: 1, Attempt: 1, Mode: mode, Args: args,
		ExitCode: 1, Stderr: "Invalid data found when processing input",
	}
	if f.succeed {
		attempt.ExitCode = 0
		attempt.OutputExists = true
		attempt.Stderr = ""
		return &transcoder.Outcome{
			Success:    true,
			OutputPath: req.OutputPath,
			Rounds:     []transcoder.RoundResult{{Number: 1, Success: true, Attempts: []transcoder.AttemptResult{attempt}}},
			Duration:   1500 * time.Millisecond,
		}, nil
	}

	return &transcoder.Outcome{
		Message: transcoder.FailureMessage,
		Rounds: []transcoder.RoundResult{
			{Number: 1, ExitCode: 1, Attempts: []transcoder.AttemptResult{attempt}},
			{Number: 2, ExitCode: 1, ExtraFlags: transcoder.TimestampRepairFlags, Attempts: []transcoder.AttemptResult{attempt}},
		},
		Duration: time.Second,
	}, nil
}

func (f *fakeConverter) Active() []string { return nil }

func (f *fakeConverter) lastRequest(t *testing.T) transcoder.Request {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatal("converter was not called")
	}
	return f.requests[len(f.requests)-1]
}

// memoryHistory is an in-memory History.
type memoryHistory struct {
	mu      sync.Mutex
	rows    []database.Conversion
	failErr error
	nextID  int
}

func (m *memoryHistory) Record(_ context.Context, c *database.Conversion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.nextID++
	if c.ID == "" {
		c.ID = "conv-" + strconv.Itoa(m.nextID)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	m.rows = append(m.rows, *c)
	return nil
}

func (m *memoryHistory) Get(_ context.Context, id string) (*database.Conversion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.rows {
		if c.ID == id {
			c := c
			return &c, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *memoryHistory) List(_ context.Context, limit int) ([]database.Conversion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]database.Conversion, 0, len(m.rows))
	for i := len(m.rows) - 1; i >= 0 && len(out) < limit; i-- {
		c := m.rows[i]
		c.Log = ""
		out = append(out, c)
	}
	return out, nil
}

func (m *memoryHistory) Stats(_ context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[string]int{}
	for _, c := range m.rows {
		counts[string(c.Status)]++
	}
	return counts, nil
}

func (m *memoryHistory) Ping(_ context.Context) error { return m.failErr }

func (m *memoryHistory) last(t *testing.T) database.Conversion {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.rows) == 0 {
		t.Fatal("nothing recorded")
	}
	return m.rows[len(m.rows)-1]
}

// fakePosters writes an empty JPEG next to the video.
type fakePosters struct {
	enabled bool
	err     error
}

func (p *fakePosters) IsEnabled() bool { return p.enabled }

func (p *fakePosters) Generate(_ context.Context, videoPath string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	path := strings.TrimSuffix(videoPath, ".mp4") + ".jpg"
	return path, os.WriteFile(path, []byte("jpeg"), 0o644)
}

// =============================================================================
// Helpers
// =============================================================================

type testEnv struct {
	h         *Handlers
	router    *mux.Router
	converter *fakeConverter
	history   *memoryHistory
	config    *startup.Config
}

func newTestEnv(t *testing.T, converter *fakeConverter) *testEnv {
	t.Helper()

	dir := t.TempDir()
	config := &startup.Config{
		FFmpegPath:     "ffmpeg",
		UploadDir:      dir,
		IncomingDir:    filepath.Join(dir, naming.IncomingDir),
		MaxUploadBytes: 1 << 20,
		PostersEnabled: true,
		PosterWidth:    640,
	}
	if err := os.MkdirAll(config.IncomingDir, 0o755); err != nil {
		t.Fatal(err)
	}

	history := &memoryHistory{}
	h := New(converter, history, &fakePosters{enabled: true}, config)
	router := mux.NewRouter()
	h.RegisterRoutes(router, nil)

	return &testEnv{h: h, router: router, converter: converter, history: history, config: config}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// uploadRequest builds a multipart POST /convert. An empty filename sends an
// empty file part the way browsers do when nothing was chosen.
func uploadRequest(t *testing.T, filename string, content []byte, key string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := mw.WriteField("decrypt_key", key); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/convert", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func incomingFiles(t *testing.T, config *startup.Config) []string {
	t.Helper()
	entries, err := os.ReadDir(config.IncomingDir)
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

// =============================================================================
// Page and conversion
// =============================================================================

func TestIndex(t *testing.T) {
	env := newTestEnv(t, &fakeConverter{succeed: true})

	rr := env.do(httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{`action="/convert"`, `name="file"`, `name="decrypt_key"`, "1.0 MiB"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestConvertSuccess(t *testing.T) {
	env := newTestEnv(t, &fakeConverter{succeed: true})
	const key = "0123456789abcdef0123456789abcdef"

	rr := env.do(uploadRequest(t, "My Clip.mov", []byte("movie"), "  "+key+"  "))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	if !strings.Contains(body, "/video/My_Clip_converted.mp4") {
		t.Error("page should embed the converted video")
	}
	if !strings.Contains(body, "/download/My_Clip_converted.mp4") {
		t.Error("page should link the download")
	}
	if !strings.Contains(body, `poster="/poster/My_Clip_converted.jpg"`) {
		t.Error("page should show the poster")
	}
	if strings.Contains(body, key) {
		t.Error("page must not echo the decryption key")
	}

	req := env.converter.lastRequest(t)
	if req.DecryptionKey != key {
		t.Errorf("key = %q, want trimmed key", req.DecryptionKey)
	}
	if filepath.Ext(req.InputPath) != ".mov" {
		t.Errorf("input %q should keep its extension", req.InputPath)
	}
	if filepath.Dir(req.InputPath) != env.config.IncomingDir {
		t.Errorf("input %q should be in the incoming dir", req.InputPath)
	}

	// The upload is removed and the output kept.
	if files := incomingFiles(t, env.config); len(files) != 0 {
		t.Errorf("upload not removed: %v", files)
	}
	if _, err := os.Stat(filepath.Join(env.config.UploadDir, "My_Clip_converted.mp4")); err != nil {
		t.Errorf("output missing: %v", err)
	}
	if env.h.reserver.Claimed() != 0 {
		t.Error("output reservation not released")
	}

	rec := env.history.last(t)
	if rec.Status != database.StatusSucceeded || !rec.Encrypted {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.InputName != "My_Clip.mov" || rec.OutputName != "My_Clip_converted.mp4" {
		t.Errorf("record names = %q -> %q", rec.InputName, rec.OutputName)
	}
	if rec.InputBytes != 5 || rec.Attempts != 1 || rec.Rounds != 1 {
		t.Errorf("record counters = %+v", rec)
	}
	if strings.Contains(rec.Log, key) || !strings.Contains(rec.Log, "[REDACTED]") {
		t.Errorf("recorded log should have the key redacted: %s", rec.Log)
	}
}

func TestConvertOutputNameCollision(t *testing.T) {
	env := newTestEnv(t, &fakeConverter{succeed: true})
	existing := filepath.Join(env.config.UploadDir, "clip_converted.mp4")
	if err := os.WriteFile(existing, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	rr := env.do(uploadRequest(t, "clip.ts", []byte("ts"), ""))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	if got := filepath.Base(env.converter.lastRequest(t).OutputPath); got != "clip_converted_1.mp4" {
		t.Errorf("output = %q, want clip_converted_1.mp4", got)
	}
	if data, _ := os.ReadFile(existing); string(data) != "old" {
		t.Error("existing output was overwritten")
	}
}

func TestConvertFailureJSON(t *testing.T) {
	env := newTestEnv(t, &fakeConverter{partial: true})

	req := uploadRequest(t, "broken.mp4", []byte("junk"), "")
	req.Header.Set("Accept", "application/json")
	rr := env.do(req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}

	var resp ConvertResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Success || resp.Status != "failed" {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Message != transcoder.FailureMessage {
		t.Errorf("message = %q", resp.Message)
	}
	if resp.Attempts != 2 || resp.Rounds != 2 {
		t.Errorf("attempts/rounds = %d/%d", resp.Attempts, resp.Rounds)
	}
	if !strings.Contains(resp.Log, "=== Round 2 ===") {
		t.Errorf("log should contain both rounds: %s", resp.Log)
	}
	if resp.DownloadURL != "" {
		t.Error("failed conversion should not offer a download")
	}

	// The partial output is removed.
	if _, err := os.Stat(filepath.Join(env.config.UploadDir, "broken_converted.mp4")); !os.IsNotExist(err) {
		t.Errorf("partial output should be removed, stat err = %v", err)
	}
	if env.history.last(t).Status != database.StatusFailed {
		t.Error("failure should be recorded")
	}
}

func TestConvertFailureHTML(t *testing.T) {
	env := newTestEnv(t, &fakeConverter{})

	rr := env.do(uploadRequest(t, "broken.mp4", []byte("junk"), ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, transcoder.FailureMessage) {
		t.Error("page should show the failure message")
	}
	if !strings.Contains(body, "Invalid data found when processing input") {
		t.Error("page should show the ffmpeg log")
	}
}

func TestConvertSuccessJSON(t *testing.T) {
	env := newTestEnv(t, &fakeConverter{succeed: true})

	req := uploadRequest(t, "clip.mkv", []byte("mkv"), "")
	req.Header.Set("Accept", "application/json")
	rr := env.do(req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp ConvertResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.ID == "" {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.DownloadURL != "/download/clip_converted.mp4" || resp.PosterURL != "/poster/clip_converted.jpg" {
		t.Errorf("urls = %q %q", resp.DownloadURL, resp.PosterURL)
	}
	if resp.DurationMS != 1500 {
		t.Errorf("durationMs = %d", resp.DurationMS)
	}
}

func TestConvertEnvironmentError(t *testing.T) {
	envErr := &transcoder.EnvironmentError{Executable: "/missing/ffmpeg", Err: exec.ErrNotFound}
	env := newTestEnv(t, &fakeConverter{err: envErr})

	rr := env.do(uploadRequest(t, "clip.mov", []byte("movie"), ""))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Transcoder could not be started") {
		t.Error("page should name the start failure")
	}
	if env.history.last(t).Status != database.StatusError {
		t.Error("environment failure should be recorded as error")
	}
	if files := incomingFiles(t, env.config); len(files) != 0 {
		t.Errorf("upload not removed: %v", files)
	}
}

func TestConvertShutdown(t *testing.T) {
	env := newTestEnv(t, &fakeConverter{err: context.Canceled})

	req := uploadRequest(t, "clip.mov", []byte("movie"), "")
	req.Header.Set("Accept", "application/json")
	rr := env.do(req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
	if env.history.last(t).Status != database.StatusCanceled {
		t.Error("canceled session should be recorded")
	}
}

func TestConvertKeepUploads(t *testing.T) {
	env := newTestEnv(t, &fakeConverter{succeed: true})
	env.config.KeepUploads = true

	env.do(uploadRequest(t, "clip.mov", []byte("movie"), ""))

	files := incomingFiles(t, env.config)
	if len(files) != 1 || !strings.HasSuffix(files[0], "-clip.mov") {
		t.Errorf("upload should be kept, got %v", files)
	}
}

func TestConvertHistoryWriteFailure(t *testing.T) {
	env := newTestEnv(t, &fakeConverter{succeed: true})
	env.history.failErr = errors.New("disk full")

	rr := env.do(uploadRequest(t, "clip.mov", []byte("movie"), ""))

	if rr.Code != http.StatusOK {
		t.Errorf("history failure must not fail the conversion, status = %d", rr.Code)
	}
}

func TestConvertPosterFailureIsNotFatal(t *testing.T) {
	env := newTestEnv(t, &fakeConverter{succeed: true})
	env.h.posters = &fakePosters{enabled: true, err: errors.New("no frame")}

	rr := env.do(uploadRequest(t, "clip.mov", []byte("movie"), ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "poster=") {
		t.Error("no poster should be referenced")
	}
}

func TestConvertFormErrors(t *testing.T) {
	tests := []struct {
		name     string
		request  func(t *testing.T) *http.Request
		status   int
		expected string
	}{
		{
			name: "not multipart",
			request: func(_ *testing.T) *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/convert", strings.NewReader("a=b"))
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
				return req
			},
			status:   http.StatusBadRequest,
			expected: msgNoFileSubmitted,
		},
		{
			name: "no file field",
			request: func(t *testing.T) *http.Request {
				var body bytes.Buffer
				mw := multipart.NewWriter(&body)
				if err := mw.WriteField("decrypt_key", "abc"); err != nil {
					t.Fatal(err)
				}
				_ = mw.Close()
				req := httptest.NewRequest(http.MethodPost, "/convert", &body)
				req.Header.Set("Content-Type", mw.FormDataContentType())
				return req
			},
			status:   http.StatusBadRequest,
			expected: msgNoFileSubmitted,
		},
		{
			name:     "empty file name",
			request:  func(t *testing.T) *http.Request { return uploadRequest(t, "", nil, "") },
			status:   http.StatusBadRequest,
			expected: msgNoFileSelected,
		},
		{
			name:     "name sanitises to nothing",
			request:  func(t *testing.T) *http.Request { return uploadRequest(t, "???", []byte("x"), "") },
			status:   http.StatusBadRequest,
			expected: msgInvalidName,
		},
		{
			name: "too large",
			request: func(t *testing.T) *http.Request {
				return uploadRequest(t, "big.mov", bytes.Repeat([]byte("x"), 2<<20), "")
			},
			status:   http.StatusRequestEntityTooLarge,
			expected: msgTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			converter := &fakeConverter{succeed: true}
			env := newTestEnv(t, converter)

			req := tt.request(t)
			req.Header.Set("Accept", "application/json")
			rr := env.do(req)

			if rr.Code != tt.status {
				t.Errorf("status = %d, want %d", rr.Code, tt.status)
			}
			var resp map[string]string
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if resp["error"] != tt.expected {
				t.Errorf("error = %q, want %q", resp["error"], tt.expected)
			}
			if len(converter.requests) != 0 {
				t.Error("converter should not run")
			}
			if files := incomingFiles(t, env.config); len(files) != 0 {
				t.Errorf("nothing should be saved: %v", files)
			}
		})
	}
}

func TestConvertFormErrorHTML(t *testing.T) {
	env := newTestEnv(t, &fakeConverter{})

	rr := env.do(uploadRequest(t, "", nil, ""))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), msgNoFileSelected) {
		t.Error("page should show the form error")
	}
}

// =============================================================================
// File serving
// =============================================================================

func TestServeOutputs(t *testing.T) {
	env := newTestEnv(t, &fakeConverter{})
	dir := env.config.UploadDir

	files := map[string]string{
		"clip_converted.mp4": "0123456789",
		"clip_converted.jpg": "jpeg",
		"notes.txt":          "text",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	tests := []struct {
		name        string
		path        string
		status      int
		contentType string
		attachment  bool
	}{
		{"download", "/download/clip_converted.mp4", http.StatusOK, "video/mp4", true},
		{"video", "/video/clip_converted.mp4", http.StatusOK, "video/mp4", false},
		{"poster", "/poster/clip_converted.jpg", http.StatusOK, "image/jpeg", false},
		{"missing", "/download/nope.mp4", http.StatusNotFound, "", false},
		{"wrong extension", "/download/notes.txt", http.StatusNotFound, "", false},
		{"poster of video", "/poster/clip_converted.mp4", http.StatusNotFound, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			if tt.status != http.StatusOK {
				return
			}
			if ct := rr.Header().Get("Content-Type"); ct != tt.contentType {
				t.Errorf("Content-Type = %q, want %q", ct, tt.contentType)
			}
			disposition := rr.Header().Get("Content-Disposition")
			if tt.attachment != strings.HasPrefix(disposition, "attachment") {
				t.Errorf("Content-Disposition = %q", disposition)
			}
		})
	}
}

func TestServeOutputSanitisesName(t *testing.T) {
	env := newTestEnv(t, &fakeConverter{})
	if err := os.WriteFile(filepath.Join(env.config.IncomingDir, "secret.mp4"), []byte("s"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"../.incoming/secret.mp4", ".incoming/secret.mp4", "../../etc/passwd.mp4"} {
		req := httptest.NewRequest(http.MethodGet, "/download/x", nil)
		req = mux.SetURLVars(req, map[string]string{"filename": name})
		rr := httptest.NewRecorder()
		env.h.Download(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Errorf("%q: status = %d, want 404", name, rr.Code)
		}
	}
}

func TestVideoRange(t *testing.T) {
	env := newTestEnv(t, &fakeConverter{})
	path := filepath.Join(env.config.UploadDir, "clip_converted.mp4")
	if err := os.WriteFile(path, []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/video/clip_converted.mp4", nil)
	req.Header.Set("Range", "bytes=2-5")
	rr := env.do(req)

	if rr.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rr.Code)
	}
	if body, _ := io.ReadAll(rr.Body); string(body) != "2345" {
		t.Errorf("body = %q", body)
	}
}

// =============================================================================
// History API
// =============================================================================

func TestHistoryAPI(t *testing.T) {
	env := newTestEnv(t, &fakeConverter{succeed: true})
	env.do(uploadRequest(t, "one.mov", []byte("1"), ""))
	env.do(uploadRequest(t, "two.mov", []byte("2"), ""))

	rr := env.do(httptest.NewRequest(http.MethodGet, "/api/conversions?limit=1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d", rr.Code)
	}
	var list HistoryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Conversions) != 1 || list.Conversions[0].InputName != "two.mov" {
		t.Fatalf("unexpected list %+v", list.Conversions)
	}
	if list.Stats["succeeded"] != 2 {
		t.Errorf("stats = %v", list.Stats)
	}

	id := list.Conversions[0].ID
	rr = env.do(httptest.NewRequest(http.MethodGet, "/api/conversions/"+id, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d", rr.Code)
	}
	var c database.Conversion
	if err := json.Unmarshal(rr.Body.Bytes(), &c); err != nil {
		t.Fatal(err)
	}
	if c.Log == "" {
		t.Error("single conversion should include the log")
	}

	rr = env.do(httptest.NewRequest(http.MethodGet, "/api/conversions/unknown", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d", rr.Code)
	}

	rr = env.do(httptest.NewRequest(http.MethodGet, "/api/conversions?limit=abc", nil))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", rr.Code)
	}
}

func TestHistoryDisabled(t *testing.T) {
	env := newTestEnv(t, &fakeConverter{succeed: true})
	env.h.history = nil

	for _, path := range []string{"/api/conversions", "/api/conversions/x"} {
		rr := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", path, rr.Code)
		}
	}

	// Conversions still work without history.
	rr := env.do(uploadRequest(t, "clip.mov", []byte("movie"), ""))
	if rr.Code != http.StatusOK {
		t.Errorf("convert status = %d", rr.Code)
	}
	if stats := env.h.GetStats(); stats.HistoryByStatus != nil {
		t.Errorf("stats without history = %+v", stats)
	}
}

func TestGetStats(t *testing.T) {
	env := newTestEnv(t, &fakeConverter{succeed: true})
	env.do(uploadRequest(t, "clip.mov", []byte("movie"), ""))

	stats := env.h.GetStats()
	if stats.HistoryByStatus["succeeded"] != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.ReservedOutputs != 0 {
		t.Errorf("reserved = %d", stats.ReservedOutputs)
	}
}

// =============================================================================
// Probes
// =============================================================================

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, &fakeConverter{})

	rr := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("health status = %d", rr.Code)
	}
	var health HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &health); err != nil {
		t.Fatal(err)
	}
	if health.Status != statusHealthy || !health.Ready || !health.HistoryEnabled || !health.PostersEnabled {
		t.Errorf("unexpected health %+v", health)
	}

	rr = env.do(httptest.NewRequest(http.MethodHead, "/livez", nil))
	if rr.Code != http.StatusOK || rr.Body.Len() != 0 {
		t.Errorf("HEAD /livez = %d with %d bytes", rr.Code, rr.Body.Len())
	}

	rr = env.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("readyz status = %d", rr.Code)
	}

	rr = env.do(httptest.NewRequest(http.MethodGet, "/version", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"version"`) {
		t.Errorf("version = %d %s", rr.Code, rr.Body.String())
	}
}

func TestHealthDegradedHistory(t *testing.T) {
	env := newTestEnv(t, &fakeConverter{})
	env.history.failErr = errors.New("database is locked")

	rr := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	var health HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &health); err != nil {
		t.Fatal(err)
	}
	if rr.Code != http.StatusOK || health.Status != statusDegraded || health.HistoryError == "" {
		t.Errorf("unexpected health %d %+v", rr.Code, health)
	}
}

func TestShutdownProbes(t *testing.T) {
	env := newTestEnv(t, &fakeConverter{})
	env.h.BeginShutdown()

	for _, path := range []string{"/readyz", "/health"} {
		rr := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("%s status = %d, want 503", path, rr.Code)
		}
	}

	rr := env.do(httptest.NewRequest(http.MethodGet, "/livez", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("livez status = %d", rr.Code)
	}
}

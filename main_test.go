package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"video-converter/internal/handlers"
	"video-converter/internal/startup"
	"video-converter/internal/transcoder"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
)

type idleConverter struct{}

func (idleConverter) Convert(context.Context, transcoder.Request) (*transcoder.Outcome, error) {
	return &transcoder.Outcome{}, nil
}

func (idleConverter) Active() []string { return nil }

func newTestServer(t *testing.T, passwordHash string) http.Handler {
	t.Helper()

	dir := t.TempDir()
	config := &startup.Config{
		FFmpegPath:         "ffmpeg",
		UploadDir:          dir,
		IncomingDir:        filepath.Join(dir, ".incoming"),
		MaxUploadBytes:     1 << 20,
		AccessPasswordHash: passwordHash,
	}
	h := handlers.New(idleConverter{}, nil, nil, config)
	router := mux.NewRouter()
	h.RegisterRoutes(router, nil)
	return buildHandler(router, config)
}

func TestBuildHandlerWithoutPassword(t *testing.T) {
	handler := newTestServer(t, "")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Error("security headers missing")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("nosniff header missing")
	}
}

func TestBuildHandlerPasswordGate(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	handler := newTestServer(t, string(hash))

	tests := []struct {
		name     string
		path     string
		password string
		want     int
	}{
		{"page without credentials", "/", "", http.StatusUnauthorized},
		{"page with wrong password", "/", "nope", http.StatusUnauthorized},
		{"page with password", "/", "letmein", http.StatusOK},
		{"health is exempt", "/livez", "", http.StatusOK},
		{"version is exempt", "/version", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.password != "" {
				req.SetBasicAuth("anyone", tt.password)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestBuildHandlerCompressesPage(t *testing.T) {
	handler := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Header().Get("Content-Encoding") != "gzip" {
		t.Errorf("Content-Encoding = %q, want gzip", rr.Header().Get("Content-Encoding"))
	}
}

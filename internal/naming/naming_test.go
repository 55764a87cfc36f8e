package naming

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestSecureFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"My cool movie.mov", "My_cool_movie.mov"},
		{"../../../etc/passwd", "etc_passwd"},
		{`a\b.mp4`, "a_b.mp4"},
		{"café.mp4", "cafe.mp4"},
		{"ｆｉｌｅ.ts", "file.ts"},
		{"タイトル.mp4", "mp4"},
		{"CON.txt", "_CON.txt"},
		{"nul", "_nul"},
		{"  spaced\tout  .mkv", "spaced_out_.mkv"},
		{"a;b|c$.mp4", "abc.mp4"},
		{"___", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := SecureFilename(tt.input); got != tt.expected {
				t.Errorf("SecureFilename(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		input string
		stem  string
		ext   string
		err   error
	}{
		{"clip.TS", "clip", ".ts", nil},
		{"holiday video.mov", "holiday_video", ".mov", nil},
		{"タイトル.mp4", "upload", ".mp4", nil},
		{`C:\Users\me\movie.mkv`, "movie", ".mkv", nil},
		{"noext", "noext", "", nil},
		{"日本語", "", "", ErrInvalidName},
		{"", "", "", ErrInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			stem, ext, err := SplitName(tt.input)
			if !errors.Is(err, tt.err) {
				t.Fatalf("SplitName(%q) error = %v, want %v", tt.input, err, tt.err)
			}
			if stem != tt.stem || ext != tt.ext {
				t.Errorf("SplitName(%q) = (%q, %q), want (%q, %q)", tt.input, stem, ext, tt.stem, tt.ext)
			}
		})
	}
}

func TestUploadPath(t *testing.T) {
	dir := t.TempDir()

	p1, stem, err := UploadPath(dir, "stream.M2TS")
	if err != nil {
		t.Fatalf("UploadPath() error: %v", err)
	}
	if stem != "stream" {
		t.Errorf("stem = %q, want stream", stem)
	}
	if filepath.Dir(p1) != filepath.Join(dir, IncomingDir) {
		t.Errorf("upload should live in the incoming directory, got %s", p1)
	}
	if !strings.HasSuffix(p1, "-stream.m2ts") {
		t.Errorf("upload path should keep the extension, got %s", p1)
	}

	p2, _, err := UploadPath(dir, "stream.M2TS")
	if err != nil {
		t.Fatalf("UploadPath() error: %v", err)
	}
	if p1 == p2 {
		t.Error("two uploads of the same name must get different paths")
	}

	if _, _, err := UploadPath(dir, "日本語"); !errors.Is(err, ErrInvalidName) {
		t.Errorf("expected ErrInvalidName, got %v", err)
	}
}

func TestReserverProbesExistingFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"clip_converted.mp4", "clip_converted_1.mp4"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	r := NewReserver()
	got, err := r.Reserve(dir, "clip", ".mp4")
	if err != nil {
		t.Fatalf("Reserve() error: %v", err)
	}
	if expected := filepath.Join(dir, "clip_converted_2.mp4"); got != expected {
		t.Errorf("Reserve() = %s, want %s", got, expected)
	}
}

func TestReserverClaims(t *testing.T) {
	dir := t.TempDir()
	r := NewReserver()

	first, err := r.Reserve(dir, "clip", ".mp4")
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Reserve(dir, "clip", ".mp4")
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Fatal("claimed path handed out twice")
	}
	if filepath.Base(first) != "clip_converted.mp4" || filepath.Base(second) != "clip_converted_1.mp4" {
		t.Errorf("unexpected names %s, %s", first, second)
	}
	if r.Claimed() != 2 {
		t.Errorf("Claimed() = %d, want 2", r.Claimed())
	}

	r.Release(first)
	again, err := r.Reserve(dir, "clip", ".mp4")
	if err != nil {
		t.Fatal(err)
	}
	if again != first {
		t.Errorf("released path should be reusable, got %s", again)
	}
}

func TestReserverConcurrent(t *testing.T) {
	dir := t.TempDir()
	r := NewReserver()

	const n = 20
	paths := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := r.Reserve(dir, "same", ".mp4")
			if err != nil {
				t.Error(err)
				return
			}
			paths <- p
		}()
	}
	wg.Wait()
	close(paths)

	seen := make(map[string]bool)
	for p := range paths {
		if seen[p] {
			t.Errorf("duplicate reservation %s", p)
		}
		seen[p] = true
	}
	if len(seen) != n {
		t.Errorf("expected %d distinct paths, got %d", n, len(seen))
	}
}

package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"video-converter/internal/logging"
	"video-converter/internal/metrics"
	"video-converter/internal/transcoder"

	"github.com/disintegration/imaging"
)

// DefaultPosterWidth is used when a non-positive width is configured.
const DefaultPosterWidth = 640

// posterQuality is the JPEG quality of saved posters.
const posterQuality = 85

// ErrPostersDisabled is returned by Generate when posters are turned off.
var ErrPostersDisabled = errors.New("posters disabled")

// PosterGenerator extracts and scales poster frames.
type PosterGenerator struct {
	ffmpegPath string
	width      int
	enabled    bool
	runner     transcoder.Runner
}

// NewPosterGenerator creates a generator. A nil runner uses
// transcoder.ExecRunner.
func NewPosterGenerator(ffmpegPath string, width int, enabled bool, runner transcoder.Runner) *PosterGenerator {
	if width <= 0 {
		width = DefaultPosterWidth
	}
	if runner == nil {
		runner = transcoder.ExecRunner{}
	}
	if enabled {
		logging.Debug("PosterGenerator: enabled, width %d", width)
	} else {
		logging.Debug("PosterGenerator: disabled")
	}
	return &PosterGenerator{
		ffmpegPath: ffmpegPath,
		width:      width,
		enabled:    enabled,
		runner:     runner,
	}
}

// IsEnabled reports whether posters are generated.
func (p *PosterGenerator) IsEnabled() bool {
	return p.enabled
}

// PosterPath returns the poster location for a converted video.
func PosterPath(videoPath string) string {
	return strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + ".jpg"
}

// Generate writes the poster for videoPath and returns its path.
func (p *PosterGenerator) Generate(ctx context.Context, videoPath string) (string, error) {
	if !p.enabled {
		return "", ErrPostersDisabled
	}

	start := time.Now()
	status := "success"
	defer func() {
		metrics.PosterGenerationsTotal.WithLabelValues(status).Inc()
		metrics.PosterGenerationDuration.Observe(time.Since(start).Seconds())
	}()

	frame, err := os.CreateTemp(filepath.Dir(videoPath), ".poster-*.png")
	if err != nil {
		status = "error_extract"
		return "", fmt.Errorf("failed to create frame file: %w", err)
	}
	framePath := frame.Name()
	_ = frame.Close()
	defer func() { _ = os.Remove(framePath) }()

	if err := p.extractFrame(ctx, videoPath, framePath); err != nil {
		status = "error_extract"
		return "", err
	}

	img, err := imaging.Open(framePath)
	if err != nil {
		status = "error_decode"
		return "", fmt.Errorf("failed to decode frame: %w", err)
	}

	posterPath := PosterPath(videoPath)
	if err := p.save(p.scale(img), posterPath); err != nil {
		status = "error_encode"
		return "", err
	}

	logging.Debug("Poster generated: %s (%s)", posterPath, time.Since(start))
	return posterPath, nil
}

// extractFrame grabs the frame at one second, falling back to the first
// frame for clips shorter than that.
func (p *PosterGenerator) extractFrame(ctx context.Context, videoPath, framePath string) error {
	attempts := [][]string{
		{"-y", "-ss", "00:00:01", "-i", videoPath, "-frames:v", "1", framePath},
		{"-y", "-i", videoPath, "-frames:v", "1", framePath},
	}

	var lastErr error
	for _, args := range attempts {
		res, err := p.runner.Run(ctx, p.ffmpegPath, args)
		if err != nil {
			return fmt.Errorf("ffmpeg could not be started: %w", err)
		}
		if res.ExitCode == 0 && frameWritten(framePath) {
			return nil
		}
		lastErr = fmt.Errorf("ffmpeg exited with code %d: %s", res.ExitCode, lastLine(res.Stderr))
		logging.Debug("Poster frame extraction failed for %s: %v", videoPath, lastErr)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return lastErr
}

// scale fits the frame to the configured width, never upscaling.
func (p *PosterGenerator) scale(img image.Image) image.Image {
	if img.Bounds().Dx() <= p.width {
		return img
	}
	return imaging.Resize(img, p.width, 0, imaging.Lanczos)
}

// save writes through a temporary file so a half-written poster is never
// served.
func (p *PosterGenerator) save(img image.Image, posterPath string) error {
	tmp := posterPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create poster: %w", err)
	}
	if err := imaging.Encode(f, img, imaging.JPEG, imaging.JPEGQuality(posterQuality)); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to encode poster: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write poster: %w", err)
	}
	if err := os.Rename(tmp, posterPath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to store poster: %w", err)
	}
	return nil
}

func frameWritten(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

func lastLine(b []byte) string {
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	return lines[len(lines)-1]
}

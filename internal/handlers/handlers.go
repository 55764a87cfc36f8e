package handlers

import (
	"context"
	"sync/atomic"
	"time"

	"video-converter/internal/database"
	"video-converter/internal/metrics"
	"video-converter/internal/naming"
	"video-converter/internal/startup"
	"video-converter/internal/transcoder"
)

// Converter runs conversion sessions.
type Converter interface {
	Convert(ctx context.Context, req transcoder.Request) (*transcoder.Outcome, error)
	Active() []string
}

// History stores finished sessions.
type History interface {
	Record(ctx context.Context, c *database.Conversion) error
	Get(ctx context.Context, id string) (*database.Conversion, error)
	List(ctx context.Context, limit int) ([]database.Conversion, error)
	Stats(ctx context.Context) (map[string]int, error)
	Ping(ctx context.Context) error
}

// PosterMaker renders poster frames for converted videos.
type PosterMaker interface {
	IsEnabled() bool
	Generate(ctx context.Context, videoPath string) (string, error)
}

// Handlers holds the dependencies shared by all handlers.
type Handlers struct {
	converter Converter
	history   History
	posters   PosterMaker
	reserver  *naming.Reserver
	config    *startup.Config

	startTime    time.Time
	shuttingDown atomic.Bool
}

// New creates the handlers. history and posters may be nil.
func New(converter Converter, history History, posters PosterMaker, config *startup.Config) *Handlers {
	return &Handlers{
		converter: converter,
		history:   history,
		posters:   posters,
		reserver:  naming.NewReserver(),
		config:    config,
		startTime: time.Now(),
	}
}

// BeginShutdown makes the readiness probe fail so that load balancers stop
// sending new uploads.
func (h *Handlers) BeginShutdown() {
	h.shuttingDown.Store(true)
}

// GetStats implements metrics.StatsProvider.
func (h *Handlers) GetStats() metrics.Stats {
	stats := metrics.Stats{ReservedOutputs: h.reserver.Claimed()}
	if h.history == nil {
		return stats
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	counts, err := h.history.Stats(ctx)
	if err == nil {
		stats.HistoryByStatus = counts
	}
	return stats
}

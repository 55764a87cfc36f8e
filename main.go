package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"video-converter/internal/database"
	"video-converter/internal/handlers"
	"video-converter/internal/logging"
	"video-converter/internal/media"
	"video-converter/internal/memory"
	"video-converter/internal/metrics"
	"video-converter/internal/middleware"
	"video-converter/internal/startup"
	"video-converter/internal/transcoder"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 30 * time.Second
	collectInterval = time.Minute
)

func main() {
	startTime := time.Now()
	logging.Configure(logging.Options{})
	memory.ConfigureFromEnv()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion, config.FFmpegPath)

	// Initialize history; the service runs without it when unavailable
	var history handlers.History
	var db *database.Database
	if config.HistoryEnabled {
		dbStart := time.Now()
		db, err = database.New(context.Background(), config.DatabasePath)
		startup.LogHistoryInit(time.Since(dbStart), err)
		if err == nil {
			history = db
		}
	} else {
		startup.LogHistoryInit(0, errors.New("database directory is not writable"))
	}

	// Initialize transcoder
	startup.LogTranscoderInit(config.FFmpegPath, config.AttemptTimeout)
	trans := transcoder.New(transcoder.Options{
		FFmpegPath:     config.FFmpegPath,
		AttemptTimeout: config.AttemptTimeout,
		Observer:       metrics.NewTranscoderObserver(),
	})

	posters := media.NewPosterGenerator(config.FFmpegPath, config.PosterWidth, config.PostersEnabled, nil)

	// Initialize handlers
	h := handlers.New(trans, history, posters, config)

	// Setup router
	router := mux.NewRouter()
	h.RegisterRoutes(router, middleware.ConvertRateLimit(config.ConvertRateLimit))

	// Log routes dynamically
	startup.LogHTTPRoutes(router, config.LogStaticFiles, config.LogHealthChecks)

	// Start metrics collector
	dbPath := ""
	if db != nil {
		dbPath = config.DatabasePath
	}
	collector := metrics.NewCollector(h, dbPath, config.UploadDir, collectInterval)
	collector.Start()

	srv := &http.Server{
		Addr:    ":" + config.Port,
		Handler: buildHandler(router, config),
		// Uploads and conversions take as long as they take; only the
		// headers are bounded.
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", h.MetricsHandler())
		metricsSrv = &http.Server{
			Addr:              ":" + config.MetricsPort,
			Handler:           metricsMux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error { return serve(srv) })
	if metricsSrv != nil {
		g.Go(func() error { return serve(metricsSrv) })
	}

	// Graceful shutdown on a signal or when either server fails
	g.Go(func() error {
		select {
		case sig := <-sigChan:
			startup.LogShutdownInitiated(sig.String())
		case <-ctx.Done():
			startup.LogShutdownInitiated("server error")
		}
		shutdown(h, trans, collector, srv, metricsSrv)
		return nil
	})

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if config.OpenBrowser {
		startup.OpenBrowser(startup.LocalURL(config.Port))
	}

	err = g.Wait()
	if db != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Warn("Failed to close history database: %v", closeErr)
		}
	}
	if err != nil {
		startup.LogFatal("Server error: %v", err)
	}
}

// buildHandler wraps the router in the middleware chain, outermost first:
// access log, request metrics, security headers, compression, password gate.
func buildHandler(router http.Handler, config *startup.Config) http.Handler {
	handler := middleware.BasicAuth(middleware.DefaultAuthConfig(config.AccessPasswordHash))(router)
	handler = middleware.Compression(middleware.DefaultCompressionConfig())(handler)
	handler = middleware.SecurityHeaders("")(handler)
	handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	return middleware.Logger(loggingConfig)(handler)
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func shutdown(h *handlers.Handlers, trans *transcoder.Transcoder, collector *metrics.Collector, servers ...*http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	startup.LogShutdownStep("Refusing new conversions")
	h.BeginShutdown()

	startup.LogShutdownStep("Cleaning up transcoder")
	trans.Cleanup()
	startup.LogShutdownStepComplete("Transcoder cleanup complete")

	startup.LogShutdownStep("Shutting down HTTP servers")
	for _, srv := range servers {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(ctx); err != nil {
			logging.Warn("Server shutdown error: %v", err)
		}
	}
	startup.LogShutdownStepComplete("HTTP servers stopped")

	collector.Stop()
	startup.LogShutdownComplete()
}

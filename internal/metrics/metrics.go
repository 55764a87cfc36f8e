package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_converter_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_converter_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300, 1800},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_converter_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	HTTPRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_converter_http_rate_limited_total",
			Help: "Total number of conversion requests rejected by the rate limiter",
		},
	)

	AuthFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_converter_auth_failures_total",
			Help: "Total number of requests rejected by the password gate",
		},
	)
)

// Conversion metrics
var (
	ConversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_converter_conversions_total",
			Help: "Total number of conversion sessions by final status",
		},
		[]string{"status"}, // "succeeded", "failed", "error", "canceled"
	)

	ConversionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_converter_conversion_duration_seconds",
			Help:    "Duration of whole conversion sessions in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 3600, 7200},
		},
		[]string{"status"},
	)

	ConversionsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_converter_conversions_in_progress",
			Help: "Number of conversion sessions currently running",
		},
	)

	ConversionRounds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "video_converter_conversion_rounds",
			Help:    "Number of rounds a conversion session needed",
			Buckets: []float64{1, 2},
		},
	)

	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_converter_attempts_total",
			Help: "Total number of FFmpeg invocations by mode, round and result",
		},
		[]string{"mode", "round", "result"}, // result: "success", "failure", "timeout"
	)

	AttemptDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_converter_attempt_duration_seconds",
			Help:    "Duration of single FFmpeg invocations in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"mode"},
	)

	UploadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "video_converter_upload_bytes",
			Help:    "Size of uploaded input files in bytes",
			Buckets: prometheus.ExponentialBuckets(1<<20, 4, 8), // 1 MiB .. 16 GiB
		},
	)

	OutputBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "video_converter_output_bytes",
			Help:    "Size of converted MP4 files in bytes",
			Buckets: prometheus.ExponentialBuckets(1<<20, 4, 8),
		},
	)
)

// Poster metrics
var (
	PosterGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_converter_poster_generations_total",
			Help: "Total number of poster frame generations by status",
		},
		[]string{"status"}, // "success", "error_extract", "error_decode", "error_encode"
	)

	PosterGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "video_converter_poster_generation_duration_seconds",
			Help:    "Poster frame generation duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)
)

// History metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_converter_db_queries_total",
			Help: "Total number of history database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_converter_db_query_duration_seconds",
			Help:    "History database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "video_converter_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)

	HistoryConversions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "video_converter_history_conversions",
			Help: "Number of conversions recorded in history by status",
		},
		[]string{"status"},
	)

	HistoryWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_converter_history_write_errors_total",
			Help: "Total number of conversions that could not be recorded in history",
		},
	)
)

// Storage metrics
var (
	UploadDirBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_converter_upload_dir_bytes",
			Help: "Total size of files in the upload directory",
		},
	)

	GoMemLimitBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_converter_go_memory_limit_bytes",
			Help: "Soft memory limit applied to the Go runtime at startup",
		},
	)

	OutputNamesReserved = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_converter_output_names_reserved",
			Help: "Number of output paths currently reserved by running sessions",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "video_converter_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version", "ffmpeg_path"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion, ffmpegPath string) {
	AppInfo.WithLabelValues(version, commit, goVersion, ffmpegPath).Set(1)
}

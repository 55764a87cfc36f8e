// Package metrics provides Prometheus instrumentation for the video converter.
//
// All metrics are prefixed with "video_converter_" and registered with the
// default registry through promauto, so they are served by promhttp.Handler
// on the metrics port.
//
// # Metric Categories
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal: Counter of requests by method, path, and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of currently processing requests
//   - HTTPRateLimited: Counter of conversion requests rejected by the rate limiter
//   - AuthFailures: Counter of requests rejected by the password gate
//
// ## Conversion Metrics
//
// Recorded by the observer returned from [NewTranscoderObserver]:
//   - ConversionsTotal / ConversionDuration by final status
//   - ConversionsInProgress: Gauge of running sessions
//   - ConversionRounds: Histogram of rounds needed per session
//   - AttemptsTotal by mode, round, and result
//   - AttemptDuration by mode
//
// Recorded by the convert handler:
//   - UploadBytes / OutputBytes: Input and output file sizes
//
// ## Poster, History, and Storage Metrics
//
//   - PosterGenerationsTotal / PosterGenerationDuration
//   - DBQueryTotal / DBQueryDuration by history operation
//   - DBSizeBytes, HistoryConversions, UploadDirBytes, OutputNamesReserved:
//     refreshed periodically by [Collector]
//   - HistoryWriteErrors: conversions that could not be recorded
//
// # Initialization
//
// Call [InitializeMetrics] once at startup so every label combination is
// exported from the first scrape, and [SetAppInfo] with the build details.
package metrics

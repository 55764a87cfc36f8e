// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration is loaded once by [LoadConfig]. Every key is read from the
// environment first; when CONFIG_FILE names a TOML file, its top-level keys
// (same names, any case) supply values the environment leaves unset.
//
//   - PORT: HTTP server port (default: 5000)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - FFMPEG_PATH: FFmpeg executable (default: /opt/homebrew/bin/ffmpeg on
//     macOS when present, ffmpeg.exe on Windows, ffmpeg elsewhere)
//   - ATTEMPT_TIMEOUT: Limit for one FFmpeg invocation, as a Go duration or
//     seconds (default: none)
//   - UPLOAD_DIR: Uploads and converted files (default: .uploads)
//   - DATABASE_DIR: Conversion history database (default: .data)
//   - MAX_UPLOAD_SIZE_MB: Upload size limit (default: 4096)
//   - KEEP_UPLOADS: Keep raw uploads after conversion (default: false)
//   - POSTERS_ENABLED: Generate preview poster frames (default: true)
//   - POSTER_WIDTH: Poster width in pixels (default: 640)
//   - ACCESS_PASSWORD_HASH: bcrypt hash enabling the password gate
//   - CONVERT_RATE_LIMIT: Conversions per minute per client, 0 disables
//     (default: 10)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_STATIC_FILES: Log static file requests (default: false)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//   - OPEN_BROWSER: Open the local URL in a browser at startup (default: false)
//
// # Directory Setup
//
//   - Upload directory: Required, must be writable
//   - Database directory: Optional, enables conversion history if writable
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Lifecycle Logging
//
//   - [LogHistoryInit]: Database initialization timing
//   - [LogTranscoderInit]: Transcoder settings and FFmpeg availability
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated]: Graceful shutdown start
//   - [LogShutdownComplete]: Shutdown completion
package startup

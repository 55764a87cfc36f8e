package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"video-converter/internal/logging"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	"github.com/pelletier/go-toml/v2"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// DatabaseFile is the history database's name inside DATABASE_DIR.
const DatabaseFile = "conversions.db"

// homebrewFFmpeg is where Homebrew installs ffmpeg on Apple silicon.
const homebrewFFmpeg = "/opt/homebrew/bin/ffmpeg"

// Config holds all application configuration
type Config struct {
	Port           string
	MetricsPort    string
	MetricsEnabled bool

	FFmpegPath     string
	AttemptTimeout time.Duration

	UploadDir      string
	DatabaseDir    string
	MaxUploadBytes int64
	KeepUploads    bool

	PostersEnabled bool
	PosterWidth    int

	AccessPasswordHash string
	ConvertRateLimit   int

	LogStaticFiles  bool
	LogHealthChecks bool
	OpenBrowser     bool

	// ConfigFile is the TOML file that supplied defaults, if any.
	ConfigFile string

	// Derived paths
	IncomingDir  string
	DatabasePath string

	// Feature flags based on directory availability
	HistoryEnabled bool
}

// settings resolves a key from the environment first, then from the
// optional TOML file, then from the built-in default.
type settings struct {
	file map[string]string
}

// LoadConfig loads and validates configuration from environment variables
// and the optional TOML file named by CONFIG_FILE.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	configFile := os.Getenv("CONFIG_FILE")
	s, err := loadSettings(configFile)
	if err != nil {
		return nil, err
	}
	if configFile != "" {
		logging.Info("  CONFIG_FILE:         %s", configFile)
	}

	port := s.get("PORT", "5000")
	metricsPort := s.get("METRICS_PORT", "9090")
	metricsEnabled := s.getBool("METRICS_ENABLED", true)
	ffmpegPath := s.get("FFMPEG_PATH", DefaultFFmpegPath(runtime.GOOS, fileExists))
	uploadDir := s.get("UPLOAD_DIR", ".uploads")
	databaseDir := s.get("DATABASE_DIR", ".data")
	maxUploadMB := s.getInt("MAX_UPLOAD_SIZE_MB", 4096)
	attemptTimeout := s.getDuration("ATTEMPT_TIMEOUT", 0)
	keepUploads := s.getBool("KEEP_UPLOADS", false)
	postersEnabled := s.getBool("POSTERS_ENABLED", true)
	posterWidth := s.getInt("POSTER_WIDTH", 640)
	passwordHash := s.get("ACCESS_PASSWORD_HASH", "")
	rateLimit := s.getInt("CONVERT_RATE_LIMIT", 10)
	logStaticFiles := s.getBool("LOG_STATIC_FILES", false)
	logHealthChecks := s.getBool("LOG_HEALTH_CHECKS", true)
	openBrowser := s.getBool("OPEN_BROWSER", false)

	if maxUploadMB <= 0 {
		logging.Warn("  Invalid MAX_UPLOAD_SIZE_MB %d, using default: 4096", maxUploadMB)
		maxUploadMB = 4096
	}
	if posterWidth <= 0 {
		logging.Warn("  Invalid POSTER_WIDTH %d, using default: 640", posterWidth)
		posterWidth = 640
	}
	if rateLimit < 0 {
		rateLimit = 0
	}
	maxUploadBytes := int64(maxUploadMB) << 20

	logging.Info("  PORT:                %s", port)
	logging.Info("  METRICS_PORT:        %s", metricsPort)
	logging.Info("  METRICS_ENABLED:     %v", metricsEnabled)
	logging.Info("  FFMPEG_PATH:         %s", ffmpegPath)
	logging.Info("  ATTEMPT_TIMEOUT:     %s", timeoutString(attemptTimeout))
	logging.Info("  UPLOAD_DIR:          %s", uploadDir)
	logging.Info("  DATABASE_DIR:        %s", databaseDir)
	logging.Info("  MAX_UPLOAD_SIZE:     %s", humanize.IBytes(uint64(maxUploadBytes)))
	logging.Info("  KEEP_UPLOADS:        %v", keepUploads)
	logging.Info("  POSTERS_ENABLED:     %v (width %d)", postersEnabled, posterWidth)
	logging.Info("  PASSWORD_GATE:       %s", enabledString(passwordHash != ""))
	logging.Info("  CONVERT_RATE_LIMIT:  %s", rateLimitString(rateLimit))
	logging.Info("  LOG_STATIC_FILES:    %v", logStaticFiles)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", logHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	uploadDir, err = filepath.Abs(uploadDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upload directory path: %w", err)
	}
	logging.Info("  Upload directory (absolute): %s", uploadDir)

	databaseDir, err = filepath.Abs(databaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	logging.Info("  Database directory (absolute): %s", databaseDir)

	config := &Config{
		Port:               port,
		MetricsPort:        metricsPort,
		MetricsEnabled:     metricsEnabled,
		FFmpegPath:         ffmpegPath,
		AttemptTimeout:     attemptTimeout,
		UploadDir:          uploadDir,
		DatabaseDir:        databaseDir,
		MaxUploadBytes:     maxUploadBytes,
		KeepUploads:        keepUploads,
		PostersEnabled:     postersEnabled,
		PosterWidth:        posterWidth,
		AccessPasswordHash: passwordHash,
		ConvertRateLimit:   rateLimit,
		LogStaticFiles:     logStaticFiles,
		LogHealthChecks:    logHealthChecks,
		OpenBrowser:        openBrowser,
		ConfigFile:         configFile,
		IncomingDir:        filepath.Join(uploadDir, ".incoming"),
		DatabasePath:       filepath.Join(databaseDir, DatabaseFile),
	}

	// Uploads and outputs live here, so it is required
	if err := ensureDirectory(uploadDir, "upload"); err != nil {
		return nil, fmt.Errorf("upload directory error: %w", err)
	}
	if err := ensureDirectory(config.IncomingDir, "incoming"); err != nil {
		return nil, fmt.Errorf("incoming directory error: %w", err)
	}
	logging.Debug("  Testing upload directory write access...")
	if err := testWriteAccess(config.IncomingDir); err != nil {
		return nil, fmt.Errorf("upload directory is not writable: %w", err)
	}
	logging.Info("  [OK] Upload directory is writable")

	// Conversion history is optional
	config.HistoryEnabled = setupOptionalDir(databaseDir, "history")

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    History:     %s", enabledString(config.HistoryEnabled))
	logging.Info("    Posters:     %s", enabledString(config.PostersEnabled))
	logging.Info("    Metrics:     %s", enabledString(config.MetricsEnabled))

	return config, nil
}

// DefaultFFmpegPath picks the ffmpeg executable for an OS when FFMPEG_PATH
// is unset.
func DefaultFFmpegPath(goos string, exists func(string) bool) string {
	switch goos {
	case "darwin":
		if exists(homebrewFFmpeg) {
			return homebrewFFmpeg
		}
	case "windows":
		return "ffmpeg.exe"
	}
	return "ffmpeg"
}

func loadSettings(path string) (settings, error) {
	s := settings{file: map[string]string{}}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("read config file: %w", err)
	}

	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return s, fmt.Errorf("parse config file: %w", err)
	}

	for key, value := range raw {
		switch v := value.(type) {
		case map[string]any, []any:
			logging.Warn("  Ignoring non-scalar config key %q", key)
		default:
			s.file[strings.ToUpper(key)] = fmt.Sprint(v)
		}
	}
	return s, nil
}

func (s settings) get(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if value, ok := s.file[key]; ok && value != "" {
		return value
	}
	return defaultValue
}

func (s settings) getBool(key string, defaultValue bool) bool {
	value := s.get(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func (s settings) getInt(key string, defaultValue int) int {
	value := s.get(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// getDuration accepts a Go duration ("90s", "10m") or a bare number of
// seconds.
func (s settings) getDuration(key string, defaultValue time.Duration) time.Duration {
	value := s.get(key, "")
	if value == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			logging.Warn("Negative value for %s: %q, using default: %v", key, value, defaultValue)
			return defaultValue
		}
		return time.Duration(secs) * time.Second
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed < 0 {
		logging.Warn("Invalid duration value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func setupOptionalDir(path, name string) bool {
	logging.Debug("  Setting up %s directory: %s", name, path)

	if err := os.MkdirAll(path, 0o755); err != nil {
		logging.Warn("    Failed to create %s directory: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}

	if err := testWriteAccess(path); err != nil {
		logging.Warn("    %s directory is not writable: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}

	logging.Debug("    [OK] %s directory ready", name)
	return true
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

func timeoutString(d time.Duration) string {
	if d <= 0 {
		return "none"
	}
	return d.String()
}

func rateLimitString(perMinute int) string {
	if perMinute <= 0 {
		return "off"
	}
	return fmt.Sprintf("%d/min per client", perMinute)
}

// LogHistoryInit logs conversion history initialization
func LogHistoryInit(duration time.Duration, err error) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HISTORY INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	if err != nil {
		logging.Warn("  History disabled: %v", err)
		return
	}
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogTranscoderInit logs transcoder settings and checks that FFmpeg starts.
// A missing FFmpeg is only a warning; conversions report it when they run.
func LogTranscoderInit(ffmpegPath string, attemptTimeout time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("TRANSCODER INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Attempt timeout: %s", timeoutString(attemptTimeout))

	if err := checkFFmpeg(ffmpegPath); err != nil {
		logging.Warn("  FFmpeg check failed: %v", err)
		logging.Warn("  Conversions will fail until FFMPEG_PATH points to a working ffmpeg")
	} else {
		logging.Info("  [OK] FFmpeg is available")
	}
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes at debug level
func LogHTTPRoutes(router *mux.Router, logStaticFiles, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}
			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
		}
	}

	logging.Info("  HTTP logging enabled")
	if logStaticFiles {
		logging.Info("    Static file logging: ON")
	} else {
		logging.Info("    Static file logging: OFF (set LOG_STATIC_FILES=true to enable)")
	}
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Application:   http://0.0.0.0:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Local access:")
	logging.Info("    Application:   %s", LocalURL(config.Port))
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LocalURL is the loopback address of the application server.
func LocalURL(port string) string {
	return "http://127.0.0.1:" + port + "/"
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
 __     ___     _               ____                          _
 \ \   / (_) __| | ___  ___    / ___|___  _ ____   _____ _ __| |_
  \ \ / /| |/ _' |/ _ \/ _ \  | |   / _ \| '_ \ \ / / _ \ '__| __|
   \ V / | | (_| |  __/ (_) | | |__| (_) | | | \ V /  __/ |  | |_
    \_/  |_|\__,_|\___|\___/   \____\___/|_| |_|\_/ \___|_|   \__|

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func checkFFmpeg(ffmpegPath string) error {
	path, err := exec.LookPath(ffmpegPath)
	if err != nil {
		return fmt.Errorf("%s not found: %w", ffmpegPath, err)
	}
	logging.Debug("  FFmpeg path: %s", path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return fmt.Errorf("failed to get ffmpeg version: %w", err)
	}

	if first, _, _ := strings.Cut(string(output), "\n"); first != "" {
		logging.Info("  FFmpeg version: %s", strings.TrimSpace(first))
	}
	return nil
}

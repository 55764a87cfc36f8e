package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"video-converter/internal/logging"
	"video-converter/internal/metrics"

	"github.com/dustin/go-humanize"
)

// DefaultMemoryRatio is the share of the container limit given to the Go heap.
// The rest is left to FFmpeg, which holds decoded frames for the whole run.
const DefaultMemoryRatio = 0.75

// Source values reported in ConfigResult.
const (
	SourceGoMemLimit  = "GOMEMLIMIT"
	SourceMemoryLimit = "MEMORY_LIMIT"
	SourceNone        = "none"
)

// ConfigResult describes what ConfigureFromEnv did.
type ConfigResult struct {
	Configured     bool
	Source         string
	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

// ConfigureFromEnv sets the soft memory limit from MEMORY_LIMIT and
// MEMORY_RATIO unless GOMEMLIMIT is already set. Call it before the first
// large allocation.
func ConfigureFromEnv() ConfigResult {
	return configure(os.Getenv, debug.SetMemoryLimit)
}

func configure(getenv func(string) string, setLimit func(int64) int64) ConfigResult {
	if env := getenv("GOMEMLIMIT"); env != "" {
		result := ConfigResult{Source: SourceGoMemLimit}
		if limit := setLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.GoMemLimit = limit
			metrics.GoMemLimitBytes.Set(float64(limit))
		}
		logging.Info("GOMEMLIMIT set via environment: %s", env)
		return result
	}

	raw := getenv("MEMORY_LIMIT")
	if raw == "" {
		logging.Debug("MEMORY_LIMIT not set, leaving GOMEMLIMIT unset")
		return ConfigResult{Source: SourceNone}
	}

	containerLimit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || containerLimit <= 0 {
		logging.Warn("Ignoring invalid MEMORY_LIMIT %q", raw)
		return ConfigResult{Source: SourceNone}
	}

	ratio := parseRatio(getenv("MEMORY_RATIO"))
	limit := int64(float64(containerLimit) * ratio)
	setLimit(limit)
	metrics.GoMemLimitBytes.Set(float64(limit))

	logging.Info("Configured GOMEMLIMIT: %s (%.0f%% of %s container limit)",
		humanize.IBytes(uint64(limit)), ratio*100, humanize.IBytes(uint64(containerLimit)))

	return ConfigResult{
		Configured:     true,
		Source:         SourceMemoryLimit,
		ContainerLimit: containerLimit,
		GoMemLimit:     limit,
		Ratio:          ratio,
	}
}

func parseRatio(raw string) float64 {
	if raw == "" {
		return DefaultMemoryRatio
	}
	ratio, err := strconv.ParseFloat(raw, 64)
	if err != nil || ratio <= 0 || ratio > 1 {
		logging.Warn("MEMORY_RATIO %q must be in (0, 1], using %.2f", raw, DefaultMemoryRatio)
		return DefaultMemoryRatio
	}
	return ratio
}

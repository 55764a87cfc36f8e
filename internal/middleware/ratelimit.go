package middleware

import (
	"net/http"
	"strconv"
	"time"

	"video-converter/internal/logging"
	"video-converter/internal/metrics"

	"github.com/go-chi/httprate"
)

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	// RequestLimit is the maximum number of requests allowed in the window.
	// Zero or less disables the limiter.
	RequestLimit int
	WindowSize   time.Duration
	// KeyFunc extracts the rate limit key from the request.
	// If nil, defaults to the client IP.
	KeyFunc func(r *http.Request) (string, error)
}

// ConvertRateLimit limits conversions to perMinute per client.
func ConvertRateLimit(perMinute int) func(http.Handler) http.Handler {
	return RateLimit(RateLimitConfig{
		RequestLimit: perMinute,
		WindowSize:   time.Minute,
	})
}

// RateLimit creates a sliding window rate limiting middleware.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.RequestLimit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = httprate.KeyByRealIP
	}

	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowSize,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.HTTPRateLimited.Inc()
			logging.Warn("Rate limit exceeded for %s %s from %s",
				sanitizeLogField(r.Method), sanitizeLogField(r.URL.Path), sanitizeLogField(getClientIP(r)))

			w.Header().Set("Retry-After", strconv.Itoa(int(cfg.WindowSize.Seconds())))
			http.Error(w, "Too many conversions. Please try again later.", http.StatusTooManyRequests)
		}),
	)
}

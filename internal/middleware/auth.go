package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"sync"

	"video-converter/internal/logging"
	"video-converter/internal/metrics"

	"golang.org/x/crypto/bcrypt"
)

// AuthConfig holds configuration for the password gate
type AuthConfig struct {
	// PasswordHash is a bcrypt hash. Empty disables the gate.
	PasswordHash string
	Realm        string
	// ExemptPaths are served without credentials.
	ExemptPaths []string
}

// DefaultAuthConfig returns the gate configuration for a password hash
func DefaultAuthConfig(passwordHash string) AuthConfig {
	return AuthConfig{
		PasswordHash: passwordHash,
		Realm:        "Video Converter",
		ExemptPaths:  []string{"/health", "/healthz", "/livez", "/readyz", "/version"},
	}
}

// passwordGate checks HTTP basic auth passwords against one bcrypt hash.
// Any user name is accepted.
type passwordGate struct {
	hash []byte

	// bcrypt is slow on purpose; a video preview issues many range requests
	// with the same credentials, so the digest of the last accepted
	// password is remembered.
	mu       sync.Mutex
	accepted [sha256.Size]byte
	haveLast bool
}

func (g *passwordGate) check(password string) bool {
	digest := sha256.Sum256([]byte(password))

	g.mu.Lock()
	if g.haveLast && subtle.ConstantTimeCompare(digest[:], g.accepted[:]) == 1 {
		g.mu.Unlock()
		return true
	}
	g.mu.Unlock()

	if bcrypt.CompareHashAndPassword(g.hash, []byte(password)) != nil {
		return false
	}

	g.mu.Lock()
	g.accepted = digest
	g.haveLast = true
	g.mu.Unlock()
	return true
}

// BasicAuth returns a middleware that requires the configured password.
func BasicAuth(config AuthConfig) func(http.Handler) http.Handler {
	if config.PasswordHash == "" {
		return func(next http.Handler) http.Handler { return next }
	}

	if _, err := bcrypt.Cost([]byte(config.PasswordHash)); err != nil {
		logging.Error("ACCESS_PASSWORD_HASH is not a valid bcrypt hash: %v", err)
	}

	gate := &passwordGate{hash: []byte(config.PasswordHash)}
	exempt := make(map[string]bool, len(config.ExemptPaths))
	for _, p := range config.ExemptPaths {
		exempt[p] = true
	}
	challenge := `Basic realm="` + config.Realm + `", charset="UTF-8"`

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exempt[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			_, password, ok := r.BasicAuth()
			if ok && gate.check(password) {
				next.ServeHTTP(w, r)
				return
			}

			if ok {
				metrics.AuthFailures.Inc()
				logging.Warn("Rejected credentials from %s for %s",
					sanitizeLogField(getClientIP(r)), sanitizeLogField(r.URL.Path))
			}
			w.Header().Set("WWW-Authenticate", challenge)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		})
	}
}

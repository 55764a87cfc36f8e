// Package middleware provides HTTP middleware for the video converter.
//
// It includes:
//   - Request logging in W3C Extended Log Format, written through the
//     application logger
//   - Prometheus request metrics
//   - Response compression (gzip) for the page and JSON
//   - An optional password gate (HTTP basic auth against a bcrypt hash)
//   - A per-client rate limit for conversions
//   - Security headers
package middleware

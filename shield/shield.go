// Package shield provides HTTP hardening middleware for the extraction
// service: security headers, request body caps and per-IP rate limiting.
//
// Usage:
//
//	r := chi.NewRouter()
//	r.Use(shield.SecurityHeaders())
//	r.Use(shield.MaxBody(64 << 20))
//	rl := shield.NewRateLimiter(rules)
//	r.Use(rl.Middleware)
package shield

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP extracts the caller's IP, preferring X-Forwarded-For when the
// service runs behind a reverse proxy.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

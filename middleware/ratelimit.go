package middleware

import (
	"context"
	"net"
	"net/http"

	"github.com/kevinaaaquil/devcamper/apperror"
)

// Limiter is satisfied by service.TokenBucket and cache.WindowLimiter.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// RateLimit rejects requests with 429 once the client IP exhausts its allowance.
// chi's RealIP should run first so RemoteAddr reflects the client.
func RateLimit(l Limiter) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(r.Context(), clientIP(r)) {
				w.Header().Set("Retry-After", "60")
				apperror.Write(w, r, apperror.TooManyRequests("Too many requests, please try again later"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

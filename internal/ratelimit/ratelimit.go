// Package ratelimit provides a pluggable rate limiting interface.
//
// The default deployment is a single instance, so an in-memory token
// bucket (MemoryLimiter) is what ships. The Limiter interface is the
// contract for substituting a shared backend when the API is scaled out.
package ratelimit

import (
	"context"
	"net"
	"net/http"
)

// Limiter decides whether a request identified by key should be allowed.
// Implementations must be safe for concurrent use.
type Limiter interface {
	// Allow returns true if the request should proceed. An error
	// signals a limiter malfunction; callers treat errors as fail-open
	// rather than blocking traffic.
	Allow(ctx context.Context, key string) (bool, error)

	// Close releases resources (cleanup goroutines, connections).
	Close() error
}

// NoopLimiter permits every request. Used when rate limiting is disabled.
type NoopLimiter struct{}

// Allow always returns true.
func (NoopLimiter) Allow(context.Context, string) (bool, error) { return true, nil }

// Close is a no-op.
func (NoopLimiter) Close() error { return nil }

// IPKey derives the limiter key from the request's client IP.
func IPKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Package shield provides the HTTP middleware stack of the timetable API:
// security headers, HEAD handling, request tracing, CORS, per-IP rate
// limiting and cache headers.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultStack(shield.StackConfig{Origins: origins, RatePerMinute: 60}) {
//	    r.Use(mw)
//	}
package shield

import "net/http"

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// StackConfig parameterises DefaultStack.
type StackConfig struct {
	Origins       []string
	RatePerMinute int
	// Exclude lists path prefixes that bypass rate limiting.
	Exclude []string
}

// DefaultStack returns the middleware for the public API, ordered
// HeadToGet → SecurityHeaders → TraceID → CORS → RateLimiter.
// The limiter is returned too so callers can Stop it on shutdown.
func DefaultStack(cfg StackConfig) ([]func(http.Handler) http.Handler, *RateLimiter) {
	rl := NewRateLimiter(cfg.RatePerMinute, cfg.Exclude...)
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		TraceID,
		CORS(cfg.Origins),
		rl.Middleware,
	}, rl
}

// HeadToGet converts HEAD requests to GET so that routes registered with
// r.Get() answer HEAD probes instead of 405. net/http drops the body.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}

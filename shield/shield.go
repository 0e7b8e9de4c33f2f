// Package shield provides the HTTP middleware stack for the gallery:
// security headers, body limits, request tracing, panic recovery, and
// per-IP rate limiting.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.Stack(shield.StackConfig{
//		Headers: shield.ViewerHeaders(cdnBase),
//		Limiter: shield.NewRateLimiter(rules),
//	}) {
//		r.Use(mw)
//	}
package shield

import (
	"context"
	"log/slog"
	"net/http"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// GetLogger retrieves the per-request logger from the context.
// Returns slog.Default() if no logger was set.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// StackConfig configures the default middleware stack.
type StackConfig struct {
	// Headers applied to every response. Zero value means DefaultHeaders().
	Headers HeaderConfig

	// MaxBodyBytes limits non-multipart request bodies. 0 means 64 KiB.
	MaxBodyBytes int64

	// Limiter is optional; nil disables rate limiting.
	Limiter *RateLimiter
}

// Stack returns the ordered gallery middleware stack:
// HeadToGet → SecurityHeaders → TraceID → Recover → MaxBody → rate limiter.
// Recover sits inside TraceID so panics are logged with their trace ID.
func Stack(cfg StackConfig) []func(http.Handler) http.Handler {
	if cfg.Headers == (HeaderConfig{}) {
		cfg.Headers = DefaultHeaders()
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = 64 * 1024
	}
	stack := []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(cfg.Headers),
		TraceID,
		Recover,
		MaxBody(cfg.MaxBodyBytes),
	}
	if cfg.Limiter != nil {
		stack = append(stack, cfg.Limiter.Middleware)
	}
	return stack
}

// HeadToGet converts HEAD requests to GET so handlers registered with
// r.Get() respond with 200 instead of 405. net/http strips the body for
// HEAD responses on its own.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}

package profile

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/vitrine/idgen"
	"github.com/hazyhaar/vitrine/kit"
)

// Option configures the middleware.
type Option func(*config)

type config struct {
	ttl    time.Duration
	secure bool
	newID  idgen.Generator
	logger *slog.Logger
}

// WithTTL overrides the cookie and token lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *config) { c.ttl = ttl }
}

// WithSecure marks the cookie Secure. Enable behind TLS.
func WithSecure(secure bool) Option {
	return func(c *config) { c.secure = secure }
}

// WithGenerator overrides the profile ID generator.
func WithGenerator(gen idgen.Generator) Option {
	return func(c *config) { c.newID = gen }
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// Middleware ensures every request carries a profile ID in its context.
//
// A valid cookie keeps its profile. A missing, expired, or tampered cookie
// is replaced with a freshly minted profile in the same response, so the
// browser that lost its identity simply starts over with empty saves, the
// way a cleared localStorage would.
func Middleware(secret []byte, opts ...Option) func(http.Handler) http.Handler {
	cfg := config{
		ttl:    DefaultTTL,
		newID:  idgen.Prefixed("pr_", idgen.NanoID(16)),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
				if id, perr := Parse(secret, c.Value); perr == nil {
					next.ServeHTTP(w, r.WithContext(kit.WithProfileID(r.Context(), id)))
					return
				}
				cfg.logger.Debug("profile: replacing invalid cookie")
			}

			id := cfg.newID()
			token, err := Issue(secret, id, cfg.ttl)
			if err != nil {
				// Weak or missing secret is a deployment error; surface it
				// loudly rather than serving an unscoped request.
				cfg.logger.Error("profile: cannot issue token", "error", err)
				http.Error(w, "profile service unavailable", http.StatusInternalServerError)
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     CookieName,
				Value:    token,
				Path:     "/",
				MaxAge:   int(cfg.ttl / time.Second),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
				Secure:   cfg.secure,
			})
			next.ServeHTTP(w, r.WithContext(kit.WithProfileID(r.Context(), id)))
		})
	}
}

// FromRequest returns the profile ID injected by Middleware, or "".
func FromRequest(r *http.Request) string {
	return kit.GetProfileID(r.Context())
}

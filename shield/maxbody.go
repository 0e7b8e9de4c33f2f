package shield

import (
	"net/http"
	"strings"
)

// MaxBody returns middleware that limits non-multipart request bodies.
// Multipart uploads (document conversion, comparison) carry their own
// larger caps at the handlers that accept them.
func MaxBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ct := r.Header.Get("Content-Type")
			if r.Body != nil && !strings.HasPrefix(ct, "multipart/") {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

package observability

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hazyhaar/vitrine/kit"
)

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// RequestLog returns middleware that records one http_request_logs row per
// request. Writes happen after the response on the request goroutine with
// a detached context, so a slow observability store delays nothing the
// client sees. Paths with a skipPrefix (static assets, health checks) are
// not recorded.
func RequestLog(db *sql.DB, skipPrefixes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range skipPrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r)
			duration := time.Since(start)

			ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 2*time.Second)
			defer cancel()
			_, err := db.ExecContext(ctx, `
				INSERT INTO http_request_logs (
					method, path, status_code, duration_ms,
					profile_id, ip_address, user_agent, created_at
				) VALUES (?,?,?,?,?,?,?,?)`,
				r.Method, r.URL.Path, rec.status, duration.Milliseconds(),
				kit.GetProfileID(r.Context()), r.RemoteAddr, r.UserAgent(),
				time.Now().Unix())
			if err != nil {
				slog.Warn("observability request log failed", "error", err)
			}
		})
	}
}

package shield

import (
	"encoding/json"
	"net/http"
	"runtime/debug"
	"strings"
)

// Recover turns handler panics into 500 responses instead of dropped
// connections. API paths get a JSON error; page paths get a minimal HTML
// page with a reload link. http.ErrAbortHandler is re-panicked so the
// server's own abort convention keeps working.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			GetLogger(r.Context()).Error("panic recovered",
				"panic", rec,
				"stack", string(debug.Stack()))

			if strings.HasPrefix(r.URL.Path, "/api/") {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "internal server error",
				})
				return
			}

			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(errorPage))
		}()
		next.ServeHTTP(w, r)
	})
}

const errorPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Something went wrong</title>
<style>
  body { font-family: system-ui, sans-serif; display: flex; align-items: center;
         justify-content: center; min-height: 100vh; margin: 0; background: #f8f9fa; color: #333; }
  .box { text-align: center; max-width: 480px; padding: 2rem; }
  h1 { font-size: 1.5rem; margin-bottom: .5rem; }
  p  { color: #666; }
</style>
</head>
<body>
<div class="box">
  <h1>Something went wrong</h1>
  <p>The page hit an unexpected error. <a href="">Reload</a> to try again.</p>
</div>
</body>
</html>`

// Command vitrine serves the demo gallery: sample pages that mount the
// Nutrient viewer SDK, server-side viewer sessions with saved annotation
// states, document API proxy routes, comparison and markdown export, and
// the feedback widget. Optional MCP tools expose the same operations to
// agent clients over stdio.
package main

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/vitrine/compare"
	"github.com/hazyhaar/vitrine/dbopen"
	"github.com/hazyhaar/vitrine/feedback"
	"github.com/hazyhaar/vitrine/gallery"
	"github.com/hazyhaar/vitrine/kit"
	"github.com/hazyhaar/vitrine/mdexport"
	"github.com/hazyhaar/vitrine/nutrient"
	"github.com/hazyhaar/vitrine/observability"
	"github.com/hazyhaar/vitrine/profile"
	"github.com/hazyhaar/vitrine/proxy"
	"github.com/hazyhaar/vitrine/shield"
	"github.com/hazyhaar/vitrine/snapstore"
	"github.com/hazyhaar/vitrine/viewer"
	"github.com/hazyhaar/vitrine/viewer/host"
	"github.com/hazyhaar/vitrine/watch"
)

func main() {
	startAt := time.Now()

	// Configuration: YAML file, environment overrides, defaults last so
	// derived values see the final inputs.
	cfg := &config{}
	if path := env("VITRINE_CONFIG", ""); path != "" {
		loaded, err := loadConfigFile(path)
		if err != nil {
			slog.Error("config", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	cfg.Port = env("PORT", cfg.Port)
	cfg.DataDir = env("DATA_DIR", cfg.DataDir)
	cfg.LogLevel = env("LOG_LEVEL", cfg.LogLevel)
	cfg.SDK.Version = env("NUTRIENT_SDK_VERSION", cfg.SDK.Version)
	cfg.SDK.LicenseKey = env("NUTRIENT_LICENSE_KEY", cfg.SDK.LicenseKey)
	cfg.Nutrient.APIBase = env("NUTRIENT_API_BASE", cfg.Nutrient.APIBase)
	cfg.Nutrient.Key = env("NUTRIENT_API_KEY", cfg.Nutrient.Key)
	mcpTransport := env("MCP_TRANSPORT", "")
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	secretInput := os.Getenv("SESSION_SECRET")
	if secretInput == "" {
		slog.Error("SESSION_SECRET is required")
		os.Exit(1)
	}
	// Derive the 32-byte cookie-signing secret via SHA-256.
	secretHash := sha256.Sum256([]byte(secretInput))
	cookieSecret := secretHash[:]

	// Logging. MCP over stdio owns stdout, so logs move to stderr then.
	var lvl slog.Level
	switch cfg.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logOut := os.Stdout
	if mcpTransport == "stdio" {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Databases. Saved states and observability live in separate files so
	// metric flushes never contend with annotation saves.
	statesDB, err := dbopen.Open(filepath.Join(cfg.DataDir, "db", "states.db"), dbopen.WithMkdirAll())
	if err != nil {
		slog.Error("states db", "error", err)
		os.Exit(1)
	}
	defer statesDB.Close()

	obsDB, err := dbopen.Open(filepath.Join(cfg.DataDir, "db", "obs.db"), dbopen.WithMkdirAll())
	if err != nil {
		slog.Error("observability db", "error", err)
		os.Exit(1)
	}
	defer obsDB.Close()
	if err := observability.Init(obsDB); err != nil {
		slog.Error("observability init", "error", err)
		os.Exit(1)
	}

	feedbackDB, err := dbopen.Open(filepath.Join(cfg.DataDir, "db", "feedback.db"), dbopen.WithMkdirAll())
	if err != nil {
		slog.Error("feedback db", "error", err)
		os.Exit(1)
	}
	defer feedbackDB.Close()

	store, err := snapstore.New(statesDB, snapstore.WithLogger(logger.With("component", "snapstore")))
	if err != nil {
		slog.Error("snapstore", "error", err)
		os.Exit(1)
	}

	events := observability.NewEventLogger(obsDB)
	metrics := observability.NewMetricsManager(obsDB, 100, 5*time.Second)
	defer metrics.Close()

	// Catalog: built-in samples, optional overlay, then document check so a
	// broken bundle fails the boot instead of a visitor's first click.
	catalog := gallery.NewCatalog()
	if cfg.CatalogOverlay != "" {
		if err := catalog.LoadOverlay(cfg.CatalogOverlay); err != nil {
			slog.Error("catalog overlay", "error", err)
			os.Exit(1)
		}
	}
	docsDir := filepath.Join(cfg.DataDir, "documents")
	if err := catalog.ValidateDocuments(docsDir, logger); err != nil {
		slog.Error("document validation", "error", err, "dir", docsDir)
		os.Exit(1)
	}

	// Nutrient API client.
	client := nutrient.New(nutrient.Config{
		APIBase: cfg.Nutrient.APIBase,
		Key:     cfg.Nutrient.Key,
		Logger:  logger.With("component", "nutrient"),
	})
	if !client.Configured() {
		slog.Warn("NUTRIENT_API_KEY not set; proxy endpoints will report a configuration error")
	}

	// Session controllers report saves and restores as gallery events.
	sessionEvents := func(ctx context.Context, action string, payload any) {
		details, _ := json.Marshal(payload)
		eventType := action
		if action == "state_selected" {
			eventType = observability.EventStateLoaded
		}
		events.LogEvent(ctx, observability.Event{
			EventType: eventType,
			ProfileID: kit.GetProfileID(ctx),
			Action:    action,
			Details:   string(details),
			Success:   true,
		})
	}

	// Viewer host. "off" leaves hub nil and the gallery serves the session
	// endpoints as disabled.
	var hub *gallery.SessionHub
	var chromeHost *host.Host
	if cfg.Viewer.Host == "rod" {
		chromeHost, err = host.New(host.Config{
			ShellBase:       "http://127.0.0.1:" + cfg.Port,
			RemoteURL:       cfg.Viewer.Remote,
			RecycleInterval: cfg.Viewer.RecycleInterval,
			NavTimeout:      cfg.Viewer.NavTimeout,
			Logger:          logger.With("component", "host"),
		})
		if err != nil {
			slog.Error("viewer host", "error", err)
			os.Exit(1)
		}
		if err := chromeHost.Start(ctx); err != nil {
			slog.Error("viewer host start", "error", err)
			os.Exit(1)
		}
		defer chromeHost.Close()

		adapter, err := viewer.NewAdapter(viewer.Config{
			Engine: chromeHost,
			Logger: logger.With("component", "viewer"),
		})
		if err != nil {
			slog.Error("viewer adapter", "error", err)
			os.Exit(1)
		}
		hub, err = gallery.NewHub(gallery.HubConfig{
			Store:      store,
			Adapter:    adapter,
			Catalog:    catalog,
			LicenseKey: cfg.SDK.LicenseKey,
			Events:     sessionEvents,
			Logger:     logger.With("component", "sessions"),
		})
		if err != nil {
			slog.Error("session hub", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Info("viewer host off; live sessions disabled")
	}

	// Watch the states file so controllers pick up writes from other
	// vitrine processes sharing it.
	var watcher *watch.Watcher
	if hub != nil {
		watcher = watch.New(statesDB, watch.Options{
			Interval: cfg.Watch.Interval,
			Debounce: cfg.Watch.Debounce,
			Logger:   logger.With("component", "watch"),
		})
		go watcher.OnChange(ctx, func() error {
			rctx, rcancel := context.WithTimeout(ctx, 30*time.Second)
			defer rcancel()
			return hub.Refresh(rctx)
		})
	}

	// Markdown export: converter, frontmattered writer, authoring route.
	converter := mdexport.NewConverter()
	exportDir := cfg.ExportDir
	if exportDir == "" {
		exportDir = filepath.Join(cfg.DataDir, "exports")
	}
	writer := mdexport.NewWriter(exportDir)
	exporter := mdexport.NewExporter(mdexport.ExporterConfig{
		Converter: converter,
		Writer:    writer,
		Logger:    logger.With("component", "mdexport"),
	})

	// Proxy routes. Successful conversions land a local markdown copy and
	// an export event.
	prx := proxy.New(proxy.Config{
		Client: client,
		ExportWrite: func(name, markdown string) (string, error) {
			path, err := writer.Write(name, markdown)
			if err == nil {
				details, _ := json.Marshal(map[string]any{"file": filepath.Base(path), "bytes": len(markdown)})
				events.LogEvent(context.Background(), observability.Event{
					EventType: observability.EventExportWritten,
					Action:    "export_written",
					Details:   string(details),
					Success:   true,
				})
			}
			return path, err
		},
		Logger: logger.With("component", "proxy"),
	})

	comparer := compare.New(logger.With("component", "compare"))

	widget, err := feedback.New(feedback.Config{
		DB:        feedbackDB,
		AppName:   "vitrine",
		ProfileFn: profile.FromRequest,
	})
	if err != nil {
		slog.Error("feedback", "error", err)
		os.Exit(1)
	}

	svc, err := gallery.New(gallery.Config{
		Catalog: catalog,
		SDK: gallery.SDKConfig{
			Version:    cfg.SDK.Version,
			LicenseKey: cfg.SDK.LicenseKey,
			CDNBase:    cfg.SDK.CDNBase,
		},
		DocumentsDir: docsDir,
		Sessions:     hub,
		Metrics:      metrics,
		Logger:       logger.With("component", "gallery"),
	})
	if err != nil {
		slog.Error("gallery", "error", err)
		os.Exit(1)
	}

	// Optional MCP over stdio, alongside HTTP.
	if mcpTransport == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "vitrine",
			Version: "1.0.0",
		}, nil)
		svc.RegisterMCP(mcpSrv)
		comparer.RegisterMCP(mcpSrv)
		converter.RegisterMCP(mcpSrv)
		store.RegisterMCP(mcpSrv)
		go func() {
			slog.Info("MCP stdio starting")
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				slog.Error("MCP stdio", "error", err)
			}
		}()
	}

	// Rate limiter from config rules.
	rules := make(map[string]shield.Rule, len(cfg.RateLimits))
	for endpoint, rule := range cfg.RateLimits {
		rules[endpoint] = shield.Rule{MaxRequests: rule.Max, Window: rule.Window}
	}
	limiter := shield.NewRateLimiter(rules, "/documents/", "/static/")
	limiter.StartGC(ctx.Done())

	// Router. Shield first, then profile (mints the visitor cookie), then
	// request logging so log rows carry the profile.
	r := chi.NewRouter()
	for _, mw := range shield.Stack(shield.StackConfig{
		Headers:      shield.ViewerHeaders(cfg.SDK.CDNBase),
		MaxBodyBytes: 2 << 20,
		Limiter:      limiter,
	}) {
		r.Use(mw)
	}
	r.Use(profile.Middleware(cookieSecret, profile.WithLogger(logger.With("component", "profile"))))
	r.Use(observability.RequestLog(obsDB, "/static/", "/documents/", "/healthz"))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	svc.RegisterRoutes(r)
	prx.RegisterRoutes(r)
	comparer.RegisterRoutes(r)
	exporter.RegisterRoutes(r)
	r.Mount("/feedback", http.StripPrefix("/feedback", widget.Handler()))

	// Ops endpoints, bcrypt basic auth. No password hash, no endpoints.
	if cfg.Ops.PasswordHash != "" {
		r.Route("/ops", func(r chi.Router) {
			r.Use(opsAuth(cfg.Ops.User, cfg.Ops.PasswordHash))

			r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
				stats := map[string]any{
					"uptime":           time.Since(startAt).Round(time.Second).String(),
					"sessions_enabled": hub != nil,
					"active_sessions":  0,
				}
				if hub != nil {
					stats["active_sessions"] = hub.Active()
				}
				if watcher != nil {
					stats["watch"] = watcher.Stats()
				}
				writeJSON(w, 200, stats)
			})

			r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
				name := req.URL.Query().Get("name")
				limit := queryInt(req, "limit", 100)
				points, err := metrics.Query(name, nil, nil, limit)
				if err != nil {
					writeJSON(w, 500, map[string]string{"error": err.Error()})
					return
				}
				writeJSON(w, 200, map[string]any{"metrics": points})
			})
		})
	} else {
		slog.Info("ops endpoints disabled; set ops.password_hash to enable")
	}

	// Retention sweep for the observability tables.
	go retentionLoop(ctx, obsDB, cfg.Retention)

	// HTTP server.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port, "viewer_host", cfg.Viewer.Host)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	if hub != nil {
		hub.Shutdown(shutdownCtx)
	}
	slog.Info("server stopped")
}

// retentionLoop periodically trims the observability tables.
func retentionLoop(ctx context.Context, db *sql.DB, cfg retentionConfig) {
	ticker := time.NewTicker(cfg.Sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, sweepCancel := context.WithTimeout(ctx, 5*time.Minute)
			err := observability.Cleanup(sweepCtx, db, observability.RetentionConfig{
				HTTPLogsDays:  cfg.HTTPLogsDays,
				EventLogsDays: cfg.EventsDays,
				MetricsDays:   cfg.MetricsDays,
			})
			sweepCancel()
			if err != nil {
				slog.Warn("retention cleanup", "error", err)
			}
		}
	}
}

// opsAuth guards the operational endpoints with HTTP basic auth against a
// bcrypt password hash.
func opsAuth(user, passwordHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, p, ok := r.BasicAuth()
			if !ok || u != user ||
				bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(p)) != nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="vitrine ops"`)
				writeJSON(w, 401, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// --- Helpers ---

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// Package gallery serves the demo catalog of the showcase: the sample
// listing API, the HTML pages that mount the viewer SDK, the minimal shell
// page the headless host navigates to, and the session bridge endpoints
// that drive server-side viewer sessions.
//
// The gallery works in two modes. With a SessionHub, samples marked
// Sessions get live save/restore/form endpoints backed by a viewer engine.
// Without one (viewer host off), the pages still render and the session
// endpoints answer 503.
package gallery

import (
	"fmt"
	"log/slog"

	"github.com/hazyhaar/vitrine/observability"
)

// SDKConfig identifies the viewer SDK build injected into page markup.
type SDKConfig struct {
	Version    string
	LicenseKey string // empty runs the SDK in trial mode
	CDNBase    string
}

func (c *SDKConfig) defaults() {
	if c.Version == "" {
		c.Version = "1.6.0"
	}
	if c.CDNBase == "" {
		c.CDNBase = "https://cdn.cloud.pspdfkit.com/nutrient-viewer@" + c.Version
	}
}

// ScriptURL returns the SDK loader script address.
func (c SDKConfig) ScriptURL() string {
	return c.CDNBase + "/nutrient-viewer.js"
}

// Config holds the settings needed to create a gallery Service.
type Config struct {
	Catalog *Catalog // required

	// SDK is injected into sample and shell markup.
	SDK SDKConfig

	// DocumentsDir is served read-only at /documents/.
	DocumentsDir string

	// Sessions drives the live demos. Nil disables session endpoints.
	Sessions *SessionHub

	// Metrics optionally records save/select durations per sample.
	Metrics *observability.MetricsManager

	Logger *slog.Logger
}

// Service serves the gallery routes.
type Service struct {
	catalog  *Catalog
	sdk      SDKConfig
	docsDir  string
	sessions *SessionHub
	metrics  *observability.MetricsManager
	logger   *slog.Logger
}

// New creates a gallery Service.
func New(cfg Config) (*Service, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("gallery: Catalog is required")
	}
	if cfg.DocumentsDir == "" {
		return nil, fmt.Errorf("gallery: DocumentsDir is required")
	}
	cfg.SDK.defaults()
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		catalog:  cfg.Catalog,
		sdk:      cfg.SDK,
		docsDir:  cfg.DocumentsDir,
		sessions: cfg.Sessions,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}, nil
}

// Catalog exposes the sample catalog the service was built with.
func (s *Service) Catalog() *Catalog { return s.catalog }

// Package host runs the Nutrient web viewer inside headless Chrome and
// exposes it as a viewer.Engine. Each acquired surface is one Chrome page
// navigated to the gallery's viewer shell; the SDK script arrives from the
// CDN exactly as it would in a visitor's browser, and all interaction goes
// through the SDK's published JS entry points.
package host

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/vitrine/safe"
	"github.com/hazyhaar/vitrine/viewer"
)

// Config configures the Chrome host.
type Config struct {
	// ShellBase is the base URL of the gallery serving /shell/{container}
	// pages, e.g. "http://127.0.0.1:8750". Required.
	ShellBase string

	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// RecycleInterval is the maximum lifetime of a Chrome process. Open
	// surfaces die on recycle and their sessions remount on next use.
	// Default: 4h.
	RecycleInterval time.Duration

	// NavTimeout bounds shell navigation per surface. Default: 30s.
	NavTimeout time.Duration

	// Stealth opens pages with automation fingerprints masked. The CDN
	// serves the SDK to a stealth page the same way it serves visitors.
	// Default: true (disable with PlainPages).
	PlainPages bool

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.RecycleInterval <= 0 {
		c.RecycleInterval = 4 * time.Hour
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Host manages the Chrome process and hands out viewer surfaces.
type Host struct {
	cfg     Config
	logger  *slog.Logger
	mu      sync.RWMutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	startAt time.Time
	closed  bool
}

// New creates a Host. Call Start to launch Chrome.
func New(cfg Config) (*Host, error) {
	if cfg.ShellBase == "" {
		return nil, fmt.Errorf("host: Config.ShellBase is required")
	}
	cfg.defaults()
	return &Host{cfg: cfg, logger: cfg.Logger}, nil
}

// Start launches Chrome (or connects to a remote instance) and starts the
// recycle monitor. The monitor stops when ctx is cancelled.
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return fmt.Errorf("host: closed")
	}

	b, err := h.launch()
	if err != nil {
		return err
	}
	h.browser = b
	h.startAt = time.Now()

	go h.monitorLoop(ctx)
	return nil
}

// Close shuts down Chrome.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return h.cleanup()
}

// Acquire implements viewer.Engine: it opens a page on the shell URL for
// the container and returns it as a surface. The SDK script may still be
// loading when Acquire returns; the adapter polls SDKReady.
func (h *Host) Acquire(ctx context.Context, containerID string) (viewer.Surface, error) {
	if err := safe.CheckIdentifier(containerID); err != nil {
		return nil, fmt.Errorf("host: container: %w", err)
	}

	h.mu.RLock()
	b := h.browser
	h.mu.RUnlock()
	if b == nil {
		return nil, fmt.Errorf("host: not started")
	}

	var page *rod.Page
	var err error
	if h.cfg.PlainPages {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	} else {
		page, err = stealth.Page(b)
	}
	if err != nil {
		return nil, fmt.Errorf("host: create page: %w", err)
	}

	shellURL := fmt.Sprintf("%s/shell/%s", h.cfg.ShellBase, containerID)
	navCtx, cancel := context.WithTimeout(ctx, h.cfg.NavTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(shellURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("host: navigate %s: %w", shellURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		// The SDK script may still settle afterwards; the availability poll
		// decides whether the surface is usable.
		h.logger.Warn("host: wait load timeout", "url", shellURL, "error", err)
	}

	h.logger.Debug("host: surface acquired", "container", containerID)
	return &surface{host: h, page: page, container: containerID, logger: h.logger}, nil
}

func (h *Host) launch() (*rod.Browser, error) {
	var wsURL string

	if h.cfg.RemoteURL != "" {
		wsURL = h.cfg.RemoteURL
		h.logger.Info("host: connecting to remote chrome", "url", wsURL)
	} else {
		l := launcher.New().
			Headless(true).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("host: launch: %w", err)
		}
		wsURL = u
		h.lnch = l
		h.logger.Info("host: launched local chrome", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("host: connect: %w", err)
	}

	// Local gallery setups often serve over self-signed TLS.
	if err := b.IgnoreCertErrors(true); err != nil {
		h.logger.Warn("host: ignore cert errors failed", "error", err)
	}

	return b, nil
}

func (h *Host) cleanup() error {
	if h.browser != nil {
		h.browser.Close()
		h.browser = nil
	}
	if h.lnch != nil {
		h.lnch.Cleanup()
		h.lnch = nil
	}
	return nil
}

func (h *Host) monitorLoop(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.mu.RLock()
			if h.closed || h.browser == nil {
				h.mu.RUnlock()
				return
			}
			startAt := h.startAt
			h.mu.RUnlock()

			if time.Since(startAt) > h.cfg.RecycleInterval {
				h.logger.Info("host: recycle interval reached")
				if err := h.recycle(); err != nil {
					h.logger.Error("host: recycle failed", "error", err)
				}
			}
		}
	}
}

func (h *Host) recycle() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return fmt.Errorf("host: closed")
	}
	h.logger.Info("host: recycling chrome", "uptime", time.Since(h.startAt))

	if err := h.cleanup(); err != nil {
		h.logger.Warn("host: cleanup during recycle", "error", err)
	}
	b, err := h.launch()
	if err != nil {
		return fmt.Errorf("host: relaunch: %w", err)
	}
	h.browser = b
	h.startAt = time.Now()
	return nil
}

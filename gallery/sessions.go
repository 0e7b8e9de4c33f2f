package gallery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hazyhaar/vitrine/session"
	"github.com/hazyhaar/vitrine/snapstore"
	"github.com/hazyhaar/vitrine/viewer"
)

// ErrSessionsDisabled is returned by hub operations when the gallery runs
// without a viewer engine (viewer.host: off).
var ErrSessionsDisabled = errors.New("gallery: viewer sessions are disabled")

// ErrNoSession is returned for session operations on a sample the profile
// has not opened.
var ErrNoSession = errors.New("gallery: no active session")

// ErrNoSampleSessions is returned when a sample does not drive server-side
// sessions (static demos).
var ErrNoSampleSessions = errors.New("gallery: sample has no viewer sessions")

// HubConfig holds the dependencies session controllers are built from.
type HubConfig struct {
	Store      *snapstore.Store // required
	Adapter    *viewer.Adapter  // required
	Catalog    *Catalog         // required
	LicenseKey string
	Events     session.EventFunc
	Logger     *slog.Logger
}

// SessionHub creates and tracks one session controller per profile and
// sample. Controllers are created on demand and live until closed or
// until Shutdown.
type SessionHub struct {
	cfg    HubConfig
	logger *slog.Logger

	mu     sync.Mutex
	active map[string]*session.Controller
}

// NewHub creates a SessionHub.
func NewHub(cfg HubConfig) (*SessionHub, error) {
	if cfg.Store == nil || cfg.Adapter == nil || cfg.Catalog == nil {
		return nil, fmt.Errorf("gallery: Store, Adapter and Catalog are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &SessionHub{
		cfg:    cfg,
		logger: cfg.Logger,
		active: make(map[string]*session.Controller),
	}, nil
}

func hubKey(profile, sampleID string) string {
	return profile + "|" + sampleID
}

// ContainerID derives the rendering container a session mounts into. It is
// stable per profile and sample so page reloads land on the same surface.
func ContainerID(profile, sampleID string) string {
	return "vitrine-" + sampleID + "-" + profile
}

// Open returns the profile's controller for the sample, starting one if
// none is active. Start failures (engine down, SDK never appearing) leave
// nothing registered.
func (h *SessionHub) Open(ctx context.Context, profile, sampleID string) (*session.Controller, error) {
	sample, ok := h.cfg.Catalog.Get(sampleID)
	if !ok {
		return nil, fmt.Errorf("gallery: unknown sample %q", sampleID)
	}
	if !sample.Sessions {
		return nil, ErrNoSampleSessions
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	key := hubKey(profile, sampleID)
	if ctl, ok := h.active[key]; ok {
		return ctl, nil
	}

	ctl, err := session.New(session.Config{
		Store:      h.cfg.Store,
		Adapter:    h.cfg.Adapter,
		Container:  ContainerID(profile, sampleID),
		Profile:    profile,
		Document:   sample.Document,
		LicenseKey: h.cfg.LicenseKey,
		Toolbar:    sample.Toolbar,
		Events:     h.cfg.Events,
		Logger:     h.logger,
	})
	if err != nil {
		return nil, err
	}
	if err := ctl.Start(ctx); err != nil {
		return nil, err
	}

	h.active[key] = ctl
	h.logger.Info("gallery: session opened", "sample", sampleID, "profile", profile)
	return ctl, nil
}

// Get returns the active controller for the profile and sample, or nil.
func (h *SessionHub) Get(profile, sampleID string) *session.Controller {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active[hubKey(profile, sampleID)]
}

// Close stops and forgets the profile's session for the sample. Closing a
// sample with no session is a no-op.
func (h *SessionHub) Close(ctx context.Context, profile, sampleID string) error {
	h.mu.Lock()
	ctl, ok := h.active[hubKey(profile, sampleID)]
	delete(h.active, hubKey(profile, sampleID))
	h.mu.Unlock()

	if !ok {
		return nil
	}
	if err := ctl.Stop(ctx); err != nil {
		h.logger.Warn("gallery: session stop", "sample", sampleID, "error", err)
		return err
	}
	h.logger.Info("gallery: session closed", "sample", sampleID, "profile", profile)
	return nil
}

// Refresh re-reads the saved-state lists of every active session. Wire it
// to a storage watcher so writes from other processes become visible.
func (h *SessionHub) Refresh(ctx context.Context) error {
	h.mu.Lock()
	ctls := make([]*session.Controller, 0, len(h.active))
	for _, ctl := range h.active {
		ctls = append(ctls, ctl)
	}
	h.mu.Unlock()

	var firstErr error
	for _, ctl := range ctls {
		if err := ctl.Refresh(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Shutdown stops every active session. Errors are logged, not returned;
// shutdown keeps going.
func (h *SessionHub) Shutdown(ctx context.Context) {
	h.mu.Lock()
	ctls := h.active
	h.active = make(map[string]*session.Controller)
	h.mu.Unlock()

	for key, ctl := range ctls {
		if err := ctl.Stop(ctx); err != nil {
			h.logger.Warn("gallery: shutdown session", "session", key, "error", err)
		}
	}
}

// Active returns the number of live sessions.
func (h *SessionHub) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.active)
}

// Package session bridges saved annotation states and live viewer
// instances for one demo session: it owns the visible list of saved
// states, the current selection, and the mount the selection is shown in.
//
// A session is the Go analog of one open demo tab. Its operations are
// serialized internally; a watch-driven Refresh makes writes from other
// processes appear in the list.
//
// Usage:
//
//	ctl, err := session.New(session.Config{Store: store, Adapter: ad,
//		Container: "demo-annotations-pr_x", Profile: "pr_x",
//		Document: "/documents/report.pdf"})
//	err = ctl.Start(ctx)
//	rec, err = ctl.Save(ctx)
//	err = ctl.Select(ctx, rec.Key)
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/hazyhaar/vitrine/snapstore"
	"github.com/hazyhaar/vitrine/viewer"
)

// ErrNoInstance is returned by Save when no viewer instance is mounted.
var ErrNoInstance = errors.New("session: no viewer instance mounted")

// EventFunc receives business events (state_saved, state_selected, ...).
// Wire it to an observability event logger; nil disables events.
type EventFunc func(ctx context.Context, action string, payload any)

// Config holds the settings needed to create a session Controller.
type Config struct {
	Store   *snapstore.Store // required
	Adapter *viewer.Adapter  // required

	// Container is the rendering container this session mounts into.
	// Exclusive to this session.
	Container string

	// Profile scopes saved states to the visitor.
	Profile string

	// Document, LicenseKey and Toolbar describe what each mount loads.
	Document   string
	LicenseKey string
	Toolbar    []viewer.ToolbarItem

	// Tracker records operation timings. A fresh one is created if nil.
	Tracker *Tracker

	Events EventFunc
	Logger *slog.Logger
}

// Controller runs one demo session.
type Controller struct {
	cfg     Config
	tracker *Tracker
	logger  *slog.Logger

	mu      sync.Mutex
	entries []snapstore.SavedState
	current string // selected key, "" = none
}

// New creates a Controller. Store, Adapter, Container and Profile are
// required.
func New(cfg Config) (*Controller, error) {
	if cfg.Store == nil || cfg.Adapter == nil {
		return nil, fmt.Errorf("session: Store and Adapter are required")
	}
	if cfg.Container == "" || cfg.Profile == "" {
		return nil, fmt.Errorf("session: Container and Profile are required")
	}
	if cfg.Tracker == nil {
		cfg.Tracker = NewTracker()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Controller{
		cfg:     cfg,
		tracker: cfg.Tracker,
		logger:  cfg.Logger.With("session", cfg.Container),
	}, nil
}

// Start mounts the viewer with no seed state and loads the saved-state
// list. Failing to mount fails Start; the session is not usable without a
// viewer.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	finish := c.tracker.Measure("mount")
	_, err := c.cfg.Adapter.Mount(ctx, c.cfg.Container, c.loadSpec(nil))
	finish(err)
	if err != nil {
		return fmt.Errorf("session: start: %w", err)
	}
	return c.refreshLocked(ctx)
}

// Stop unmounts the session's container.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Adapter.Unmount(ctx, c.cfg.Container)
}

// Save exports the current annotation state and persists it. On success
// the new entry is appended to the visible list (save order, never
// re-sorted) and returned. Any failure leaves the list untouched: the
// error is logged and returned, and nothing partial appears.
func (c *Controller) Save(ctx context.Context) (snapstore.SavedState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	finish := c.tracker.Measure("save")

	inst := c.cfg.Adapter.Instance(c.cfg.Container)
	if inst == nil {
		finish(ErrNoInstance)
		c.logger.Warn("session: save without mounted instance")
		return snapstore.SavedState{}, ErrNoInstance
	}

	blob, err := inst.ExportInstantJSON(ctx)
	if err != nil {
		finish(err)
		c.logger.Error("session: export failed, state not saved", "error", err)
		return snapstore.SavedState{}, fmt.Errorf("session: export: %w", err)
	}

	rec, err := c.cfg.Store.Save(ctx, c.cfg.Profile, blob)
	if err != nil {
		finish(err)
		c.logger.Error("session: persist failed, state not saved", "error", err)
		return snapstore.SavedState{}, fmt.Errorf("session: persist: %w", err)
	}

	c.entries = append(c.entries, rec)
	finish(nil)
	c.emit(ctx, "state_saved", map[string]any{"key": rec.Key, "bytes": len(blob)})
	c.logger.Info("session: state saved", "key", rec.Key, "bytes", len(blob))
	return rec, nil
}

// Select loads the state saved under key and remounts the viewer seeded
// with it. A load failure (unknown key, corrupt blob) changes nothing. A
// mount failure keeps the previous selection pointer and surfaces the
// error.
func (c *Controller) Select(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	finish := c.tracker.Measure("select")

	blob, err := c.cfg.Store.Load(ctx, c.cfg.Profile, key)
	if err != nil {
		finish(err)
		c.logger.Warn("session: select load failed", "key", key, "error", err)
		return fmt.Errorf("session: select: %w", err)
	}

	if _, err := c.cfg.Adapter.Mount(ctx, c.cfg.Container, c.loadSpec(blob)); err != nil {
		finish(err)
		c.logger.Error("session: select mount failed", "key", key, "error", err)
		return fmt.Errorf("session: select mount: %w", err)
	}

	c.current = key
	finish(nil)
	c.emit(ctx, "state_selected", map[string]any{"key": key})
	c.logger.Info("session: state selected", "key", key)
	return nil
}

// FillForm sets form field values in the live instance.
func (c *Controller) FillForm(ctx context.Context, values map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	finish := c.tracker.Measure("form_fill")
	inst := c.cfg.Adapter.Instance(c.cfg.Container)
	if inst == nil {
		finish(ErrNoInstance)
		return ErrNoInstance
	}
	err := inst.SetFormValues(ctx, values)
	finish(err)
	if err != nil {
		return fmt.Errorf("session: fill form: %w", err)
	}
	return nil
}

// Refresh re-reads the saved-state list from storage. Call it from a watch
// loop so saves made by other processes appear. The current selection is
// kept if its key still exists and cleared otherwise.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked(ctx)
}

func (c *Controller) refreshLocked(ctx context.Context) error {
	states, err := c.cfg.Store.List(ctx, c.cfg.Profile)
	if err != nil {
		return fmt.Errorf("session: refresh: %w", err)
	}
	c.entries = states
	if c.current != "" && !slices.ContainsFunc(states, func(s snapstore.SavedState) bool {
		return s.Key == c.current
	}) {
		c.logger.Info("session: selected state disappeared", "key", c.current)
		c.current = ""
	}
	return nil
}

// Entries returns a copy of the visible saved-state list.
func (c *Controller) Entries() []snapstore.SavedState {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]snapstore.SavedState, len(c.entries))
	copy(out, c.entries)
	return out
}

// Current returns the selected key, or "" when nothing is selected.
func (c *Controller) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// State reports the viewer lifecycle state of the session container.
func (c *Controller) State() viewer.State {
	return c.cfg.Adapter.State(c.cfg.Container)
}

// Stats returns the session's operation timing aggregates.
func (c *Controller) Stats() map[string]OpStats {
	return c.tracker.Snapshot()
}

func (c *Controller) loadSpec(seed []byte) viewer.LoadSpec {
	return viewer.LoadSpec{
		Document:    c.cfg.Document,
		LicenseKey:  c.cfg.LicenseKey,
		InstantJSON: seed,
		Toolbar:     c.cfg.Toolbar,
	}
}

func (c *Controller) emit(ctx context.Context, action string, payload any) {
	if c.cfg.Events != nil {
		c.cfg.Events(ctx, action, payload)
	}
}

package viewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Config holds the settings needed to create an Adapter.
type Config struct {
	// Engine produces surfaces. Required.
	Engine Engine

	// PollInterval is the delay between SDK availability checks.
	// Default: 50ms.
	PollInterval time.Duration

	// MaxPollAttempts bounds the availability checks per mount. Exceeding
	// it fails the mount with ErrSDKLoad. Default: 100.
	MaxPollAttempts int

	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 50 * time.Millisecond
	}
	if c.MaxPollAttempts <= 0 {
		c.MaxPollAttempts = 100
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Adapter owns viewer lifecycles, one per container. A container holds at
// most one live instance; mounting into an occupied container unloads the
// previous instance first. Callers normally serialize Mount/Unmount per
// container; concurrent calls are still safe, and the newest call wins via
// per-container generation counters.
type Adapter struct {
	engine Engine
	cfg    Config
	logger *slog.Logger

	mu         sync.Mutex
	containers map[string]*binding
}

// binding is the adapter's record for one container.
type binding struct {
	mu    sync.Mutex
	gen   uint64
	state State
	inst  *Instance
}

// setState validates and applies a lifecycle transition. The caller holds
// b.mu. Invalid transitions indicate adapter bugs and are rejected loudly.
func (b *binding) setState(to State) error {
	if b.state == to {
		return nil
	}
	if !b.state.canTransition(to) {
		return fmt.Errorf("viewer: invalid transition %v -> %v", b.state, to)
	}
	b.state = to
	return nil
}

// NewAdapter creates an Adapter. Config.Engine is required.
func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("viewer: Config.Engine is required")
	}
	cfg.defaults()
	return &Adapter{
		engine:     cfg.Engine,
		cfg:        cfg,
		logger:     cfg.Logger,
		containers: make(map[string]*binding),
	}, nil
}

func (a *Adapter) binding(containerID string) *binding {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.containers[containerID]
	if !ok {
		b = &binding{state: StateUnloaded}
		a.containers[containerID] = b
	}
	return b
}

func (a *Adapter) lookup(containerID string) *binding {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.containers[containerID]
}

// State reports the lifecycle state of a container. Containers never
// mounted report StateUnloaded.
func (a *Adapter) State(containerID string) State {
	b := a.lookup(containerID)
	if b == nil {
		return StateUnloaded
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Mount loads the viewer into the container and returns the live instance.
// An instance already bound to the container is unloaded first; a failed
// previous unload does not block the new mount. The SDK availability poll
// is bounded by Config; exhausting it returns ErrSDKLoad and leaves the
// container unloaded.
func (a *Adapter) Mount(ctx context.Context, containerID string, spec LoadSpec) (*Instance, error) {
	for _, item := range spec.Toolbar {
		if err := item.Validate(); err != nil {
			return nil, err
		}
	}

	b := a.binding(containerID)

	// Claim the container: bump the generation so every older in-flight
	// operation becomes stale, and detach the previous instance.
	b.mu.Lock()
	b.gen++
	gen := b.gen
	old := b.inst
	b.inst = nil
	if b.state == StateReady {
		if err := b.setState(StateUnloaded); err != nil {
			b.mu.Unlock()
			return nil, err
		}
	}
	if err := b.setState(StateLoading); err != nil {
		b.mu.Unlock()
		return nil, err
	}
	b.mu.Unlock()

	if old != nil {
		// Remount path: release the previous instance. A not-mounted error
		// here just means someone already tore it down.
		if err := old.surface.Unload(ctx); err != nil && !errors.Is(err, ErrNotMounted) {
			a.logger.Debug("viewer: unload before remount", "container", containerID, "error", err)
		}
		if err := old.surface.Close(); err != nil {
			a.logger.Debug("viewer: close before remount", "container", containerID, "error", err)
		}
	}

	surface, err := a.engine.Acquire(ctx, containerID)
	if err != nil {
		a.abandon(b, gen, containerID)
		return nil, fmt.Errorf("viewer: acquire surface: %w", err)
	}

	if err := a.awaitSDK(ctx, surface); err != nil {
		surface.Close()
		a.abandon(b, gen, containerID)
		return nil, err
	}

	if err := surface.Load(ctx, spec); err != nil {
		surface.Close()
		a.abandon(b, gen, containerID)
		return nil, fmt.Errorf("viewer: load: %w", err)
	}

	inst := &Instance{
		adapter:   a,
		container: containerID,
		gen:       gen,
		surface:   surface,
		document:  spec.Document,
	}

	b.mu.Lock()
	if b.gen != gen {
		// A newer Mount or Unmount claimed the container while this load
		// was in flight. Do not install anything; dispose quietly.
		b.mu.Unlock()
		a.logger.Debug("viewer: dropping superseded mount", "container", containerID, "generation", gen)
		if err := surface.Unload(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, ErrNotMounted) {
			a.logger.Debug("viewer: unload superseded mount", "container", containerID, "error", err)
		}
		surface.Close()
		return nil, ErrSuperseded
	}
	if err := b.setState(StateReady); err != nil {
		b.mu.Unlock()
		surface.Close()
		return nil, err
	}
	b.inst = inst
	b.mu.Unlock()

	a.logger.Info("viewer: mounted", "container", containerID, "document", spec.Document, "generation", gen)
	return inst, nil
}

// Unmount releases the container. A container with no instance is a no-op,
// including one that was never mounted. An in-flight mount on the container
// is invalidated and will report ErrSuperseded to its caller. Surface
// teardown failures are logged, not returned: after Unmount the container
// is unloaded regardless.
func (a *Adapter) Unmount(ctx context.Context, containerID string) error {
	b := a.lookup(containerID)
	if b == nil {
		return nil
	}

	b.mu.Lock()
	b.gen++
	inst := b.inst
	b.inst = nil
	wasLoading := b.state == StateLoading
	if b.state != StateUnloaded {
		if err := b.setState(StateUnloaded); err != nil {
			b.mu.Unlock()
			return err
		}
	}
	b.mu.Unlock()

	if inst == nil {
		if wasLoading {
			a.logger.Debug("viewer: unmount invalidated in-flight load", "container", containerID)
		}
		return nil
	}

	if err := inst.surface.Unload(ctx); err != nil && !errors.Is(err, ErrNotMounted) {
		a.logger.Warn("viewer: unload during unmount", "container", containerID, "error", err)
	}
	if err := inst.surface.Close(); err != nil {
		a.logger.Debug("viewer: close during unmount", "container", containerID, "error", err)
	}
	a.logger.Info("viewer: unmounted", "container", containerID)
	return nil
}

// Instance returns the live instance bound to the container, or nil.
func (a *Adapter) Instance(containerID string) *Instance {
	b := a.lookup(containerID)
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inst
}

// abandon rolls the container back to Unloaded after a failed mount, unless
// a newer operation already claimed it.
func (a *Adapter) abandon(b *binding, gen uint64, containerID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gen != gen {
		a.logger.Debug("viewer: failed mount already superseded", "container", containerID)
		return
	}
	if err := b.setState(StateUnloaded); err != nil {
		a.logger.Error("viewer: rollback transition", "container", containerID, "error", err)
	}
}

// awaitSDK polls the surface until the SDK global appears or the attempt
// budget runs out.
func (a *Adapter) awaitSDK(ctx context.Context, surface Surface) error {
	var lastErr error
	for attempt := 1; attempt <= a.cfg.MaxPollAttempts; attempt++ {
		ok, err := surface.SDKReady(ctx)
		if err != nil {
			// Mid-navigation checks can fail transiently; count the attempt
			// and keep polling.
			lastErr = err
		} else if ok {
			return nil
		}
		if attempt == a.cfg.MaxPollAttempts {
			break
		}
		if err := sleepCtx(ctx, a.cfg.PollInterval); err != nil {
			return fmt.Errorf("viewer: availability poll: %w", err)
		}
	}
	if lastErr != nil {
		return fmt.Errorf("%w after %d attempts: %v", ErrSDKLoad, a.cfg.MaxPollAttempts, lastErr)
	}
	return fmt.Errorf("%w after %d attempts", ErrSDKLoad, a.cfg.MaxPollAttempts)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Instance is a live viewer bound to a container. It stays valid until the
// container is unmounted or remounted; operations on a stale instance
// return ErrNotMounted.
type Instance struct {
	adapter   *Adapter
	container string
	gen       uint64
	surface   Surface
	document  string
}

// Container returns the container ID the instance is bound to.
func (i *Instance) Container() string { return i.container }

// Document returns the document reference the instance was loaded with.
func (i *Instance) Document() string { return i.document }

// State reports the instance's lifecycle state: StateReady while it is the
// container's current instance, StateUnloaded once replaced or unmounted.
func (i *Instance) State() State {
	if !i.current() {
		return StateUnloaded
	}
	return StateReady
}

func (i *Instance) current() bool {
	b := i.adapter.lookup(i.container)
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gen == i.gen && b.inst == i
}

// ExportInstantJSON serializes the instance's current annotation state.
// Results that complete after the instance was torn down are dropped.
func (i *Instance) ExportInstantJSON(ctx context.Context) ([]byte, error) {
	if !i.current() {
		return nil, ErrNotMounted
	}
	data, err := i.surface.ExportInstantJSON(ctx)
	if err != nil {
		return nil, fmt.Errorf("viewer: export instant JSON: %w", err)
	}
	if !i.current() {
		// The container moved on while the export ran.
		i.adapter.logger.Debug("viewer: dropping export from torn-down instance", "container", i.container)
		return nil, ErrNotMounted
	}
	return data, nil
}

// SetFormValues fills form fields in the live instance.
func (i *Instance) SetFormValues(ctx context.Context, values map[string]string) error {
	if !i.current() {
		return ErrNotMounted
	}
	if err := i.surface.SetFormValues(ctx, values); err != nil {
		return fmt.Errorf("viewer: set form values: %w", err)
	}
	return nil
}

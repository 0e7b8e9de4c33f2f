package viewer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeEngine scripts surface behavior and records lifecycle events so tests
// can assert ordering without a browser.
type fakeEngine struct {
	mu         sync.Mutex
	events     []string
	readyAfter int // SDKReady reports true starting with call readyAfter+1
	acquireErr error
	loadErr    error
	loadGate   chan struct{} // when set, Load blocks until closed
}

func (e *fakeEngine) record(ev string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *fakeEngine) Events() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.events))
	copy(out, e.events)
	return out
}

func (e *fakeEngine) Acquire(_ context.Context, containerID string) (Surface, error) {
	if e.acquireErr != nil {
		return nil, e.acquireErr
	}
	e.record("acquire:" + containerID)
	return &fakeSurface{eng: e, container: containerID}, nil
}

type fakeSurface struct {
	eng        *fakeEngine
	container  string
	mu         sync.Mutex
	readyCalls int
	loaded     bool
	closed     bool
}

func (s *fakeSurface) SDKReady(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readyCalls++
	return s.readyCalls > s.eng.readyAfter, nil
}

func (s *fakeSurface) Load(_ context.Context, spec LoadSpec) error {
	if s.eng.loadGate != nil {
		<-s.eng.loadGate
	}
	if s.eng.loadErr != nil {
		return s.eng.loadErr
	}
	s.mu.Lock()
	s.loaded = true
	s.mu.Unlock()
	s.eng.record("load:" + s.container + ":" + spec.Document)
	return nil
}

func (s *fakeSurface) ExportInstantJSON(context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return nil, ErrNotMounted
	}
	return []byte(`{"annotations":[]}`), nil
}

func (s *fakeSurface) SetFormValues(_ context.Context, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrNotMounted
	}
	s.eng.record(fmt.Sprintf("form:%s:%d", s.container, len(values)))
	return nil
}

func (s *fakeSurface) Unload(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrNotMounted
	}
	s.loaded = false
	s.eng.record("unload:" + s.container)
	return nil
}

func (s *fakeSurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.eng.record("close:" + s.container)
	return nil
}

func testAdapter(t *testing.T, eng *fakeEngine) *Adapter {
	t.Helper()
	ad, err := NewAdapter(Config{
		Engine:          eng,
		PollInterval:    time.Millisecond,
		MaxPollAttempts: 5,
	})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	return ad
}

func TestMountReachesReady(t *testing.T) {
	eng := &fakeEngine{}
	ad := testAdapter(t, eng)
	ctx := context.Background()

	inst, err := ad.Mount(ctx, "c1", LoadSpec{Document: "/docs/a.pdf"})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if got := ad.State("c1"); got != StateReady {
		t.Fatalf("state = %v, want Ready", got)
	}
	if inst.State() != StateReady {
		t.Fatalf("instance state = %v, want Ready", inst.State())
	}
	if inst.Document() != "/docs/a.pdf" {
		t.Fatalf("document = %q", inst.Document())
	}
}

func TestDoubleMountUnloadsPrevious(t *testing.T) {
	// WHAT: mounting into an occupied container tears the old instance down
	// before the new surface is acquired, and only one instance is ever live.
	eng := &fakeEngine{}
	ad := testAdapter(t, eng)
	ctx := context.Background()

	first, err := ad.Mount(ctx, "c1", LoadSpec{Document: "/docs/a.pdf"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := ad.Mount(ctx, "c1", LoadSpec{Document: "/docs/b.pdf"})
	if err != nil {
		t.Fatal(err)
	}

	if first.State() != StateUnloaded {
		t.Fatalf("first instance state = %v, want Unloaded", first.State())
	}
	if second.State() != StateReady {
		t.Fatalf("second instance state = %v, want Ready", second.State())
	}

	// The old surface must be released before the new one is acquired.
	events := eng.Events()
	want := []string{
		"acquire:c1", "load:c1:/docs/a.pdf",
		"unload:c1", "close:c1",
		"acquire:c1", "load:c1:/docs/b.pdf",
	}
	if len(events) != len(want) {
		t.Fatalf("events = %v", events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events[%d] = %q, want %q (all: %v)", i, events[i], want[i], events)
		}
	}
}

func TestUnmountIdempotent(t *testing.T) {
	eng := &fakeEngine{}
	ad := testAdapter(t, eng)
	ctx := context.Background()

	// Never-mounted container: no-op.
	if err := ad.Unmount(ctx, "ghost"); err != nil {
		t.Fatalf("Unmount never-mounted: %v", err)
	}

	if _, err := ad.Mount(ctx, "c1", LoadSpec{Document: "/docs/a.pdf"}); err != nil {
		t.Fatal(err)
	}
	if err := ad.Unmount(ctx, "c1"); err != nil {
		t.Fatalf("Unmount: %v", err)
	}
	if got := ad.State("c1"); got != StateUnloaded {
		t.Fatalf("state = %v, want Unloaded", got)
	}
	// Second unmount: no-op.
	if err := ad.Unmount(ctx, "c1"); err != nil {
		t.Fatalf("second Unmount: %v", err)
	}
}

func TestMountAfterUnmount(t *testing.T) {
	eng := &fakeEngine{}
	ad := testAdapter(t, eng)
	ctx := context.Background()

	if _, err := ad.Mount(ctx, "c1", LoadSpec{Document: "/docs/a.pdf"}); err != nil {
		t.Fatal(err)
	}
	if err := ad.Unmount(ctx, "c1"); err != nil {
		t.Fatal(err)
	}
	inst, err := ad.Mount(ctx, "c1", LoadSpec{Document: "/docs/b.pdf"})
	if err != nil {
		t.Fatalf("remount: %v", err)
	}
	if inst.State() != StateReady {
		t.Fatalf("state = %v, want Ready", inst.State())
	}
}

func TestPollExhaustionFailsMount(t *testing.T) {
	// WHAT: the SDK never appearing exhausts the bounded poll and fails the
	// mount with ErrSDKLoad; the container rolls back to Unloaded.
	// WHY: a terminal report beats an endless spinner; retry is the caller's
	// decision.
	eng := &fakeEngine{readyAfter: 1000}
	ad := testAdapter(t, eng)
	ctx := context.Background()

	_, err := ad.Mount(ctx, "c1", LoadSpec{Document: "/docs/a.pdf"})
	if !errors.Is(err, ErrSDKLoad) {
		t.Fatalf("err = %v, want ErrSDKLoad", err)
	}
	if got := ad.State("c1"); got != StateUnloaded {
		t.Fatalf("state = %v, want Unloaded", got)
	}

	// The budget resets per mount: a working engine mounts fine afterwards.
	eng.readyAfter = 0
	if _, err := ad.Mount(ctx, "c1", LoadSpec{Document: "/docs/a.pdf"}); err != nil {
		t.Fatalf("mount after recovery: %v", err)
	}
}

func TestSlowSDKWithinBudgetSucceeds(t *testing.T) {
	eng := &fakeEngine{readyAfter: 3} // ready on the 4th check, budget is 5
	ad := testAdapter(t, eng)

	if _, err := ad.Mount(context.Background(), "c1", LoadSpec{Document: "/docs/a.pdf"}); err != nil {
		t.Fatalf("Mount: %v", err)
	}
}

func TestLoadFailureRollsBack(t *testing.T) {
	eng := &fakeEngine{loadErr: errors.New("load exploded")}
	ad := testAdapter(t, eng)

	_, err := ad.Mount(context.Background(), "c1", LoadSpec{Document: "/docs/a.pdf"})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := ad.State("c1"); got != StateUnloaded {
		t.Fatalf("state = %v, want Unloaded", got)
	}
}

func TestUnmountDuringMountSupersedes(t *testing.T) {
	// WHAT: an Unmount racing an in-flight Mount invalidates it; the late
	// load completion is discarded instead of resurrecting the container.
	eng := &fakeEngine{loadGate: make(chan struct{})}
	ad := testAdapter(t, eng)
	ctx := context.Background()

	type result struct {
		inst *Instance
		err  error
	}
	done := make(chan result, 1)
	go func() {
		inst, err := ad.Mount(ctx, "c1", LoadSpec{Document: "/docs/a.pdf"})
		done <- result{inst, err}
	}()

	// Wait for the mount to reach the blocked Load.
	deadline := time.Now().Add(2 * time.Second)
	for ad.State("c1") != StateLoading && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if err := ad.Unmount(ctx, "c1"); err != nil {
		t.Fatalf("Unmount: %v", err)
	}
	close(eng.loadGate)

	res := <-done
	if !errors.Is(res.err, ErrSuperseded) {
		t.Fatalf("mount err = %v, want ErrSuperseded", res.err)
	}
	if got := ad.State("c1"); got != StateUnloaded {
		t.Fatalf("state = %v, want Unloaded (no resurrection)", got)
	}
	if ad.Instance("c1") != nil {
		t.Fatal("expected no live instance")
	}
}

func TestExportFromReplacedInstanceDropped(t *testing.T) {
	eng := &fakeEngine{}
	ad := testAdapter(t, eng)
	ctx := context.Background()

	first, err := ad.Mount(ctx, "c1", LoadSpec{Document: "/docs/a.pdf"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ad.Mount(ctx, "c1", LoadSpec{Document: "/docs/b.pdf"}); err != nil {
		t.Fatal(err)
	}

	if _, err := first.ExportInstantJSON(ctx); !errors.Is(err, ErrNotMounted) {
		t.Fatalf("export err = %v, want ErrNotMounted", err)
	}
}

func TestExportAndFormsOnLiveInstance(t *testing.T) {
	eng := &fakeEngine{}
	ad := testAdapter(t, eng)
	ctx := context.Background()

	inst, err := ad.Mount(ctx, "c1", LoadSpec{Document: "/docs/a.pdf"})
	if err != nil {
		t.Fatal(err)
	}
	blob, err := inst.ExportInstantJSON(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(blob) == 0 {
		t.Fatal("empty export")
	}
	if err := inst.SetFormValues(ctx, map[string]string{"name": "Ada"}); err != nil {
		t.Fatalf("set form values: %v", err)
	}
}

func TestDistinctContainersAreIndependent(t *testing.T) {
	eng := &fakeEngine{}
	ad := testAdapter(t, eng)
	ctx := context.Background()

	a, err := ad.Mount(ctx, "left", LoadSpec{Document: "/docs/a.pdf"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := ad.Mount(ctx, "right", LoadSpec{Document: "/docs/b.pdf"})
	if err != nil {
		t.Fatal(err)
	}
	if a.State() != StateReady || b.State() != StateReady {
		t.Fatalf("states = %v, %v", a.State(), b.State())
	}
	if err := ad.Unmount(ctx, "left"); err != nil {
		t.Fatal(err)
	}
	if b.State() != StateReady {
		t.Fatalf("right state after left unmount = %v", b.State())
	}
}

func TestMountRejectsInvalidToolbar(t *testing.T) {
	eng := &fakeEngine{}
	ad := testAdapter(t, eng)

	_, err := ad.Mount(context.Background(), "c1", LoadSpec{
		Document: "/docs/a.pdf",
		Toolbar:  []ToolbarItem{{Kind: ToolbarBuiltin}}, // missing name
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if len(eng.Events()) != 0 {
		t.Fatalf("engine touched despite invalid spec: %v", eng.Events())
	}
}

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		ok       bool
	}{
		{StateUnloaded, StateLoading, true},
		{StateLoading, StateReady, true},
		{StateLoading, StateUnloaded, true},
		{StateReady, StateUnloaded, true},
		{StateUnloaded, StateReady, false},
		{StateReady, StateLoading, false},
		{StateUnloaded, StateUnloaded, false},
	}
	for _, tt := range tests {
		if got := tt.from.canTransition(tt.to); got != tt.ok {
			t.Errorf("canTransition(%v, %v) = %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}

func TestStateString(t *testing.T) {
	if StateUnloaded.String() != "Unloaded" ||
		StateLoading.String() != "Loading" ||
		StateReady.String() != "Ready" {
		t.Fatal("state names changed")
	}
	if State(42).String() != "Unknown" {
		t.Fatalf("unknown state name = %q", State(42).String())
	}
}

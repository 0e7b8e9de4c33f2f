// Package viewer drives instances of the Nutrient web viewer SDK without
// ever looking inside it. The SDK is an opaque external component loaded
// from a CDN into a rendering surface; this package owns the lifecycle
// around it: exclusive mounting per container, bounded readiness polling,
// state transitions, and teardown that cannot be resurrected by late
// completions.
//
// Usage:
//
//	ad := viewer.NewAdapter(viewer.Config{Engine: engine})
//	inst, err := ad.Mount(ctx, "demo-annotations", viewer.LoadSpec{Document: "/docs/a.pdf"})
//	blob, err := inst.ExportInstantJSON(ctx)
//	err = ad.Unmount(ctx, "demo-annotations")
package viewer

import "errors"

var (
	// ErrSDKLoad is returned when the SDK does not become available within
	// the configured polling budget. Terminal for that mount attempt; the
	// adapter never retries on its own.
	ErrSDKLoad = errors.New("viewer: SDK failed to become available")

	// ErrNotMounted is returned by instance operations after the instance
	// has been unmounted or replaced.
	ErrNotMounted = errors.New("viewer: no instance mounted")

	// ErrSuperseded is returned to a Mount caller whose in-flight load was
	// overtaken by a newer Mount or Unmount on the same container.
	ErrSuperseded = errors.New("viewer: mount superseded by a newer lifecycle operation")
)

// State is the lifecycle state of a container.
//
// Valid transitions:
//
//	Unloaded -> Loading   (mount begins)
//	Loading  -> Ready     (SDK available, document loaded)
//	Loading  -> Unloaded  (load failed or cancelled)
//	Ready    -> Unloaded  (unmount)
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateReady
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "Unloaded"
	case StateLoading:
		return "Loading"
	case StateReady:
		return "Ready"
	default:
		return "Unknown"
	}
}

// canTransition reports whether s -> to is a legal lifecycle step.
func (s State) canTransition(to State) bool {
	switch s {
	case StateUnloaded:
		return to == StateLoading
	case StateLoading:
		return to == StateReady || to == StateUnloaded
	case StateReady:
		return to == StateUnloaded
	default:
		return false
	}
}

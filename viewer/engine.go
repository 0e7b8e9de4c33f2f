package viewer

import "context"

// LoadSpec describes one viewer load.
type LoadSpec struct {
	// Document is the URL or server-relative path of the document to open.
	Document string

	// LicenseKey activates the SDK. Empty runs the SDK in trial mode.
	LicenseKey string

	// InstantJSON optionally seeds the instance with a saved annotation
	// snapshot. The bytes pass through opaque; the SDK interprets them.
	InstantJSON []byte

	// Toolbar optionally replaces the SDK's default toolbar.
	Toolbar []ToolbarItem
}

// Engine produces rendering surfaces. It is the boundary behind which the
// actual SDK host lives: a headless browser in production, a fake in tests.
type Engine interface {
	// Acquire prepares a surface bound to the given container. The surface
	// is exclusive to the caller until Close.
	Acquire(ctx context.Context, containerID string) (Surface, error)
}

// Surface is one rendering slot the SDK can be driven in. All methods may
// be called only between Acquire and Close; Close releases the slot.
type Surface interface {
	// SDKReady reports whether the SDK global has appeared in the surface.
	// The adapter polls this with a bounded budget after Acquire.
	SDKReady(ctx context.Context) (bool, error)

	// Load opens the document described by spec in the surface. At most one
	// load is active per surface.
	Load(ctx context.Context, spec LoadSpec) error

	// ExportInstantJSON serializes the current annotation state.
	ExportInstantJSON(ctx context.Context) ([]byte, error)

	// SetFormValues fills form fields by name.
	SetFormValues(ctx context.Context, values map[string]string) error

	// Unload tears down the SDK instance in the surface. Unloading a
	// surface that holds no instance returns ErrNotMounted.
	Unload(ctx context.Context) error

	// Close releases the surface itself.
	Close() error
}

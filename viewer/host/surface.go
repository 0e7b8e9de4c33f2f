package host

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/vitrine/viewer"
)

// surface drives the SDK inside one Chrome page. The live SDK instance is
// parked on a page global between calls; the Go side never sees more than
// the JSON that crosses the eval boundary.
type surface struct {
	host      *Host
	page      *rod.Page
	container string
	logger    *slog.Logger
}

func (s *surface) SDKReady(ctx context.Context) (bool, error) {
	res, err := s.page.Context(ctx).Eval(`() => typeof window.NutrientViewer !== "undefined"`)
	if err != nil {
		return false, fmt.Errorf("host: sdk check: %w", err)
	}
	return res.Value.Bool(), nil
}

func (s *surface) Load(ctx context.Context, spec viewer.LoadSpec) error {
	cfg, err := buildLoadConfig(s.container, spec)
	if err != nil {
		return err
	}
	_, err = s.page.Context(ctx).Eval(`(cfg) => {
		return NutrientViewer.load(cfg).then((instance) => {
			window.__vitrineInstance = instance;
			return true;
		});
	}`, cfg)
	if err != nil {
		return fmt.Errorf("host: load: %w", err)
	}
	return nil
}

func (s *surface) ExportInstantJSON(ctx context.Context) ([]byte, error) {
	res, err := s.page.Context(ctx).Eval(`() => {
		if (!window.__vitrineInstance) {
			throw new Error("not mounted");
		}
		return window.__vitrineInstance.exportInstantJSON().then((o) => JSON.stringify(o));
	}`)
	if err != nil {
		if isNotMounted(err) {
			return nil, viewer.ErrNotMounted
		}
		return nil, fmt.Errorf("host: export: %w", err)
	}
	return []byte(res.Value.Str()), nil
}

func (s *surface) SetFormValues(ctx context.Context, values map[string]string) error {
	_, err := s.page.Context(ctx).Eval(`(values) => {
		if (!window.__vitrineInstance) {
			throw new Error("not mounted");
		}
		return window.__vitrineInstance.setFormFieldValues(values);
	}`, values)
	if err != nil {
		if isNotMounted(err) {
			return viewer.ErrNotMounted
		}
		return fmt.Errorf("host: set form values: %w", err)
	}
	return nil
}

func (s *surface) Unload(ctx context.Context) error {
	_, err := s.page.Context(ctx).Eval(`(sel) => {
		if (!window.__vitrineInstance) {
			throw new Error("not mounted");
		}
		NutrientViewer.unload(sel);
		window.__vitrineInstance = null;
		return true;
	}`, "#"+s.container)
	if err != nil {
		if isNotMounted(err) {
			return viewer.ErrNotMounted
		}
		return fmt.Errorf("host: unload: %w", err)
	}
	s.logger.Debug("host: surface unloaded", "container", s.container)
	return nil
}

func (s *surface) Close() error {
	if s.page == nil {
		return nil
	}
	return s.page.Close()
}

// buildLoadConfig maps a LoadSpec to the object NutrientViewer.load expects.
func buildLoadConfig(container string, spec viewer.LoadSpec) (map[string]any, error) {
	cfg := map[string]any{
		"container": "#" + container,
		"document":  spec.Document,
	}
	if spec.LicenseKey != "" {
		cfg["licenseKey"] = spec.LicenseKey
	}
	if len(spec.InstantJSON) > 0 {
		var seed any
		if err := json.Unmarshal(spec.InstantJSON, &seed); err != nil {
			return nil, fmt.Errorf("host: instant JSON seed: %w", err)
		}
		cfg["instantJSON"] = seed
	}
	if len(spec.Toolbar) > 0 {
		cfg["toolbarItems"] = spec.Toolbar
	}
	return cfg, nil
}

// isNotMounted recognises the sentinel thrown by the page-side helpers.
func isNotMounted(err error) bool {
	return err != nil && strings.Contains(err.Error(), "not mounted")
}

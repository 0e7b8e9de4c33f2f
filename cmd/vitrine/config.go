package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// config is the top-level vitrine configuration. Values from the YAML file
// are layered under environment overrides; applyDefaults runs last so
// derived values (CDN base from SDK version) see the final inputs.
type config struct {
	Port     string `yaml:"port"`
	DataDir  string `yaml:"data_dir"`
	LogLevel string `yaml:"log_level"`

	SDK      sdkConfig      `yaml:"sdk"`
	Nutrient nutrientConfig `yaml:"nutrient"`
	Viewer   viewerConfig   `yaml:"viewer"`
	Watch    watchConfig    `yaml:"watch"`

	Retention  retentionConfig     `yaml:"retention"`
	RateLimits map[string]rateRule `yaml:"rate_limits"`
	Ops        opsConfig           `yaml:"ops"`

	// CatalogOverlay optionally points at a YAML file merged over the
	// built-in sample set.
	CatalogOverlay string `yaml:"catalog_overlay"`

	// ExportDir receives markdown exports. Empty means <data_dir>/exports.
	ExportDir string `yaml:"export_dir"`
}

// sdkConfig identifies the viewer SDK build injected into page markup.
type sdkConfig struct {
	Version    string `yaml:"version"`
	LicenseKey string `yaml:"license_key"`
	CDNBase    string `yaml:"cdn_base"`
}

// nutrientConfig holds the hosted document API settings.
type nutrientConfig struct {
	APIBase string `yaml:"api_base"`
	Key     string `yaml:"key"`
}

// viewerConfig controls the server-side viewer host.
type viewerConfig struct {
	// Host selects the engine: "off" serves the gallery with sessions
	// disabled, "rod" drives the viewer in headless Chrome.
	Host            string        `yaml:"host"`
	Remote          string        `yaml:"remote"`
	RecycleInterval time.Duration `yaml:"recycle_interval"`
	NavTimeout      time.Duration `yaml:"nav_timeout"`
}

// watchConfig tunes the saved-state change watcher.
type watchConfig struct {
	Interval time.Duration `yaml:"interval"`
	Debounce time.Duration `yaml:"debounce"`
}

// retentionConfig controls the observability cleanup sweep.
type retentionConfig struct {
	HTTPLogsDays int           `yaml:"http_logs_days"`
	EventsDays   int           `yaml:"events_days"`
	MetricsDays  int           `yaml:"metrics_days"`
	Sweep        time.Duration `yaml:"sweep"`
}

// rateRule limits one endpoint, keyed "METHOD /path".
type rateRule struct {
	Max    int           `yaml:"max"`
	Window time.Duration `yaml:"window"`
}

// opsConfig guards the operational endpoints. Empty PasswordHash disables
// them entirely.
type opsConfig struct {
	User         string `yaml:"user"`
	PasswordHash string `yaml:"password_hash"` // bcrypt
}

// loadConfigFile reads a YAML configuration file without applying defaults;
// the caller layers environment overrides first.
func loadConfigFile(path string) (*config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *config) applyDefaults() {
	if c.Port == "" {
		c.Port = "8750"
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.SDK.Version == "" {
		c.SDK.Version = "1.6.0"
	}
	if c.SDK.CDNBase == "" {
		c.SDK.CDNBase = "https://cdn.cloud.pspdfkit.com/nutrient-viewer@" + c.SDK.Version
	}
	if c.Viewer.Host == "" {
		c.Viewer.Host = "off"
	}
	if c.Viewer.RecycleInterval <= 0 {
		c.Viewer.RecycleInterval = 4 * time.Hour
	}
	if c.Viewer.NavTimeout <= 0 {
		c.Viewer.NavTimeout = 30 * time.Second
	}
	if c.Watch.Interval <= 0 {
		c.Watch.Interval = time.Second
	}
	if c.Watch.Debounce <= 0 {
		c.Watch.Debounce = 500 * time.Millisecond
	}
	if c.Retention.HTTPLogsDays == 0 {
		c.Retention.HTTPLogsDays = 14
	}
	if c.Retention.EventsDays == 0 {
		c.Retention.EventsDays = 90
	}
	if c.Retention.MetricsDays == 0 {
		c.Retention.MetricsDays = 30
	}
	if c.Retention.Sweep <= 0 {
		c.Retention.Sweep = 6 * time.Hour
	}
	if len(c.RateLimits) == 0 {
		c.RateLimits = map[string]rateRule{
			"POST /api/convert":         {Max: 10, Window: time.Minute},
			"POST /api/sign":            {Max: 10, Window: time.Minute},
			"POST /api/compare":         {Max: 20, Window: time.Minute},
			"POST /api/export/markdown": {Max: 30, Window: time.Minute},
			"POST /feedback/submit":     {Max: 5, Window: time.Minute},
		}
	}
	if c.Ops.User == "" {
		c.Ops.User = "ops"
	}
}

func (c *config) validate() error {
	switch c.Viewer.Host {
	case "off", "rod":
	default:
		return fmt.Errorf("viewer.host must be \"off\" or \"rod\", got %q", c.Viewer.Host)
	}
	return nil
}

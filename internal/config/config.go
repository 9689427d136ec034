// Package config loads and validates the HealthRelay YAML configuration.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"healthrelay/internal/model"
	"healthrelay/internal/normalize"
)

// Config holds the full application configuration loaded from YAML.
type Config struct {
	// BackendURL is the base URL files are uploaded under
	// (e.g. "https://health.example.com/ingest").
	BackendURL string `yaml:"backend_url"`

	// BackendToken is the bearer token sent with every upload.
	BackendToken string `yaml:"backend_token"`

	// StreamPrefix is the first path segment of every uploaded file.
	// Defaults to "health".
	StreamPrefix string `yaml:"stream_prefix"`

	// Categories are the enabled data category toggles, e.g.
	// ["activity", "heart", "sleep", "workouts"].
	Categories []string `yaml:"categories"`

	// PollInterval controls how often the daemon runs an incremental pass.
	// Minimum 1m, maximum 24h. Defaults to 15m if unset. Ignored when
	// Schedule is set.
	PollInterval time.Duration `yaml:"poll_interval"`

	// Schedule is an optional cron expression (five fields) driving the
	// daemon instead of PollInterval, e.g. "*/30 * * * *".
	Schedule string `yaml:"schedule,omitempty"`

	// LookbackDays is how far back a never-synced stream reaches on its
	// first pass. Defaults to 30.
	LookbackDays int `yaml:"lookback_days"`

	// Device overrides the device descriptor embedded in every batch
	// envelope. Unset fields fall back to host values.
	Device *DeviceConfig `yaml:"device,omitempty"`

	// Telemetry configures optional OpenTelemetry export via OTLP gRPC.
	// Omit the block entirely to disable telemetry.
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty"`
}

// DeviceConfig is the device descriptor block.
type DeviceConfig struct {
	Name          string `yaml:"name"`
	Model         string `yaml:"model"`
	SystemVersion string `yaml:"system_version"`
}

// TelemetryConfig holds optional OpenTelemetry settings.
type TelemetryConfig struct {
	// OTLPEndpoint is the gRPC host:port of the OTLP collector (e.g. "localhost:4317").
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// Insecure disables TLS for the collector connection. Use for local collectors.
	Insecure bool `yaml:"insecure"`

	// ServiceName overrides the OTel service.name attribute. Defaults to "healthrelay".
	ServiceName string `yaml:"service_name"`

	// Headers contains key-value pairs sent as gRPC metadata on every OTLP
	// request, e.g. Authorization: "Bearer <token>".
	Headers map[string]string `yaml:"headers,omitempty"`
}

// DefaultPath returns the default config file path: ~/.config/healthrelay/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "healthrelay", "config.yaml"), nil
}

// Load reads and validates the configuration file at the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file %q: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true) // reject unknown keys to catch typos early
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %q: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// DeviceInfo resolves the device descriptor, filling unset fields from the
// host.
func (c *Config) DeviceInfo() model.DeviceInfo {
	info := model.DeviceInfo{
		Model:         "unknown",
		SystemVersion: runtime.GOOS,
	}
	if host, err := os.Hostname(); err == nil {
		info.Name = host
	}
	if c.Device != nil {
		if c.Device.Name != "" {
			info.Name = c.Device.Name
		}
		if c.Device.Model != "" {
			info.Model = c.Device.Model
		}
		if c.Device.SystemVersion != "" {
			info.SystemVersion = c.Device.SystemVersion
		}
	}
	return info
}

// Lookback returns the first-sync lookback window as a duration.
func (c *Config) Lookback() time.Duration {
	return time.Duration(c.LookbackDays) * 24 * time.Hour
}

// validate checks that all required fields are present and well-formed.
func (c *Config) validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("backend_url is required")
	}
	u, err := url.ParseRequestURI(c.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("backend_url %q must be a valid http or https URL", c.BackendURL)
	}

	if c.BackendToken == "" {
		return fmt.Errorf("backend_token is required")
	}

	if c.StreamPrefix == "" {
		c.StreamPrefix = "health"
	}

	if len(c.Categories) == 0 {
		return fmt.Errorf("categories must contain at least one entry (known: %v)", normalize.KnownCategories())
	}
	for _, cat := range c.Categories {
		if !normalize.KnownCategory(cat) {
			return fmt.Errorf("categories contains unknown category %q (known: %v)", cat, normalize.KnownCategories())
		}
	}

	if c.PollInterval == 0 {
		c.PollInterval = 15 * time.Minute
	}
	if c.PollInterval < time.Minute {
		return fmt.Errorf("poll_interval %v is too short (minimum 1m)", c.PollInterval)
	}
	if c.PollInterval > 24*time.Hour {
		return fmt.Errorf("poll_interval %v is too long (maximum 24h)", c.PollInterval)
	}

	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			return fmt.Errorf("schedule %q is not a valid cron expression: %w", c.Schedule, err)
		}
	}

	if c.LookbackDays == 0 {
		c.LookbackDays = 30
	}
	if c.LookbackDays < 1 || c.LookbackDays > 3650 {
		return fmt.Errorf("lookback_days %d out of range (1–3650)", c.LookbackDays)
	}

	if c.Telemetry != nil {
		if c.Telemetry.OTLPEndpoint == "" {
			return fmt.Errorf("telemetry.otlp_endpoint is required when telemetry is configured")
		}
	}

	return nil
}

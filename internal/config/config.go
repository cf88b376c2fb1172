// Package config loads and validates the photocal YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/dhkang/photocal/internal/model"
)

// Config holds the full application configuration loaded from YAML.
type Config struct {
	// User identifies whose events this instance syncs. All store rows
	// are partitioned by it.
	User string `yaml:"user"`

	// CalendarID is the Google Calendar to sync against. "primary"
	// selects the account's default calendar.
	CalendarID string `yaml:"calendar_id"`

	// CredentialsFile points at the OAuth token JSON obtained from the
	// authorization flow.
	CredentialsFile string `yaml:"credentials_file"`

	// DBPath overrides the state database location.
	// Defaults to ~/.local/share/photocal/state.db.
	DBPath string `yaml:"db_path,omitempty"`

	// Strategy picks the conflict resolution policy: local-wins,
	// remote-wins, newest-wins, or manual. Defaults to newest-wins.
	Strategy string `yaml:"strategy,omitempty"`

	// WindowPast and WindowAhead bound the sync window around the wall
	// clock. Default 7 days back and 90 days ahead.
	WindowPast  time.Duration `yaml:"window_past,omitempty"`
	WindowAhead time.Duration `yaml:"window_ahead,omitempty"`

	// PollInterval controls how often the daemon syncs.
	// Minimum 30s, maximum 24h. Defaults to 5m if unset.
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`

	// Schedule is an optional cron expression (five fields) replacing
	// the poll interval, e.g. "*/15 8-22 * * *".
	Schedule string `yaml:"schedule,omitempty"`

	// ConfidenceThreshold is the extraction score at or above which a
	// submitted event is confirmed without review. Defaults to 0.9.
	ConfidenceThreshold *float64 `yaml:"confidence_threshold,omitempty"`

	// Telemetry configures optional OpenTelemetry export via OTLP gRPC.
	// Omit the block entirely to disable telemetry.
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty"`
}

// TelemetryConfig holds optional OpenTelemetry settings.
type TelemetryConfig struct {
	// OTLPEndpoint is the gRPC host:port of the OTLP collector (e.g. "localhost:4317").
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// Insecure disables TLS for the collector connection. Use for local collectors.
	Insecure bool `yaml:"insecure"`

	// ServiceName overrides the OTel service.name attribute. Defaults to "photocal".
	ServiceName string `yaml:"service_name"`

	// Headers contains key-value pairs sent as gRPC metadata on every OTLP
	// request. Equivalent to the OTEL_EXPORTER_OTLP_HEADERS environment
	// variable. Use this for authentication tokens, e.g.:
	//   Authorization: "Bearer <token>"
	Headers map[string]string `yaml:"headers,omitempty"`
}

// DefaultPath returns the default config file path: ~/.config/photocal/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "photocal", "config.yaml"), nil
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

// ResolvedStrategy returns the parsed conflict strategy.
func (c *Config) ResolvedStrategy() model.Strategy {
	s, err := model.ParseStrategy(c.Strategy)
	if err != nil {
		return model.NewestWins
	}
	return s
}

// ResolvedThreshold returns the auto-confirm confidence threshold.
func (c *Config) ResolvedThreshold() float64 {
	if c.ConfidenceThreshold == nil {
		return 0.9
	}
	return *c.ConfidenceThreshold
}

// validate checks that all required fields are present and well-formed,
// applying defaults for the optional ones.
func (c *Config) validate() error {
	if c.User == "" {
		return fmt.Errorf("user is required")
	}
	if c.CalendarID == "" {
		return fmt.Errorf("calendar_id is required")
	}
	if c.CredentialsFile == "" {
		return fmt.Errorf("credentials_file is required")
	}

	if c.Strategy == "" {
		c.Strategy = model.NewestWins.String()
	}
	if _, err := model.ParseStrategy(c.Strategy); err != nil {
		return err
	}

	if c.WindowPast == 0 {
		c.WindowPast = 7 * 24 * time.Hour
	}
	if c.WindowPast < 0 {
		return fmt.Errorf("window_past must not be negative")
	}
	if c.WindowAhead == 0 {
		c.WindowAhead = 90 * 24 * time.Hour
	}
	if c.WindowAhead < time.Hour {
		return fmt.Errorf("window_ahead %v is too short (minimum 1h)", c.WindowAhead)
	}

	if c.PollInterval == 0 {
		c.PollInterval = 5 * time.Minute
	}
	if c.PollInterval < 30*time.Second {
		return fmt.Errorf("poll_interval %v is too short (minimum 30s)", c.PollInterval)
	}
	if c.PollInterval > 24*time.Hour {
		return fmt.Errorf("poll_interval %v is too long (maximum 24h)", c.PollInterval)
	}

	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			return fmt.Errorf("schedule %q is not a valid cron expression: %w", c.Schedule, err)
		}
	}

	if t := c.ResolvedThreshold(); t < 0 || t > 1 {
		return fmt.Errorf("confidence_threshold %v must be in [0, 1]", t)
	}

	if c.Telemetry != nil {
		if c.Telemetry.OTLPEndpoint == "" {
			return fmt.Errorf("telemetry.otlp_endpoint is required when telemetry is configured")
		}
	}

	return nil
}

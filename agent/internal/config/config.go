package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultConnections   = 1
	DefaultClickInterval = 1 * time.Second
)

// Config is the clicker configuration. It is read from the `clicker:` section
// of config.yaml; the `server:` section in the same file is ignored.
type Config struct {
	Clicker ClickerConfig `yaml:"clicker"`
}

// ClickerConfig holds all clicker settings.
type ClickerConfig struct {
	// ServerURL is the ws:// or wss:// address of clickhub-server.
	ServerURL string `yaml:"server_url"`

	// Connections is how many WebSocket connections run in parallel.
	Connections int `yaml:"connections"`

	// ClickInterval is the pause between clicks on one connection.
	ClickInterval time.Duration `yaml:"click_interval"`

	// Clicks is the number of clicks each connection sends before it
	// disconnects. Zero means click until stopped.
	Clicks uint64 `yaml:"clicks"`

	// PingInterval sends a protocol ping this often. Zero disables pings.
	PingInterval time.Duration `yaml:"ping_interval"`

	// MetricsURL is the server's Prometheus endpoint. When set, the clicker
	// scrapes it after the run and reports the server-side click total.
	MetricsURL string `yaml:"metrics_url"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("clicker config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("clicker config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("clicker config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Clicker: ClickerConfig{
			Connections:   DefaultConnections,
			ClickInterval: DefaultClickInterval,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	c := cfg.Clicker
	if c.ServerURL == "" {
		return fmt.Errorf("clicker.server_url is required")
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("clicker.server_url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("clicker.server_url: scheme must be ws or wss, got %q", u.Scheme)
	}
	if c.Connections <= 0 {
		return fmt.Errorf("clicker.connections must be positive")
	}
	if c.ClickInterval <= 0 {
		return fmt.Errorf("clicker.click_interval must be positive")
	}
	if c.PingInterval < 0 {
		return fmt.Errorf("clicker.ping_interval must not be negative")
	}
	if c.MetricsURL != "" {
		m, err := url.Parse(c.MetricsURL)
		if err != nil {
			return fmt.Errorf("clicker.metrics_url: %w", err)
		}
		if m.Scheme != "http" && m.Scheme != "https" {
			return fmt.Errorf("clicker.metrics_url: scheme must be http or https, got %q", m.Scheme)
		}
	}
	return nil
}

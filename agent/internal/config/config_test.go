package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Valid(t *testing.T) {
	yaml := `
clicker:
  server_url: "ws://localhost:8765/"
  connections: 4
  click_interval: 250ms
  clicks: 100
  ping_interval: 5s
  metrics_url: "http://localhost:8765/metrics"
`
	cfg := loadFromString(t, yaml)
	c := cfg.Clicker

	if c.ServerURL != "ws://localhost:8765/" {
		t.Errorf("server_url: got %q", c.ServerURL)
	}
	if c.Connections != 4 {
		t.Errorf("connections: got %d", c.Connections)
	}
	if c.ClickInterval != 250*time.Millisecond {
		t.Errorf("click_interval: got %v", c.ClickInterval)
	}
	if c.Clicks != 100 {
		t.Errorf("clicks: got %d", c.Clicks)
	}
	if c.PingInterval != 5*time.Second {
		t.Errorf("ping_interval: got %v", c.PingInterval)
	}
	if c.MetricsURL != "http://localhost:8765/metrics" {
		t.Errorf("metrics_url: got %q", c.MetricsURL)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadFromString(t, `
clicker:
  server_url: "ws://localhost:8765"
`)
	c := cfg.Clicker

	if c.Connections != DefaultConnections {
		t.Errorf("default connections: got %d, want %d", c.Connections, DefaultConnections)
	}
	if c.ClickInterval != DefaultClickInterval {
		t.Errorf("default click_interval: got %v, want %v", c.ClickInterval, DefaultClickInterval)
	}
	if c.Clicks != 0 {
		t.Errorf("default clicks: got %d, want 0", c.Clicks)
	}
	if c.PingInterval != 0 {
		t.Errorf("default ping_interval: got %v, want 0", c.PingInterval)
	}
}

func TestLoad_IgnoresServerSection(t *testing.T) {
	cfg := loadFromString(t, `
server:
  port: 9000
clicker:
  server_url: "wss://clicks.example.com/"
`)
	if cfg.Clicker.ServerURL != "wss://clicks.example.com/" {
		t.Errorf("server_url: got %q", cfg.Clicker.ServerURL)
	}
}

func TestLoad_MissingServerURL(t *testing.T) {
	_, err := loadStringErr(t, `
clicker:
  connections: 2
`)
	if err == nil || !strings.Contains(err.Error(), "server_url is required") {
		t.Errorf("got %v, want server_url is required", err)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"http scheme", "clicker:\n  server_url: http://localhost:8765\n", "scheme must be ws or wss"},
		{"zero connections", "clicker:\n  server_url: ws://h\n  connections: 0\n", "connections must be positive"},
		{"zero interval", "clicker:\n  server_url: ws://h\n  click_interval: 0s\n", "click_interval must be positive"},
		{"negative ping", "clicker:\n  server_url: ws://h\n  ping_interval: -1s\n", "ping_interval must not be negative"},
		{"bad metrics url", "clicker:\n  server_url: ws://h\n  metrics_url: ws://h/metrics\n", "scheme must be http or https"},
		{"bad yaml", "clicker: [\n", "parse yaml"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loadStringErr(t, tc.yaml)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not contain %q", err, tc.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

// loadFromString writes yaml to a temp file and calls Load, failing on error.
func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	cfg, err := loadStringErr(t, content)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	return cfg
}

// loadStringErr writes yaml to a temp file and calls Load, returning any error.
func loadStringErr(t *testing.T, content string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return Load(path)
}

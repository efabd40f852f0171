package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultHost         = "0.0.0.0"
	DefaultPort         = 8765
	DefaultWSPath       = "/"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "json"
	DefaultWriteTimeout = 10 * time.Second
	DefaultPongWait     = 60 * time.Second
	DefaultPingInterval = (DefaultPongWait * 9) / 10
	DefaultReadLimit    = 64 << 10
	DefaultMetricsPath  = "/metrics"
)

// APIPrefix is reserved for the REST API; ws_path and metrics.path may not
// fall under it.
const APIPrefix = "/api/"

// Config holds the server-side configuration parsed from the `server:` section
// of config.yaml. The `clicker:` key in the same file is ignored.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// Host is the interface the listener binds to (default 0.0.0.0).
	Host string `yaml:"host"`

	// Port is the TCP port for WebSocket, REST and metrics (default 8765).
	Port int `yaml:"port"`

	// WSPath is the HTTP path WebSocket clients connect to (default "/",
	// which catches every path not claimed by the API or metrics).
	WSPath string `yaml:"ws_path"`

	Log       LogConfig       `yaml:"log"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// LogConfig controls the slog handler built by main.
type LogConfig struct {
	// Level is one of: debug | info | warn | error. Reloaded on file change.
	Level string `yaml:"level"`

	// Format is one of: json | text. Only read at startup.
	Format string `yaml:"format"`
}

// SlogLevel converts Level to a slog.Level. Unknown values map to info;
// validate rejects them before they get here.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WebSocketConfig tunes per-connection transport behaviour.
type WebSocketConfig struct {
	// WriteTimeout is the deadline for a single frame write.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// PingInterval is how often the server sends WebSocket ping frames.
	// Zero disables keepalive and read deadlines.
	PingInterval time.Duration `yaml:"ping_interval"`

	// PongWait is how long the server waits for any frame before treating the
	// connection as dead. Must exceed PingInterval when keepalive is enabled.
	PongWait time.Duration `yaml:"pong_wait"`

	// ReadLimit is the maximum inbound frame size in bytes.
	ReadLimit int64 `yaml:"read_limit"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Addr returns host:port for net.Listen.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Load reads and parses the config file at path, returning the server configuration.
// Missing fields are filled with sensible defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a Config pre-populated with default values. The server
// runs on it unchanged when no config file is present.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:   DefaultHost,
			Port:   DefaultPort,
			WSPath: DefaultWSPath,
			Log: LogConfig{
				Level:  DefaultLogLevel,
				Format: DefaultLogFormat,
			},
			WebSocket: WebSocketConfig{
				WriteTimeout: DefaultWriteTimeout,
				PingInterval: DefaultPingInterval,
				PongWait:     DefaultPongWait,
				ReadLimit:    DefaultReadLimit,
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    DefaultMetricsPath,
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range [1, 65535]", s.Port)
	}
	if !strings.HasPrefix(s.WSPath, "/") {
		return fmt.Errorf("server.ws_path %q must start with /", s.WSPath)
	}
	if strings.HasPrefix(s.WSPath, APIPrefix) {
		return fmt.Errorf("server.ws_path %q must not be under %s", s.WSPath, APIPrefix)
	}
	switch strings.ToLower(s.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("server.log.level %q unknown: want debug|info|warn|error", s.Log.Level)
	}
	switch s.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("server.log.format %q unknown: want json|text", s.Log.Format)
	}
	ws := s.WebSocket
	if ws.WriteTimeout <= 0 {
		return fmt.Errorf("server.websocket.write_timeout must be positive")
	}
	if ws.PingInterval < 0 {
		return fmt.Errorf("server.websocket.ping_interval must not be negative")
	}
	if ws.PingInterval > 0 && ws.PongWait <= ws.PingInterval {
		return fmt.Errorf("server.websocket.pong_wait (%v) must exceed ping_interval (%v)", ws.PongWait, ws.PingInterval)
	}
	if ws.ReadLimit <= 0 {
		return fmt.Errorf("server.websocket.read_limit must be positive")
	}
	if s.Metrics.Enabled {
		if !strings.HasPrefix(s.Metrics.Path, "/") {
			return fmt.Errorf("server.metrics.path %q must start with /", s.Metrics.Path)
		}
		if strings.HasPrefix(s.Metrics.Path, APIPrefix) {
			return fmt.Errorf("server.metrics.path %q must not be under %s", s.Metrics.Path, APIPrefix)
		}
		if s.Metrics.Path == s.WSPath {
			return fmt.Errorf("server.metrics.path and server.ws_path must differ")
		}
	}
	return nil
}

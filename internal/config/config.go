package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment variable the server reads.
const EnvPrefix = "MEETINGHOST_"

// Directory drivers
const (
	DirectoryHTTP   = "http"
	DirectorySQLite = "sqlite"
)

// Config is the complete server configuration.
type Config struct {
	Server     *ServerConfig     `json:"server"`
	HTTP       *HTTPConfig       `json:"http"`
	WebSocket  *WebSocketConfig  `json:"websocket"`
	Directory  *DirectoryConfig  `json:"directory"`
	Validation *ValidationConfig `json:"validation"`
	Meeting    *MeetingConfig    `json:"meeting"`
	RateLimit  *RateLimitConfig  `json:"rate_limit"`
	Log        *LogConfig        `json:"log"`

	BypassProductionWarning bool `json:"bypass_production_warning"`
}

// ServerConfig is the raw TCP listener.
type ServerConfig struct {
	Host          string        `json:"host"`
	Port          int           `json:"port"`
	AcceptTimeout time.Duration `json:"accept_timeout"`
}

// HTTPConfig is the admin API listener, which also carries websocket
// upgrades.
type HTTPConfig struct {
	Enabled      bool          `json:"enabled"`
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

type WebSocketConfig struct {
	Enabled        bool          `json:"enabled"`
	Path           string        `json:"path"`
	AllowedOrigins []string      `json:"allowed_origins"`
	PingInterval   time.Duration `json:"ping_interval"`
	PongWait       time.Duration `json:"pong_wait"`
	WriteTimeout   time.Duration `json:"write_timeout"`
	BufferSize     int           `json:"buffer_size"`
}

// DirectoryConfig selects where tokens and meeting codes are resolved.
type DirectoryConfig struct {
	Driver       string        `json:"driver"`
	URL          string        `json:"url"`
	Timeout      time.Duration `json:"timeout"`
	DatabasePath string        `json:"database_path"`
}

type ValidationConfig struct {
	ResponseTimeout time.Duration `json:"response_timeout"`
	PollInterval    time.Duration `json:"poll_interval"`
}

type MeetingConfig struct {
	EventPollInterval      time.Duration `json:"event_poll_interval"`
	HeartbeatCheckInterval time.Duration `json:"heartbeat_check_interval"`
	HeartbeatTimeout       time.Duration `json:"heartbeat_timeout"`
	CloseCheckInterval     time.Duration `json:"close_check_interval"`
	PipelinePollInterval   time.Duration `json:"pipeline_poll_interval"`
}

// RateLimitConfig caps new connections per remote host. 0 disables.
type RateLimitConfig struct {
	ConnectionsPerMinute int `json:"connections_per_minute"`
}

type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: &ServerConfig{
			Host:          "0.0.0.0",
			Port:          25565,
			AcceptTimeout: time.Second,
		},
		HTTP: &HTTPConfig{
			Enabled:      true,
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		WebSocket: &WebSocketConfig{
			Enabled:      true,
			Path:         "/ws",
			PingInterval: 30 * time.Second,
			PongWait:     60 * time.Second,
			WriteTimeout: 5 * time.Second,
			BufferSize:   100,
		},
		Directory: &DirectoryConfig{
			Driver:       DirectoryHTTP,
			URL:          "http://localhost:3000",
			Timeout:      5 * time.Second,
			DatabasePath: "./data/directory.db",
		},
		Validation: &ValidationConfig{
			ResponseTimeout: 1000 * time.Millisecond,
			PollInterval:    10 * time.Millisecond,
		},
		Meeting: &MeetingConfig{
			EventPollInterval:      10 * time.Millisecond,
			HeartbeatCheckInterval: 100 * time.Millisecond,
			HeartbeatTimeout:       7000 * time.Millisecond,
			CloseCheckInterval:     5000 * time.Millisecond,
			PipelinePollInterval:   10 * time.Millisecond,
		},
		RateLimit: &RateLimitConfig{
			ConnectionsPerMinute: 60,
		},
		Log: &LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Server == nil || c.HTTP == nil || c.WebSocket == nil || c.Directory == nil ||
		c.Validation == nil || c.Meeting == nil || c.RateLimit == nil || c.Log == nil {
		return errors.New("every configuration section is required")
	}

	if err := validPort("server", c.Server.Port); err != nil {
		return err
	}
	if c.Server.AcceptTimeout <= 0 {
		return errors.New("server accept timeout must be positive")
	}

	if c.HTTP.Enabled {
		if err := validPort("HTTP", c.HTTP.Port); err != nil {
			return err
		}
		if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
			return errors.New("HTTP timeouts must be positive")
		}
	}

	if c.WebSocket.Enabled {
		if !c.HTTP.Enabled {
			return errors.New("websocket requires the HTTP listener")
		}
		if !strings.HasPrefix(c.WebSocket.Path, "/") {
			return errors.New("websocket path must start with /")
		}
		if c.WebSocket.WriteTimeout <= 0 {
			return errors.New("websocket write timeout must be positive")
		}
		if c.WebSocket.BufferSize <= 0 {
			return errors.New("websocket buffer size must be positive")
		}
		if c.WebSocket.PingInterval > 0 && c.WebSocket.PongWait <= c.WebSocket.PingInterval {
			return errors.New("websocket pong wait must exceed the ping interval")
		}
	}

	switch c.Directory.Driver {
	case DirectoryHTTP:
		if c.Directory.URL == "" {
			return errors.New("directory url cannot be empty")
		}
	case DirectorySQLite:
		if c.Directory.DatabasePath == "" {
			return errors.New("directory database path cannot be empty")
		}
	default:
		return fmt.Errorf("unknown directory driver %q", c.Directory.Driver)
	}
	if c.Directory.Timeout <= 0 {
		return errors.New("directory timeout must be positive")
	}

	if c.Validation.ResponseTimeout <= 0 || c.Validation.PollInterval <= 0 {
		return errors.New("validation timeouts must be positive")
	}

	m := c.Meeting
	if m.EventPollInterval <= 0 || m.HeartbeatCheckInterval <= 0 || m.HeartbeatTimeout <= 0 ||
		m.CloseCheckInterval <= 0 || m.PipelinePollInterval <= 0 {
		return errors.New("meeting intervals must be positive")
	}

	if c.RateLimit.ConnectionsPerMinute < 0 {
		return errors.New("connections per minute cannot be negative")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

func validPort(name string, port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("%s port must be between 0 and 65535", name)
	}
	return nil
}

// ServerAddr is the TCP listen address.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// HTTPAddr is the admin API listen address.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}

// LoadFromEnv overlays MEETINGHOST_* variables on the defaults. Malformed
// values are ignored.
func LoadFromEnv() *Config {
	config := DefaultConfig()
	applyEnv(config)
	return config
}

func applyEnv(c *Config) {
	envString("SERVER_HOST", &c.Server.Host)
	envInt("SERVER_PORT", &c.Server.Port)
	envDuration("SERVER_ACCEPT_TIMEOUT", &c.Server.AcceptTimeout)

	envBool("HTTP_ENABLED", &c.HTTP.Enabled)
	envString("HTTP_HOST", &c.HTTP.Host)
	envInt("HTTP_PORT", &c.HTTP.Port)
	envDuration("HTTP_READ_TIMEOUT", &c.HTTP.ReadTimeout)
	envDuration("HTTP_WRITE_TIMEOUT", &c.HTTP.WriteTimeout)

	envBool("WEBSOCKET_ENABLED", &c.WebSocket.Enabled)
	envString("WEBSOCKET_PATH", &c.WebSocket.Path)
	envList("WEBSOCKET_ALLOWED_ORIGINS", &c.WebSocket.AllowedOrigins)
	envDuration("WEBSOCKET_PING_INTERVAL", &c.WebSocket.PingInterval)
	envDuration("WEBSOCKET_PONG_WAIT", &c.WebSocket.PongWait)
	envDuration("WEBSOCKET_WRITE_TIMEOUT", &c.WebSocket.WriteTimeout)
	envInt("WEBSOCKET_BUFFER_SIZE", &c.WebSocket.BufferSize)

	envString("DIRECTORY_DRIVER", &c.Directory.Driver)
	envString("DIRECTORY_URL", &c.Directory.URL)
	envDuration("DIRECTORY_TIMEOUT", &c.Directory.Timeout)
	envString("DIRECTORY_DATABASE_PATH", &c.Directory.DatabasePath)

	envDuration("VALIDATION_RESPONSE_TIMEOUT", &c.Validation.ResponseTimeout)
	envDuration("VALIDATION_POLL_INTERVAL", &c.Validation.PollInterval)

	envDuration("MEETING_EVENT_POLL_INTERVAL", &c.Meeting.EventPollInterval)
	envDuration("MEETING_HEARTBEAT_CHECK_INTERVAL", &c.Meeting.HeartbeatCheckInterval)
	envDuration("MEETING_HEARTBEAT_TIMEOUT", &c.Meeting.HeartbeatTimeout)
	envDuration("MEETING_CLOSE_CHECK_INTERVAL", &c.Meeting.CloseCheckInterval)
	envDuration("MEETING_PIPELINE_POLL_INTERVAL", &c.Meeting.PipelinePollInterval)

	envInt("RATE_LIMIT_CONNECTIONS_PER_MINUTE", &c.RateLimit.ConnectionsPerMinute)

	envString("LOG_LEVEL", &c.Log.Level)
	envString("LOG_FORMAT", &c.Log.Format)

	envBool("BYPASS_PRODUCTION_WARNING", &c.BypassProductionWarning)
}

func envString(key string, dst *string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func envList(key string, dst *[]string) {
	v := os.Getenv(EnvPrefix + key)
	if v == "" {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

// LoadFromFile reads a JSON file over the defaults and validates the result.
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()
	if err := applyFile(config, path); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return config, nil
}

// LoadConfigWithPrecedence layers file over environment over defaults. An
// empty path skips the file; a named file that cannot be read is an error.
func LoadConfigWithPrecedence(path string) (*Config, error) {
	config := LoadFromEnv()
	if path != "" {
		if err := applyFile(config, path); err != nil {
			return nil, err
		}
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

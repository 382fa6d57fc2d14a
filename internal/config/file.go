package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ConfigFile is the on-disk JSON shape. Durations are strings such as
// "500ms"; absent fields keep their current value.
type ConfigFile struct {
	Server     *ServerConfigFile     `json:"server"`
	HTTP       *HTTPConfigFile       `json:"http"`
	WebSocket  *WebSocketConfigFile  `json:"websocket"`
	Directory  *DirectoryConfigFile  `json:"directory"`
	Validation *ValidationConfigFile `json:"validation"`
	Meeting    *MeetingConfigFile    `json:"meeting"`
	RateLimit  *RateLimitConfigFile  `json:"rate_limit"`
	Log        *LogConfigFile        `json:"log"`

	BypassProductionWarning *bool `json:"bypass_production_warning"`
}

type ServerConfigFile struct {
	Host          string `json:"host"`
	Port          *int   `json:"port"`
	AcceptTimeout string `json:"accept_timeout"`
}

type HTTPConfigFile struct {
	Enabled      *bool  `json:"enabled"`
	Host         string `json:"host"`
	Port         *int   `json:"port"`
	ReadTimeout  string `json:"read_timeout"`
	WriteTimeout string `json:"write_timeout"`
}

type WebSocketConfigFile struct {
	Enabled        *bool    `json:"enabled"`
	Path           string   `json:"path"`
	AllowedOrigins []string `json:"allowed_origins"`
	PingInterval   string   `json:"ping_interval"`
	PongWait       string   `json:"pong_wait"`
	WriteTimeout   string   `json:"write_timeout"`
	BufferSize     int      `json:"buffer_size"`
}

type DirectoryConfigFile struct {
	Driver       string `json:"driver"`
	URL          string `json:"url"`
	Timeout      string `json:"timeout"`
	DatabasePath string `json:"database_path"`
}

type ValidationConfigFile struct {
	ResponseTimeout string `json:"response_timeout"`
	PollInterval    string `json:"poll_interval"`
}

type MeetingConfigFile struct {
	EventPollInterval      string `json:"event_poll_interval"`
	HeartbeatCheckInterval string `json:"heartbeat_check_interval"`
	HeartbeatTimeout       string `json:"heartbeat_timeout"`
	CloseCheckInterval     string `json:"close_check_interval"`
	PipelinePollInterval   string `json:"pipeline_poll_interval"`
}

type RateLimitConfigFile struct {
	ConnectionsPerMinute *int `json:"connections_per_minute"`
}

type LogConfigFile struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

func applyFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file ConfigFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// FUNCTIONAL DISCOVERY: a bad duration string fails loudly; silently
	// keeping the default hides typos like "5 s"
	d := durations{path: path}

	if f := file.Server; f != nil {
		setString(&config.Server.Host, f.Host)
		setInt(&config.Server.Port, f.Port)
		d.set(&config.Server.AcceptTimeout, "server.accept_timeout", f.AcceptTimeout)
	}
	if f := file.HTTP; f != nil {
		setBool(&config.HTTP.Enabled, f.Enabled)
		setString(&config.HTTP.Host, f.Host)
		setInt(&config.HTTP.Port, f.Port)
		d.set(&config.HTTP.ReadTimeout, "http.read_timeout", f.ReadTimeout)
		d.set(&config.HTTP.WriteTimeout, "http.write_timeout", f.WriteTimeout)
	}
	if f := file.WebSocket; f != nil {
		setBool(&config.WebSocket.Enabled, f.Enabled)
		setString(&config.WebSocket.Path, f.Path)
		if f.AllowedOrigins != nil {
			config.WebSocket.AllowedOrigins = f.AllowedOrigins
		}
		d.set(&config.WebSocket.PingInterval, "websocket.ping_interval", f.PingInterval)
		d.set(&config.WebSocket.PongWait, "websocket.pong_wait", f.PongWait)
		d.set(&config.WebSocket.WriteTimeout, "websocket.write_timeout", f.WriteTimeout)
		if f.BufferSize > 0 {
			config.WebSocket.BufferSize = f.BufferSize
		}
	}
	if f := file.Directory; f != nil {
		setString(&config.Directory.Driver, f.Driver)
		setString(&config.Directory.URL, f.URL)
		d.set(&config.Directory.Timeout, "directory.timeout", f.Timeout)
		setString(&config.Directory.DatabasePath, f.DatabasePath)
	}
	if f := file.Validation; f != nil {
		d.set(&config.Validation.ResponseTimeout, "validation.response_timeout", f.ResponseTimeout)
		d.set(&config.Validation.PollInterval, "validation.poll_interval", f.PollInterval)
	}
	if f := file.Meeting; f != nil {
		d.set(&config.Meeting.EventPollInterval, "meeting.event_poll_interval", f.EventPollInterval)
		d.set(&config.Meeting.HeartbeatCheckInterval, "meeting.heartbeat_check_interval", f.HeartbeatCheckInterval)
		d.set(&config.Meeting.HeartbeatTimeout, "meeting.heartbeat_timeout", f.HeartbeatTimeout)
		d.set(&config.Meeting.CloseCheckInterval, "meeting.close_check_interval", f.CloseCheckInterval)
		d.set(&config.Meeting.PipelinePollInterval, "meeting.pipeline_poll_interval", f.PipelinePollInterval)
	}
	if f := file.RateLimit; f != nil {
		setInt(&config.RateLimit.ConnectionsPerMinute, f.ConnectionsPerMinute)
	}
	if f := file.Log; f != nil {
		setString(&config.Log.Level, f.Level)
		setString(&config.Log.Format, f.Format)
	}
	setBool(&config.BypassProductionWarning, file.BypassProductionWarning)

	return d.err
}

type durations struct {
	path string
	err  error
}

func (d *durations) set(dst *time.Duration, field, value string) {
	if value == "" || d.err != nil {
		return
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		d.err = fmt.Errorf("invalid %s in %s: %w", field, d.path, err)
		return
	}
	*dst = parsed
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

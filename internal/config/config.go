package config

import (
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/parley-dev/parley/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "parley.yaml"

	// DefaultPort is the default server port.
	DefaultPort = 8080

	// DefaultHost is the default server host.
	DefaultHost = "localhost"
)

// Config represents the complete parley.yaml configuration.
type Config struct {
	// Name is the project name, shown in the serve banner.
	Name string `yaml:"name,omitempty"`

	// Server contains HTTP server configuration.
	Server ServerConfig `yaml:"server,omitempty"`

	// Session contains session lifecycle configuration.
	Session SessionConfig `yaml:"session,omitempty"`

	// Transfer contains file transfer configuration.
	Transfer TransferConfig `yaml:"transfer,omitempty"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics,omitempty"`

	// Log contains logging configuration.
	Log LogConfig `yaml:"log,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains HTTP server settings. Durations use Go
// syntax, e.g. "25s" or "5m".
type ServerConfig struct {
	// Host is the host to bind to.
	Host string `yaml:"host,omitempty"`

	// Port is the port to listen on.
	Port int `yaml:"port,omitempty"`

	// TrustProxyHeaders trusts X-Forwarded-For and X-Real-IP when
	// resolving client addresses.
	TrustProxyHeaders bool `yaml:"trustProxyHeaders,omitempty"`

	// MaxMessageSize is the maximum incoming message size in bytes.
	MaxMessageSize int64 `yaml:"maxMessageSize,omitempty"`

	// HeartbeatInterval is how often WebSocket pings are sent.
	HeartbeatInterval string `yaml:"heartbeatInterval,omitempty"`

	// ReadTimeout is how long to wait for a client message before the
	// connection is considered dead.
	ReadTimeout string `yaml:"readTimeout,omitempty"`

	// WriteTimeout bounds a single outgoing write.
	WriteTimeout string `yaml:"writeTimeout,omitempty"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout string `yaml:"shutdownTimeout,omitempty"`
}

// SessionConfig contains session lifecycle settings.
type SessionConfig struct {
	// IdleTimeout is how long an inactive session survives before it
	// is reaped.
	IdleTimeout string `yaml:"idleTimeout,omitempty"`

	// CleanupInterval is how often idle sessions are swept.
	CleanupInterval string `yaml:"cleanupInterval,omitempty"`

	// MaxSessions caps concurrent sessions (0 means no limit).
	MaxSessions int `yaml:"maxSessions,omitempty"`

	// MaxSessionsPerIP caps concurrent sessions per client IP
	// (0 means no limit).
	MaxSessionsPerIP int `yaml:"maxSessionsPerIP,omitempty"`

	// MaxPendingEvents caps the queued client events per session.
	MaxPendingEvents int `yaml:"maxPendingEvents,omitempty"`

	// PullInterval is the poll interval suggested to HTTP clients.
	PullInterval string `yaml:"pullInterval,omitempty"`
}

// TransferConfig contains file transfer settings.
type TransferConfig struct {
	// Enabled turns the upload spool endpoint on.
	Enabled bool `yaml:"enabled,omitempty"`

	// Dir is the spool directory.
	Dir string `yaml:"dir,omitempty"`

	// MaxFileSize is the upload size limit in bytes.
	MaxFileSize int64 `yaml:"maxFileSize,omitempty"`

	// MaxAge is how long unclaimed spool files are kept.
	MaxAge string `yaml:"maxAge,omitempty"`

	// CleanupInterval is how often expired spool files are swept.
	CleanupInterval string `yaml:"cleanupInterval,omitempty"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	// Enabled turns the metrics endpoint on.
	Enabled bool `yaml:"enabled,omitempty"`

	// Path is the metrics endpoint path.
	Path string `yaml:"path,omitempty"`

	// Namespace prefixes all metric names.
	Namespace string `yaml:"namespace,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `yaml:"level,omitempty"`

	// Format is text or json.
	Format string `yaml:"format,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              DefaultHost,
			Port:              DefaultPort,
			HeartbeatInterval: "25s",
			ReadTimeout:       "60s",
			WriteTimeout:      "10s",
			ShutdownTimeout:   "30s",
		},
		Session: SessionConfig{
			IdleTimeout:      "5m",
			CleanupInterval:  "30s",
			MaxPendingEvents: 256,
			PullInterval:     "1s",
		},
		Transfer: TransferConfig{
			Dir:             "spool",
			MaxFileSize:     10 << 20,
			MaxAge:          "1h",
			CleanupInterval: "10m",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Path:      "/metrics",
			Namespace: "parley",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for parley.yaml in the directory.
func Load(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ConfigFileName)
	return LoadFile(configPath)
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E080").
				WithDetail("No parley.yaml found in " + filepath.Dir(path)).
				WithSuggestion("Run 'parley init' to create one, or pass --config")
		}
		return nil, errors.New("E040").Wrap(err)
	}

	cfg := New()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E040").
			WithLocationFromYAML(path, err).
			WithSuggestion("Check that parley.yaml is valid YAML").
			Wrap(err)
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.New("E040").Wrap(err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E040").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	defaults := New()

	if c.Server.Host == "" {
		c.Server.Host = defaults.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaults.Server.Port
	}
	if c.Server.HeartbeatInterval == "" {
		c.Server.HeartbeatInterval = defaults.Server.HeartbeatInterval
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = defaults.Server.ReadTimeout
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = defaults.Server.WriteTimeout
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = defaults.Server.ShutdownTimeout
	}

	if c.Session.IdleTimeout == "" {
		c.Session.IdleTimeout = defaults.Session.IdleTimeout
	}
	if c.Session.CleanupInterval == "" {
		c.Session.CleanupInterval = defaults.Session.CleanupInterval
	}
	if c.Session.MaxPendingEvents == 0 {
		c.Session.MaxPendingEvents = defaults.Session.MaxPendingEvents
	}
	if c.Session.PullInterval == "" {
		c.Session.PullInterval = defaults.Session.PullInterval
	}

	if c.Transfer.Dir == "" {
		c.Transfer.Dir = defaults.Transfer.Dir
	}
	if c.Transfer.MaxFileSize == 0 {
		c.Transfer.MaxFileSize = defaults.Transfer.MaxFileSize
	}
	if c.Transfer.MaxAge == "" {
		c.Transfer.MaxAge = defaults.Transfer.MaxAge
	}
	if c.Transfer.CleanupInterval == "" {
		c.Transfer.CleanupInterval = defaults.Transfer.CleanupInterval
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = defaults.Metrics.Path
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = defaults.Metrics.Namespace
	}

	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.New("E041").
			WithDetail("Port must be between 0 and 65535")
	}

	durations := []struct {
		field string
		value string
	}{
		{"server.heartbeatInterval", c.Server.HeartbeatInterval},
		{"server.readTimeout", c.Server.ReadTimeout},
		{"server.writeTimeout", c.Server.WriteTimeout},
		{"server.shutdownTimeout", c.Server.ShutdownTimeout},
		{"session.idleTimeout", c.Session.IdleTimeout},
		{"session.cleanupInterval", c.Session.CleanupInterval},
		{"session.pullInterval", c.Session.PullInterval},
		{"transfer.maxAge", c.Transfer.MaxAge},
		{"transfer.cleanupInterval", c.Transfer.CleanupInterval},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		if _, err := time.ParseDuration(d.value); err != nil {
			return errors.New("E042").
				WithDetail("Field " + d.field + " has invalid duration " + strconv.Quote(d.value))
		}
	}

	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.New("E043").
			WithDetail("Unknown log level " + strconv.Quote(c.Log.Level))
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return errors.New("E044").
			WithDetail("Unknown log format " + strconv.Quote(c.Log.Format))
	}

	return nil
}

// Address returns the listen address for the server.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// URL returns the full URL for the server.
func (c *Config) URL() string {
	return "http://" + c.Address()
}

// SpoolDir returns the absolute path to the transfer spool directory.
func (c *Config) SpoolDir() string {
	if filepath.IsAbs(c.Transfer.Dir) {
		return c.Transfer.Dir
	}
	return filepath.Join(c.Dir(), c.Transfer.Dir)
}

// HeartbeatInterval returns the parsed WebSocket ping interval.
func (c *Config) HeartbeatInterval() time.Duration {
	return parseDuration(c.Server.HeartbeatInterval, 25*time.Second)
}

// ReadTimeout returns the parsed client read deadline.
func (c *Config) ReadTimeout() time.Duration {
	return parseDuration(c.Server.ReadTimeout, 60*time.Second)
}

// WriteTimeout returns the parsed write deadline.
func (c *Config) WriteTimeout() time.Duration {
	return parseDuration(c.Server.WriteTimeout, 10*time.Second)
}

// ShutdownTimeout returns the parsed graceful shutdown bound.
func (c *Config) ShutdownTimeout() time.Duration {
	return parseDuration(c.Server.ShutdownTimeout, 30*time.Second)
}

// SessionIdleTimeout returns the parsed idle session lifetime.
func (c *Config) SessionIdleTimeout() time.Duration {
	return parseDuration(c.Session.IdleTimeout, 5*time.Minute)
}

// SessionCleanupInterval returns the parsed idle sweep interval.
func (c *Config) SessionCleanupInterval() time.Duration {
	return parseDuration(c.Session.CleanupInterval, 30*time.Second)
}

// PullInterval returns the parsed HTTP poll interval.
func (c *Config) PullInterval() time.Duration {
	return parseDuration(c.Session.PullInterval, time.Second)
}

// TransferMaxAge returns how long unclaimed spool files are kept.
func (c *Config) TransferMaxAge() time.Duration {
	return parseDuration(c.Transfer.MaxAge, time.Hour)
}

// TransferCleanupInterval returns the parsed spool sweep interval.
func (c *Config) TransferCleanupInterval() time.Duration {
	return parseDuration(c.Transfer.CleanupInterval, 10*time.Minute)
}

// LogLevel returns the parsed log level, defaulting to info.
func (c *Config) LogLevel() slog.Level {
	switch c.Log.Level {
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

// NewLogger builds a logger from the log section.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel()}
	var handler slog.Handler
	if c.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// parseDuration parses a duration string, falling back when the value
// is empty or malformed. Validate reports malformed values.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	path := filepath.Join(dir, ConfigFileName)
	_, err := os.Stat(path)
	return err == nil
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing parley.yaml, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E080").
				WithDetail("No parley.yaml found in " + startDir + " or any parent directory").
				WithSuggestion("Run 'parley init' to create one")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working directory.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}

	return Load(root)
}

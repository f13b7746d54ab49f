package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete robosock configuration
type Config struct {
	Socket  SocketConfig  `mapstructure:"socket" yaml:"socket"`
	Relay   RelayConfig   `mapstructure:"relay" yaml:"relay"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Watch   WatchConfig   `mapstructure:"watch" yaml:"watch"`
}

// SocketConfig controls the managed socket
type SocketConfig struct {
	// Path is where the socket file is bound
	Path string `mapstructure:"path" yaml:"path"`
	// Mode is the octal permission string applied after bind (e.g. "0660").
	// Empty leaves the umask-derived mode.
	Mode string `mapstructure:"mode" yaml:"mode"`
	// CreateDir creates the parent directory of Path if it is missing (default: true)
	CreateDir bool `mapstructure:"create_dir" yaml:"create_dir"`
	// RequireSocketFile refuses to reclaim a path occupied by anything but a socket
	RequireSocketFile bool `mapstructure:"require_socket_file" yaml:"require_socket_file"`
	// RefuseLive makes serve exit instead of reclaiming a socket that another
	// process is still answering on
	RefuseLive bool `mapstructure:"refuse_live" yaml:"refuse_live"`
}

// RelayConfig controls the datagram relay run by serve
type RelayConfig struct {
	// QueueSize bounds the messages buffered between receiver and forwarder (default: 64)
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size"`
	// MaxDatagramSize is the receive buffer size in bytes (default: 65536)
	MaxDatagramSize int `mapstructure:"max_datagram_size" yaml:"max_datagram_size"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// Format is "json", "text" or "auto" (default: "auto")
	Format string `mapstructure:"format" yaml:"format"`
	// File is an optional log file; empty logs to stderr
	File string `mapstructure:"file" yaml:"file"`
	// MaxSizeMB is the file size that triggers rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of rotated files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
	// Compress gzips rotated files
	Compress bool `mapstructure:"compress" yaml:"compress"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
}

// WatchConfig controls detection of socket files deleted from under a live socket
type WatchConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// DebounceMs coalesces bursts of filesystem events (default: 50)
	DebounceMs int `mapstructure:"debounce_ms" yaml:"debounce_ms"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Socket: SocketConfig{
			Path:      DefaultSocketPath(),
			CreateDir: true,
		},
		Relay: RelayConfig{
			QueueSize:       64,
			MaxDatagramSize: 64 * 1024,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "auto",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: "127.0.0.1:9464",
		},
		Watch: WatchConfig{
			Enabled:    true,
			DebounceMs: 50,
		},
	}
}

// FileMode parses Mode. It returns 0 when Mode is empty.
func (c *SocketConfig) FileMode() (os.FileMode, error) {
	if c.Mode == "" {
		return 0, nil
	}
	m, err := strconv.ParseUint(c.Mode, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid octal mode %q: %w", c.Mode, err)
	}
	return os.FileMode(m), nil
}

// Debounce returns DebounceMs as a duration
func (c *WatchConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Socket defaults
	viper.SetDefault("socket.path", defaults.Socket.Path)
	viper.SetDefault("socket.mode", defaults.Socket.Mode)
	viper.SetDefault("socket.create_dir", defaults.Socket.CreateDir)
	viper.SetDefault("socket.require_socket_file", defaults.Socket.RequireSocketFile)
	viper.SetDefault("socket.refuse_live", defaults.Socket.RefuseLive)

	// Relay defaults
	viper.SetDefault("relay.queue_size", defaults.Relay.QueueSize)
	viper.SetDefault("relay.max_datagram_size", defaults.Relay.MaxDatagramSize)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.format", defaults.Logging.Format)
	viper.SetDefault("logging.file", defaults.Logging.File)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	viper.SetDefault("metrics.listen_addr", defaults.Metrics.ListenAddr)

	// Watch defaults
	viper.SetDefault("watch.enabled", defaults.Watch.Enabled)
	viper.SetDefault("watch.debounce_ms", defaults.Watch.DebounceMs)
}

// Load reads the configuration from viper and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "robosock")
	}
	// Fall back to ~/.config/robosock
	home, err := os.UserHomeDir()
	if err != nil {
		return ".robosock"
	}
	return filepath.Join(home, ".config", "robosock")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DefaultSocketPath returns robosock.sock under $XDG_RUNTIME_DIR, or under
// the system temp directory when that is unset.
func DefaultSocketPath() string {
	base := os.Getenv("XDG_RUNTIME_DIR")
	if base == "" {
		base = os.TempDir()
	}
	return filepath.Join(base, "robosock", "robosock.sock")
}

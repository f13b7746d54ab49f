package config

import (
	"fmt"
	"net"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "relay.queue_size")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidLogFormats returns the list of valid log formats
func ValidLogFormats() []string {
	return []string{"json", "text", "auto"}
}

// maxSocketPathLen is the smallest sun_path across supported platforms,
// less the terminating NUL.
const maxSocketPathLen = 103

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateSocket()...)
	errors = append(errors, c.validateRelay()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateMetrics()...)
	errors = append(errors, c.validateWatch()...)

	return errors
}

// validateSocket validates the SocketConfig
func (c *Config) validateSocket() []ValidationError {
	var errors []ValidationError

	switch {
	case c.Socket.Path == "":
		errors = append(errors, ValidationError{
			Field:   "socket.path",
			Value:   c.Socket.Path,
			Message: "must not be empty",
		})
	case strings.ContainsRune(c.Socket.Path, '\x00'):
		errors = append(errors, ValidationError{
			Field:   "socket.path",
			Value:   c.Socket.Path,
			Message: "contains invalid null character",
		})
	case len(c.Socket.Path) > maxSocketPathLen:
		errors = append(errors, ValidationError{
			Field:   "socket.path",
			Value:   c.Socket.Path,
			Message: fmt.Sprintf("exceeds maximum socket path length of %d bytes", maxSocketPathLen),
		})
	}

	if mode, err := c.Socket.FileMode(); err != nil {
		errors = append(errors, ValidationError{
			Field:   "socket.mode",
			Value:   c.Socket.Mode,
			Message: "must be an octal permission string such as 0660",
		})
	} else if mode&^0o777 != 0 {
		errors = append(errors, ValidationError{
			Field:   "socket.mode",
			Value:   c.Socket.Mode,
			Message: "must only contain permission bits (0000-0777)",
		})
	}

	return errors
}

// validateRelay validates the RelayConfig
func (c *Config) validateRelay() []ValidationError {
	var errors []ValidationError

	if c.Relay.QueueSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "relay.queue_size",
			Value:   c.Relay.QueueSize,
			Message: "must be at least 1",
		})
	}

	// A Unix datagram cannot exceed the socket buffer, which tops out well
	// below 16MB on every supported platform.
	const maxDatagram = 16 * 1024 * 1024
	if c.Relay.MaxDatagramSize < 1 || c.Relay.MaxDatagramSize > maxDatagram {
		errors = append(errors, ValidationError{
			Field:   "relay.max_datagram_size",
			Value:   c.Relay.MaxDatagramSize,
			Message: fmt.Sprintf("must be between 1 and %d", maxDatagram),
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.Format != "" && !slices.Contains(ValidLogFormats(), c.Logging.Format) {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Value:   c.Logging.Format,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogFormats(), ", ")),
		})
	}

	// Max size must be positive
	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	// Reasonable upper bound for log file size
	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	// Max backups must be non-negative
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateMetrics validates the MetricsConfig
func (c *Config) validateMetrics() []ValidationError {
	var errors []ValidationError

	if !c.Metrics.Enabled {
		return errors
	}
	if _, _, err := net.SplitHostPort(c.Metrics.ListenAddr); err != nil {
		errors = append(errors, ValidationError{
			Field:   "metrics.listen_addr",
			Value:   c.Metrics.ListenAddr,
			Message: "must be a host:port address",
		})
	}

	return errors
}

// validateWatch validates the WatchConfig
func (c *Config) validateWatch() []ValidationError {
	var errors []ValidationError

	if c.Watch.DebounceMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "watch.debounce_ms",
			Value:   c.Watch.DebounceMs,
			Message: "must be non-negative",
		})
	}

	const maxDebounceMs = 60000
	if c.Watch.DebounceMs > maxDebounceMs {
		errors = append(errors, ValidationError{
			Field:   "watch.debounce_ms",
			Value:   c.Watch.DebounceMs,
			Message: fmt.Sprintf("must be at most %d (1 minute)", maxDebounceMs),
		})
	}

	return errors
}

package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Log levels supported by the logger
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// Output formats supported by the logger
const (
	FormatJSON = "json"
	FormatText = "text"
	// FormatAuto selects text when the destination is a terminal, JSON otherwise.
	FormatAuto = "auto"
)

// Options controls how New builds a Logger.
type Options struct {
	// Level is one of the Level* constants (case-insensitive). Defaults to INFO.
	Level string
	// Format is one of the Format* constants. Defaults to JSON.
	Format string
	// File is the log file path. Empty means stderr.
	File string
	// Rotation applies when File is set.
	Rotation RotationConfig
}

// Logger provides structured logging with persistent attributes.
// It is safe for concurrent use.
type Logger struct {
	logger *slog.Logger
	out    *output
}

// output is the destination shared by a logger and all its children.
type output struct {
	mu     sync.Mutex
	closer io.Closer
}

// New creates a Logger from opts. When opts.File is set, logs go to a
// RotatingWriter at that path; otherwise they go to stderr.
func New(opts Options) (*Logger, error) {
	var (
		w      io.Writer = os.Stderr
		closer io.Closer
		isTTY  bool
	)

	if opts.File != "" {
		rw, err := NewRotatingWriter(opts.File, opts.Rotation)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w, closer = rw, rw
	} else {
		isTTY = term.IsTerminal(int(os.Stderr.Fd()))
	}

	return &Logger{
		logger: slog.New(newHandler(w, opts.Level, opts.Format, isTTY)),
		out:    &output{closer: closer},
	}, nil
}

// NewWriterLogger returns a Logger writing to w. It never closes w.
// Tests use it to capture output.
func NewWriterLogger(w io.Writer, level, format string) *Logger {
	return &Logger{
		logger: slog.New(newHandler(w, level, format, false)),
		out:    &output{},
	}
}

// NopLogger returns a Logger that discards all log output.
// Useful for testing or when logging is disabled.
func NopLogger() *Logger {
	return &Logger{
		logger: slog.New(slog.DiscardHandler),
		out:    &output{},
	}
}

func newHandler(w io.Writer, level, format string, isTTY bool) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	switch strings.ToLower(format) {
	case FormatText:
		return slog.NewTextHandler(w, opts)
	case FormatAuto:
		if isTTY {
			return slog.NewTextHandler(w, opts)
		}
	}
	return slog.NewJSONHandler(w, opts)
}

// parseLevel converts a string log level to slog.Level.
// Defaults to INFO if the level string is not recognized.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child Logger with arbitrary key-value attributes added to
// every entry. Keys and values are provided as alternating arguments.
func (l *Logger) With(args ...any) *Logger {
	if len(args) == 0 {
		return l
	}
	return &Logger{logger: l.logger.With(args...), out: l.out}
}

// WithComponent returns a child Logger tagged with the emitting component
// (e.g. "registry", "relay", "watch").
func (l *Logger) WithComponent(name string) *Logger {
	return l.With("component", name)
}

// WithSocket returns a child Logger tagged with a socket path.
func (l *Logger) WithSocket(path string) *Logger {
	return l.With("socket", path)
}

// Debug logs a message at DEBUG level with optional key-value pairs.
func (l *Logger) Debug(msg string, args ...any) {
	l.logger.Log(context.Background(), slog.LevelDebug, msg, args...)
}

// Info logs a message at INFO level with optional key-value pairs.
func (l *Logger) Info(msg string, args ...any) {
	l.logger.Log(context.Background(), slog.LevelInfo, msg, args...)
}

// Warn logs a message at WARN level with optional key-value pairs.
func (l *Logger) Warn(msg string, args ...any) {
	l.logger.Log(context.Background(), slog.LevelWarn, msg, args...)
}

// Error logs a message at ERROR level with optional key-value pairs.
func (l *Logger) Error(msg string, args ...any) {
	l.logger.Log(context.Background(), slog.LevelError, msg, args...)
}

// Slog exposes the underlying *slog.Logger for libraries that take one.
func (l *Logger) Slog() *slog.Logger {
	return l.logger
}

// Close flushes and closes the log file. Closing any child closes the
// shared destination. It is a no-op for stderr and writer loggers.
func (l *Logger) Close() error {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()

	if l.out.closer == nil {
		return nil
	}
	err := l.out.closer.Close()
	l.out.closer = nil
	if err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	return nil
}

// ParseLevel converts a string level to the corresponding constant.
// Returns LevelInfo if the level string is not recognized.
func ParseLevel(level string) string {
	switch strings.ToUpper(level) {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return strings.ToUpper(level)
	default:
		return LevelInfo
	}
}

// ValidLevels returns the list of valid log level strings.
func ValidLevels() []string {
	return []string{LevelDebug, LevelInfo, LevelWarn, LevelError}
}

// ValidFormats returns the list of valid output format strings.
func ValidFormats() []string {
	return []string{FormatJSON, FormatText, FormatAuto}
}

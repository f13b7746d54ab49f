package robosock

import (
	"os"

	"github.com/robolink/robosock/internal/event"
	"github.com/robolink/robosock/internal/logging"
)

// Option configures a Socket created by New.
type Option func(*options)

type options struct {
	logger        *logging.Logger
	bus           *event.Bus
	mode          os.FileMode
	requireSocket bool

	// remove deletes the socket file. Tests replace it to simulate
	// filesystem failures.
	remove func(string) error
}

func newOptions(opts []Option) options {
	o := options{
		logger: logging.NopLogger(),
		remove: os.Remove,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger for construction and release diagnostics.
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithBus sets the bus that receives socket lifecycle events.
func WithBus(bus *event.Bus) Option {
	return func(o *options) {
		o.bus = bus
	}
}

// WithMode changes the permission bits of the socket file after it is
// bound. Zero leaves the umask-derived mode alone.
func WithMode(mode os.FileMode) Option {
	return func(o *options) {
		o.mode = mode.Perm()
	}
}

// WithRequireSocketFile refuses to reclaim an occupied path unless the
// file there is a socket. Without it any orphaned file is deleted.
func WithRequireSocketFile() Option {
	return func(o *options) {
		o.requireSocket = true
	}
}

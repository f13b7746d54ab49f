package robosock

import (
	"slices"
	"sync"

	"github.com/robolink/robosock/internal/event"
	"github.com/robolink/robosock/internal/logging"
)

// Registry records the identity of every file currently owned by a live
// Socket. An identity is present exactly when a live Socket owns the file.
//
// Every operation runs inside one short critical section. A panic inside a
// critical section poisons the registry; from then on every operation
// returns ErrPoisoned.
type Registry struct {
	mu       sync.Mutex
	entries  map[Identity]string // identity -> path, for diagnostics
	poisoned bool

	// construction is held exclusively while a stale file is reclaimed and
	// shared by fresh binds and releases, so a reclaim never deletes a file
	// another goroutine is registering or releasing.
	construction sync.RWMutex

	logger *logging.Logger
	bus    *event.Bus
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger used for invariant violations.
func WithRegistryLogger(logger *logging.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger.WithComponent("registry")
	}
}

// WithRegistryBus sets the bus that receives registry.inconsistent events.
func WithRegistryBus(bus *event.Bus) RegistryOption {
	return func(r *Registry) {
		r.bus = bus
	}
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		entries: make(map[Identity]string),
		logger:  logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var processRegistry = sync.OnceValue(func() *Registry {
	return NewRegistry()
})

// Process returns the registry shared by the whole process. It is created
// on first use and never torn down.
func Process() *Registry {
	return processRegistry()
}

// critical runs fn with the registry mutex held. A panic in fn poisons the
// registry before it propagates.
func (r *Registry) critical(fn func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.poisoned {
		return ErrPoisoned
	}
	defer func() {
		if p := recover(); p != nil {
			r.poisoned = true
			panic(p)
		}
	}()
	fn()
	return nil
}

// Register records id as owned. It reports whether id was newly added; a
// false result means the file was already tracked, which should never
// happen and is logged as an inconsistency.
func (r *Registry) Register(id Identity, path string) (bool, error) {
	var added bool
	err := r.critical(func() {
		_, exists := r.entries[id]
		r.entries[id] = path
		added = !exists
	})
	if err != nil {
		return false, err
	}

	if !added {
		r.logger.Warn("socket identity was already registered",
			"path", path,
			"identity", id,
		)
		r.bus.Publish(event.NewRegistryInconsistentEvent(path, id.Dev, id.Ino, "register"))
	}
	return added, nil
}

// Contains reports whether id is owned by a live Socket in this process.
func (r *Registry) Contains(id Identity) (bool, error) {
	var found bool
	err := r.critical(func() {
		_, found = r.entries[id]
	})
	return found, err
}

// Remove forgets id. It reports whether id was present; removing an
// identity that is not tracked is an invariant violation and is logged.
// path is used for diagnostics only.
func (r *Registry) Remove(id Identity, path string) (bool, error) {
	var present bool
	err := r.critical(func() {
		_, present = r.entries[id]
		delete(r.entries, id)
	})
	if err != nil {
		return false, err
	}

	if !present {
		r.logger.Error("socket identity missing from the registry on release",
			"path", path,
			"identity", id,
		)
		r.bus.Publish(event.NewRegistryInconsistentEvent(path, id.Dev, id.Ino, "remove"))
	}
	return present, nil
}

// Len returns the number of live sockets.
func (r *Registry) Len() (int, error) {
	var n int
	err := r.critical(func() {
		n = len(r.entries)
	})
	return n, err
}

// Identities returns a sorted snapshot of the registered identities.
func (r *Registry) Identities() ([]Identity, error) {
	var ids []Identity
	err := r.critical(func() {
		ids = make([]Identity, 0, len(r.entries))
		for id := range r.entries {
			ids = append(ids, id)
		}
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(ids, compareIdentity)
	return ids, nil
}

// PathOf returns the path id was registered under.
func (r *Registry) PathOf(id Identity) (string, bool, error) {
	var (
		path string
		ok   bool
	)
	err := r.critical(func() {
		path, ok = r.entries[id]
	})
	return path, ok, err
}

// Poisoned reports whether a panic has poisoned the registry.
func (r *Registry) Poisoned() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.poisoned
}

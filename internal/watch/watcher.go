package watch

import (
	"errors"
	"io/fs"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/robolink/robosock/internal/event"
	"github.com/robolink/robosock/internal/logging"
	"github.com/robolink/robosock/internal/robosock"
)

// DefaultDebounce is how long the watcher waits for a burst of filesystem
// events to settle before checking the affected sockets.
const DefaultDebounce = 50 * time.Millisecond

// Watcher reports socket files that disappear while the socket that owns
// them is still live, typically because another process deleted them or
// reclaimed the path. It learns which sockets to watch from socket.bound
// and socket.released events on the bus.
type Watcher struct {
	watcher  *fsnotify.Watcher
	reg      *robosock.Registry
	bus      *event.Bus
	logger   *logging.Logger
	debounce time.Duration

	mu      sync.Mutex
	sockets map[string]robosock.Identity // absolute path -> identity at bind
	dirs    map[string]int               // watched directory -> socket count
	subs    []string

	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the watcher's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger.WithComponent("watch")
	}
}

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// New creates a Watcher that checks vanished files against reg and
// publishes to bus.
func New(reg *robosock.Registry, bus *event.Bus, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:  fw,
		reg:      reg,
		bus:      bus,
		logger:   logging.NopLogger(),
		debounce: DefaultDebounce,
		sockets:  make(map[string]robosock.Identity),
		dirs:     make(map[string]int),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start subscribes to socket lifecycle events and begins watching.
func (w *Watcher) Start() {
	w.mu.Lock()
	w.subs = append(w.subs,
		w.bus.Subscribe(event.TypeSocketBound, func(e event.Event) {
			bound := e.(event.SocketBoundEvent)
			if err := w.Track(bound.Path, robosock.Identity{Dev: bound.Dev, Ino: bound.Ino}); err != nil {
				w.logger.Warn("failed to watch socket", "socket", bound.Path, "error", err)
			}
		}),
		w.bus.Subscribe(event.TypeSocketReleased, func(e event.Event) {
			w.Untrack(e.(event.SocketReleasedEvent).Path)
		}),
	)
	w.mu.Unlock()

	go w.watchLoop()
}

// Stop unsubscribes from the bus and releases the underlying watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		for _, id := range w.subs {
			w.bus.Unsubscribe(id)
		}
		w.subs = nil
		w.mu.Unlock()

		close(w.stopCh)
		_ = w.watcher.Close()
	})
}

// Done is closed once the watch loop has exited after Stop.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// Track starts watching the socket file at path, expected to have identity id.
func (w *Watcher) Track(path string, id robosock.Identity) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.sockets[abs]; ok {
		w.sockets[abs] = id
		return nil
	}
	if w.dirs[dir] == 0 {
		if err := w.watcher.Add(dir); err != nil {
			return err
		}
	}
	w.dirs[dir]++
	w.sockets[abs] = id
	w.logger.Debug("watching socket", "socket", abs)
	return nil
}

// Untrack stops watching path. Unknown paths are ignored.
func (w *Watcher) Untrack(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.untrackLocked(abs)
}

func (w *Watcher) untrackLocked(abs string) {
	if _, ok := w.sockets[abs]; !ok {
		return
	}
	delete(w.sockets, abs)

	dir := filepath.Dir(abs)
	w.dirs[dir]--
	if w.dirs[dir] <= 0 {
		delete(w.dirs, dir)
		_ = w.watcher.Remove(dir)
	}
}

// Tracked returns the sorted absolute paths currently watched.
func (w *Watcher) Tracked() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	paths := make([]string, 0, len(w.sockets))
	for p := range w.sockets {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// watchLoop processes filesystem events
func (w *Watcher) watchLoop() {
	defer close(w.done)

	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C // drain initial timer

	pending := make(map[string]struct{})

	for {
		select {
		case <-w.stopCh:
			debounceTimer.Stop()
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename|fsnotify.Create) == 0 {
				continue
			}
			pending[filepath.Clean(ev.Name)] = struct{}{}
			debounceTimer.Reset(w.debounce)

		case <-debounceTimer.C:
			paths := pending
			pending = make(map[string]struct{})
			for path := range paths {
				w.check(path)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("filesystem watcher error", "error", err)
		}
	}
}

// check reports path as vanished if the file its socket was bound to is
// gone or replaced while the socket is still registered.
func (w *Watcher) check(path string) {
	w.mu.Lock()
	id, ok := w.sockets[path]
	w.mu.Unlock()
	if !ok {
		return
	}

	current, statErr := robosock.IdentityOf(path)
	switch {
	case statErr == nil && current == id:
		return
	case statErr != nil && !errors.Is(statErr, fs.ErrNotExist):
		w.logger.Debug("failed to stat watched socket", "socket", path, "error", statErr)
		return
	}

	live, err := w.reg.Contains(id)
	if err != nil {
		w.logger.Error("failed to check the socket registry", "socket", path, "error", err)
		return
	}
	if !live {
		// Released while the events were settling.
		return
	}

	w.mu.Lock()
	w.untrackLocked(path)
	w.mu.Unlock()

	if statErr == nil {
		w.logger.Warn("socket file was replaced while the socket is live", "socket", path)
	} else {
		w.logger.Warn("socket file vanished while the socket is live", "socket", path)
	}
	w.bus.Publish(event.NewSocketVanishedEvent(path))
}

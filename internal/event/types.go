package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "socket.bound", "relay.shutdown")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeSocketBound          = "socket.bound"
	TypeSocketAlreadyOpen    = "socket.already_open"
	TypeSocketReleased       = "socket.released"
	TypeSocketReleaseFailed  = "socket.release_failed"
	TypeSocketVanished       = "socket.vanished"
	TypeRegistryInconsistent = "registry.inconsistent"
	TypeDatagram             = "relay.datagram"
	TypeRelayShutdown        = "relay.shutdown"
)

// baseEvent provides common fields for all events.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// ReleaseMode tells which release path removed a socket.
type ReleaseMode string

const (
	// ReleaseCooperative is an explicit Unlink by the owner.
	ReleaseCooperative ReleaseMode = "cooperative"
	// ReleaseForced is Close or garbage collection of an unreleased handle.
	ReleaseForced ReleaseMode = "forced"
)

// -----------------------------------------------------------------------------
// Socket Lifecycle Events
// -----------------------------------------------------------------------------

// SocketBoundEvent is emitted once a managed socket is bound and registered.
type SocketBoundEvent struct {
	baseEvent
	Path      string
	Dev       uint64
	Ino       uint64
	Reclaimed bool // A stale file was removed before binding
}

// NewSocketBoundEvent creates a SocketBoundEvent.
func NewSocketBoundEvent(path string, dev, ino uint64, reclaimed bool) SocketBoundEvent {
	return SocketBoundEvent{
		baseEvent: newBaseEvent(TypeSocketBound),
		Path:      path,
		Dev:       dev,
		Ino:       ino,
		Reclaimed: reclaimed,
	}
}

// SocketAlreadyOpenEvent is emitted when construction is refused because a
// live handle in this process owns the file.
type SocketAlreadyOpenEvent struct {
	baseEvent
	Path string
}

// NewSocketAlreadyOpenEvent creates a SocketAlreadyOpenEvent.
func NewSocketAlreadyOpenEvent(path string) SocketAlreadyOpenEvent {
	return SocketAlreadyOpenEvent{
		baseEvent: newBaseEvent(TypeSocketAlreadyOpen),
		Path:      path,
	}
}

// SocketReleasedEvent is emitted when a handle has been destroyed.
type SocketReleasedEvent struct {
	baseEvent
	Path string
	Dev  uint64
	Ino  uint64
	Mode ReleaseMode
}

// NewSocketReleasedEvent creates a SocketReleasedEvent.
func NewSocketReleasedEvent(path string, dev, ino uint64, mode ReleaseMode) SocketReleasedEvent {
	return SocketReleasedEvent{
		baseEvent: newBaseEvent(TypeSocketReleased),
		Path:      path,
		Dev:       dev,
		Ino:       ino,
		Mode:      mode,
	}
}

// SocketReleaseFailedEvent is emitted when removing a socket file failed.
type SocketReleaseFailedEvent struct {
	baseEvent
	Path  string
	Mode  ReleaseMode
	Error string
}

// NewSocketReleaseFailedEvent creates a SocketReleaseFailedEvent.
func NewSocketReleaseFailedEvent(path string, mode ReleaseMode, err error) SocketReleaseFailedEvent {
	return SocketReleaseFailedEvent{
		baseEvent: newBaseEvent(TypeSocketReleaseFailed),
		Path:      path,
		Mode:      mode,
		Error:     err.Error(),
	}
}

// SocketVanishedEvent is emitted when a live socket's file disappears from
// disk without the owner releasing it.
type SocketVanishedEvent struct {
	baseEvent
	Path string
}

// NewSocketVanishedEvent creates a SocketVanishedEvent.
func NewSocketVanishedEvent(path string) SocketVanishedEvent {
	return SocketVanishedEvent{
		baseEvent: newBaseEvent(TypeSocketVanished),
		Path:      path,
	}
}

// RegistryInconsistentEvent is emitted when the registry disagrees with the
// handles it tracks: an identity registered twice, or removed while absent.
type RegistryInconsistentEvent struct {
	baseEvent
	Path string
	Dev  uint64
	Ino  uint64
	Op   string // "register" or "remove"
}

// NewRegistryInconsistentEvent creates a RegistryInconsistentEvent.
func NewRegistryInconsistentEvent(path string, dev, ino uint64, op string) RegistryInconsistentEvent {
	return RegistryInconsistentEvent{
		baseEvent: newBaseEvent(TypeRegistryInconsistent),
		Path:      path,
		Dev:       dev,
		Ino:       ino,
		Op:        op,
	}
}

// -----------------------------------------------------------------------------
// Relay Events
// -----------------------------------------------------------------------------

// DatagramEvent is emitted for every datagram the relay receives.
type DatagramEvent struct {
	baseEvent
	Path   string // Managed socket that received it
	Sender string // Sender address, empty for unbound senders
	Size   int
}

// NewDatagramEvent creates a DatagramEvent.
func NewDatagramEvent(path, sender string, size int) DatagramEvent {
	return DatagramEvent{
		baseEvent: newBaseEvent(TypeDatagram),
		Path:      path,
		Sender:    sender,
		Size:      size,
	}
}

// RelayShutdownEvent is emitted after a relay has drained its queue.
type RelayShutdownEvent struct {
	baseEvent
	Path      string
	Delivered int
	Failed    int
}

// NewRelayShutdownEvent creates a RelayShutdownEvent.
func NewRelayShutdownEvent(path string, delivered, failed int) RelayShutdownEvent {
	return RelayShutdownEvent{
		baseEvent: newBaseEvent(TypeRelayShutdown),
		Path:      path,
		Delivered: delivered,
		Failed:    failed,
	}
}

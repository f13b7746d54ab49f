// Package event provides a synchronous pub-sub bus that carries socket
// lifecycle notifications between robosock components.
//
// The managed-socket core publishes to the bus and never reads from it;
// the watcher, the metrics collector and the relay subscribe. This keeps
// the core free of dependencies on its observers.
//
// # Event Types
//
//   - [SocketBoundEvent] ("socket.bound"): a handle was created, possibly after
//     reclaiming a stale file
//   - [SocketAlreadyOpenEvent] ("socket.already_open"): construction refused
//   - [SocketReleasedEvent] ("socket.released"): a handle was destroyed
//   - [SocketReleaseFailedEvent] ("socket.release_failed"): unlinking failed
//   - [SocketVanishedEvent] ("socket.vanished"): the file disappeared underneath
//     a live handle
//   - [RegistryInconsistentEvent] ("registry.inconsistent"): double register or
//     missing entry on release
//   - [DatagramEvent] ("relay.datagram") and [RelayShutdownEvent] ("relay.shutdown")
//
// # Thread Safety
//
// [Bus] is safe for concurrent use. Handlers run synchronously on the
// publisher's goroutine, outside the bus lock, so they may publish or
// subscribe themselves. Publishers in robosock never hold their own locks
// while publishing.
package event

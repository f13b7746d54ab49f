package robosock

import (
	"context"
	"errors"
	"net"
	"runtime"
	"sync"
	"time"

	"github.com/robolink/robosock/internal/event"
	"github.com/robolink/robosock/internal/logging"
)

// releaseState only moves forward.
type releaseState int

const (
	stateLive      releaseState = iota
	stateUnlinking              // cooperative file removal in flight
	stateUnlinked               // file removed, teardown pending
	stateClosed
)

func (s releaseState) String() string {
	switch s {
	case stateLive:
		return "live"
	case stateUnlinking:
		return "unlinking"
	case stateUnlinked:
		return "unlinked"
	default:
		return "closed"
	}
}

// Socket is a bound Unix datagram socket that owns its file. At most one
// live Socket per file exists in a process. The file is removed when the
// Socket is released with Unlink or Close, or, failing both, when the
// Socket is garbage collected.
type Socket struct {
	h       *handle
	cleanup runtime.Cleanup
}

// handle holds everything release needs. It never points back at its
// Socket, so the Socket can become unreachable while the cleanup still has
// what it needs.
type handle struct {
	conn   *net.UnixConn
	path   string
	id     Identity
	reg    *Registry
	logger *logging.Logger
	bus    *event.Bus
	remove func(string) error

	mu      sync.Mutex
	state   releaseState
	pending chan struct{} // closed when an in-flight Unlink removal finishes
}

func newSocket(h *handle) *Socket {
	s := &Socket{h: h}
	s.cleanup = runtime.AddCleanup(s, func(h *handle) {
		h.logger.Warn("socket was garbage collected without being released")
		h.forceRelease()
	}, h)
	return s
}

// Path returns the path the socket was created with.
func (s *Socket) Path() string { return s.h.path }

// Identity returns the identity of the socket file at bind time.
func (s *Socket) Identity() Identity { return s.h.id }

// LocalAddr returns the bound address.
func (s *Socket) LocalAddr() net.Addr { return s.h.conn.LocalAddr() }

// Conn exposes the underlying connection. Closing it directly does not
// release the socket file; use Unlink or Close.
func (s *Socket) Conn() *net.UnixConn { return s.h.conn }

// Released reports whether Unlink or Close has completed.
func (s *Socket) Released() bool {
	s.h.mu.Lock()
	defer s.h.mu.Unlock()
	return s.h.state == stateClosed
}

func (s *Socket) String() string {
	s.h.mu.Lock()
	defer s.h.mu.Unlock()
	return "robosock(" + s.h.path + ", " + s.h.state.String() + ")"
}

// SendTo writes one datagram to the socket bound at addr.
func (s *Socket) SendTo(payload []byte, addr string) (int, error) {
	return s.h.conn.WriteToUnix(payload, &net.UnixAddr{Name: addr, Net: "unixgram"})
}

// RecvFrom reads one datagram into buf and returns its size and sender.
// The sender is nil for unbound peers. Cancelling ctx unblocks the read;
// concurrent RecvFrom calls share one read deadline, so cancelling one
// unblocks them all.
func (s *Socket) RecvFrom(ctx context.Context, buf []byte) (int, *net.UnixAddr, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}

	conn := s.h.conn
	if ctx.Done() != nil {
		fired := make(chan struct{})
		stop := context.AfterFunc(ctx, func() {
			_ = conn.SetReadDeadline(time.Unix(1, 0))
			close(fired)
		})
		defer func() {
			if !stop() {
				<-fired
				_ = conn.SetReadDeadline(time.Time{})
			}
		}()
	}

	n, from, err := conn.ReadFromUnix(buf)
	if err != nil && ctx.Err() != nil && !errors.Is(err, net.ErrClosed) {
		return n, from, ctx.Err()
	}
	return n, from, err
}

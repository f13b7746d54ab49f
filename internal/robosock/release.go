package robosock

import (
	"context"
	"errors"
	"net"

	"github.com/robolink/robosock/internal/event"
)

// Unlink removes the socket file and then releases the socket. On failure
// the returned *UnlinkError carries the still-owned Socket, which stays
// usable and can be retried or closed.
//
// If ctx is cancelled while the removal is in flight, Unlink returns an
// *UnlinkError wrapping ctx.Err(). The removal keeps running, and a later
// Unlink or Close waits for it before deciding whether the file still
// needs deleting.
func (s *Socket) Unlink(ctx context.Context) error {
	h := s.h
	for {
		h.mu.Lock()
		switch h.state {
		case stateLive:
			if err := ctx.Err(); err != nil {
				h.mu.Unlock()
				return &UnlinkError{Socket: s, Err: err}
			}
			done := make(chan struct{})
			result := make(chan error, 1)
			h.state = stateUnlinking
			h.pending = done
			h.mu.Unlock()

			go h.removeFile(done, result)

			select {
			case err := <-result:
				if err != nil {
					h.logger.Warn("couldn't unlink socket", "error", err)
					h.bus.Publish(event.NewSocketReleaseFailedEvent(h.path, event.ReleaseCooperative, err))
					return &UnlinkError{Socket: s, Err: &IOError{Path: h.path, Stage: StageUnlink, Err: err}}
				}
				s.finishUnlink()
				return nil
			case <-ctx.Done():
				return &UnlinkError{Socket: s, Err: ctx.Err()}
			}

		case stateUnlinking:
			pending := h.pending
			h.mu.Unlock()
			select {
			case <-pending:
			case <-ctx.Done():
				return &UnlinkError{Socket: s, Err: ctx.Err()}
			}

		case stateUnlinked:
			// An earlier, cancelled Unlink removed the file.
			h.mu.Unlock()
			s.finishUnlink()
			return nil

		default:
			h.mu.Unlock()
			return ErrReleased
		}
	}
}

func (s *Socket) finishUnlink() {
	s.cleanup.Stop()
	h := s.h

	ok, _ := h.beginClose()
	if !ok {
		return
	}
	h.reg.construction.RLock()
	h.deregister()
	h.reg.construction.RUnlock()
	h.closeConn()

	h.logger.Debug("socket released", "mode", event.ReleaseCooperative)
	h.bus.Publish(event.NewSocketReleasedEvent(h.path, h.id.Dev, h.id.Ino, event.ReleaseCooperative))
}

// Close releases the socket without reporting failure: the identity is
// removed from the registry, then the file is deleted unless Unlink already
// did so. Problems are logged. Close is idempotent and always returns nil.
func (s *Socket) Close() error {
	s.cleanup.Stop()
	s.h.forceRelease()
	return nil
}

// removeFile runs one cooperative removal and records its outcome.
func (h *handle) removeFile(done chan struct{}, result chan<- error) {
	h.reg.construction.RLock()
	err := h.remove(h.path)
	h.reg.construction.RUnlock()

	h.mu.Lock()
	if err == nil {
		h.state = stateUnlinked
	} else {
		h.state = stateLive
	}
	h.pending = nil
	h.mu.Unlock()

	close(done)
	result <- err
}

// beginClose waits out any in-flight removal and moves the handle to
// stateClosed. It reports whether this call made the transition and
// whether the file had already been removed.
func (h *handle) beginClose() (closed, fileRemoved bool) {
	for {
		h.mu.Lock()
		state, pending := h.state, h.pending
		switch state {
		case stateUnlinking:
			h.mu.Unlock()
			<-pending
			continue
		case stateClosed:
			h.mu.Unlock()
			return false, false
		}
		h.state = stateClosed
		h.mu.Unlock()
		return true, state == stateUnlinked
	}
}

func (h *handle) forceRelease() {
	ok, fileRemoved := h.beginClose()
	if !ok {
		return
	}

	var removeErr error
	h.reg.construction.RLock()
	h.deregister()
	if !fileRemoved {
		removeErr = h.remove(h.path)
	}
	h.reg.construction.RUnlock()

	if removeErr != nil {
		h.logger.Error("couldn't unlink socket", "error", removeErr)
		h.bus.Publish(event.NewSocketReleaseFailedEvent(h.path, event.ReleaseForced, removeErr))
	}
	h.closeConn()

	h.logger.Debug("socket released", "mode", event.ReleaseForced)
	h.bus.Publish(event.NewSocketReleasedEvent(h.path, h.id.Dev, h.id.Ino, event.ReleaseForced))
}

func (h *handle) deregister() {
	if _, err := h.reg.Remove(h.id, h.path); err != nil {
		h.logger.Error("failed to remove socket from the registry", "error", err)
	}
}

func (h *handle) closeConn() {
	if err := h.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		h.logger.Warn("failed to close socket", "error", err)
	}
}

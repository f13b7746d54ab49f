package robosock

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"os"

	"github.com/robolink/robosock/internal/event"
	"github.com/robolink/robosock/internal/logging"
)

// New binds a Unix datagram socket at path and registers it in reg.
//
// If the path is occupied, the file there is inspected. When a live Socket
// in this process owns it, New returns ErrAlreadyOpen and leaves the file
// alone. Otherwise the file is assumed to be left over from a crashed run:
// it is deleted and the bind is retried once.
//
// Another process bound to the same path is indistinguishable from a stale
// file and will have its file deleted out from under it.
func New(ctx context.Context, reg *Registry, path string, opts ...Option) (*Socket, error) {
	o := newOptions(opts)
	logger := o.logger.WithComponent("robosock").WithSocket(path)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(path) >= maxPathLen {
		return nil, &IOError{Path: path, Stage: StageBind, Err: ErrPathTooLong}
	}

	s, reclaimed, err := bind(ctx, reg, path, o, logger)
	if err != nil {
		if errors.Is(err, ErrAlreadyOpen) {
			logger.Debug("socket already open in this process")
			o.bus.Publish(event.NewSocketAlreadyOpenEvent(path))
		}
		return nil, err
	}

	logger.Debug("socket bound", "identity", s.h.id, "reclaimed", reclaimed)
	o.bus.Publish(event.NewSocketBoundEvent(path, s.h.id.Dev, s.h.id.Ino, reclaimed))
	return s, nil
}

func bind(ctx context.Context, reg *Registry, path string, o options, logger *logging.Logger) (*Socket, bool, error) {
	reg.construction.RLock()
	conn, err := listen(path)
	if err == nil {
		s, err := adopt(reg, conn, path, o, logger)
		reg.construction.RUnlock()
		return s, false, err
	}
	reg.construction.RUnlock()

	if !isAddrInUse(err) {
		return nil, false, &IOError{Path: path, Stage: StageBind, Err: err}
	}
	return reclaim(ctx, reg, path, o, logger)
}

// reclaim handles an occupied path. It holds the construction lock
// exclusively, so no other goroutine can register or release a socket
// while the occupant is judged and deleted.
func reclaim(ctx context.Context, reg *Registry, path string, o options, logger *logging.Logger) (*Socket, bool, error) {
	reg.construction.Lock()
	defer reg.construction.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	reclaimed := false
	id, isSocket, err := statSocket(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Debug("occupant vanished before it could be inspected, binding again")
	case err != nil:
		return nil, false, &IOError{Path: path, Stage: StageStat, Err: err}
	default:
		owned, err := reg.Contains(id)
		if err != nil {
			return nil, false, err
		}
		if owned {
			return nil, false, ErrAlreadyOpen
		}
		if o.requireSocket && !isSocket {
			return nil, false, &IOError{Path: path, Stage: StageStat, Err: ErrNotSocket}
		}

		logger.Info("removing socket file left behind by a previous run", "identity", id)
		if err := o.remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, false, &IOError{Path: path, Stage: StageUnlinkStale, Err: err}
		}
		reclaimed = true
	}

	conn, err := listen(path)
	if err != nil {
		return nil, false, &IOError{Path: path, Stage: StageBind, Err: err}
	}
	s, err := adopt(reg, conn, path, o, logger)
	return s, reclaimed, err
}

func listen(path string) (*net.UnixConn, error) {
	// Closing a datagram conn never removes its file; release does that.
	return net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
}

// adopt registers a freshly bound conn and wraps it in a Socket. It must
// be called with the construction lock held. On failure the conn is
// closed and its file removed so nothing unowned is left on disk.
func adopt(reg *Registry, conn *net.UnixConn, path string, o options, logger *logging.Logger) (*Socket, error) {
	id, _, err := statSocket(path)
	if err != nil {
		discard(conn, path, o, logger)
		return nil, &IOError{Path: path, Stage: StageStat, Err: err}
	}

	if o.mode != 0 {
		if err := os.Chmod(path, o.mode); err != nil {
			discard(conn, path, o, logger)
			return nil, &IOError{Path: path, Stage: StageChmod, Err: err}
		}
	}

	if _, err := reg.Register(id, path); err != nil {
		discard(conn, path, o, logger)
		return nil, err
	}

	return newSocket(&handle{
		conn:   conn,
		path:   path,
		id:     id,
		reg:    reg,
		logger: logger,
		bus:    o.bus,
		remove: o.remove,
	}), nil
}

func discard(conn *net.UnixConn, path string, o options, logger *logging.Logger) {
	if err := conn.Close(); err != nil {
		logger.Warn("failed to close socket", "error", err)
	}
	if err := o.remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Error("failed to remove socket file after aborted construction", "error", err)
	}
}

package robosock

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by socket construction and release.
var (
	// ErrAlreadyOpen is returned by New when a live Socket in this process
	// owns the file at the requested path. It is an expected outcome for
	// callers probing ownership, not an anomaly.
	ErrAlreadyOpen = errors.New("a socket at this path is already open in this process")

	// ErrPoisoned is returned by every Registry operation after a panic
	// inside one of its critical sections. In-process duplicate detection
	// can no longer be trusted once this is seen.
	ErrPoisoned = errors.New("the socket registry lock has been poisoned")

	// ErrReleased is returned when Unlink is called on a socket that has
	// already been released.
	ErrReleased = errors.New("socket already released")

	// ErrPathTooLong is wrapped in an IOError when the path does not fit
	// in a sockaddr_un.
	ErrPathTooLong = errors.New("socket path too long")

	// ErrNotSocket is wrapped in an IOError when WithRequireSocketFile is
	// set and the file occupying the path is not a socket.
	ErrNotSocket = errors.New("file occupying the path is not a socket")
)

// Stage labels which step of construction or release failed.
type Stage string

const (
	StageBind        Stage = "failed to bind socket"
	StageStat        Stage = "failed to stat socket"
	StageUnlinkStale Stage = "couldn't unlink previous socket"
	StageChmod       Stage = "failed to set socket permissions"
	StageUnlink      Stage = "couldn't unlink socket"
)

// IOError is a filesystem or socket failure tagged with the stage it
// happened in.
type IOError struct {
	Path  string
	Stage Stage
	Err   error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s at %s: %v", e.Stage, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// UnlinkError is returned by a failed Unlink. It hands the still-owned
// Socket back so the caller can retry or fall back to Close instead of
// leaking the file.
type UnlinkError struct {
	Socket *Socket
	Err    error
}

func (e *UnlinkError) Error() string {
	return fmt.Sprintf("couldn't unlink socket at %s: %v", e.Socket.Path(), e.Err)
}

func (e *UnlinkError) Unwrap() error { return e.Err }

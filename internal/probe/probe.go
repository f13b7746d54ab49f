// Package probe classifies what occupies a socket path without disturbing it.
package probe

import (
	"errors"
	"io/fs"
	"os"

	"github.com/robolink/robosock/internal/robosock"
)

// State is the classification of a path.
type State string

const (
	// StateAbsent means nothing exists at the path.
	StateAbsent State = "absent"
	// StateNotSocket means a file that is not a socket occupies the path.
	StateNotSocket State = "not-socket"
	// StateLive means a socket file with a bound peer; datagrams sent there
	// are received by someone.
	StateLive State = "live"
	// StateStale means a socket file nobody is bound to, typically left by
	// a crashed process. robosock.New reclaims such files.
	StateStale State = "stale"
	// StateUnknown means the socket could not be probed on this platform.
	StateUnknown State = "unknown"
)

// Report describes one probed path.
type Report struct {
	Path     string
	State    State
	Mode     fs.FileMode
	Identity robosock.Identity
	// Detail carries the error that decided the state, if any.
	Detail string
}

// Inspect stats path and, for socket files, attempts a datagram connect to
// tell a live socket from a stale one. The error is non-nil only when the
// path could not be examined at all.
func Inspect(path string) (Report, error) {
	r := Report{Path: path}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.State = StateAbsent
			return r, nil
		}
		return r, err
	}
	r.Mode = info.Mode()
	if id, err := robosock.IdentityOf(path); err == nil {
		r.Identity = id
	}

	if info.Mode()&fs.ModeSocket == 0 {
		r.State = StateNotSocket
		return r, nil
	}

	r.State, r.Detail = dial(path)
	return r, nil
}

// InspectAll inspects every path, recording failures in the report detail.
func InspectAll(paths []string) []Report {
	reports := make([]Report, 0, len(paths))
	for _, p := range paths {
		r, err := Inspect(p)
		if err != nil {
			r.State = StateUnknown
			r.Detail = err.Error()
		}
		reports = append(reports, r)
	}
	return reports
}

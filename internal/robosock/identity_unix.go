//go:build unix

package robosock

import (
	"errors"
	"io/fs"

	"golang.org/x/sys/unix"
)

// maxPathLen is the size of sockaddr_un.sun_path on this platform.
var maxPathLen = len(unix.RawSockaddrUnix{}.Path)

// statSocket returns the identity of the file at path and whether it is a
// socket.
func statSocket(path string) (Identity, bool, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return Identity{}, false, &fs.PathError{Op: "stat", Path: path, Err: err}
	}
	id := Identity{Dev: uint64(st.Dev), Ino: uint64(st.Ino)}
	return id, uint32(st.Mode)&unix.S_IFMT == unix.S_IFSOCK, nil
}

func isAddrInUse(err error) bool {
	return errors.Is(err, unix.EADDRINUSE)
}

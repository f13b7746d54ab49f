//go:build !unix

package robosock

import (
	"errors"
	"io/fs"
)

var maxPathLen = 108

func statSocket(path string) (Identity, bool, error) {
	return Identity{}, false, &fs.PathError{Op: "stat", Path: path, Err: errors.ErrUnsupported}
}

func isAddrInUse(error) bool { return false }

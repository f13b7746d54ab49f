package robosock

import (
	"cmp"
	"fmt"
	"log/slog"
)

// Identity names a file by device and inode number, so that different
// spellings of a path that reach the same file compare equal. It is only
// meaningful on filesystems with stable, locally unique inode numbers.
type Identity struct {
	Dev uint64
	Ino uint64
}

func (id Identity) String() string {
	return fmt.Sprintf("%d:%d", id.Dev, id.Ino)
}

// LogValue implements slog.LogValuer.
func (id Identity) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("dev", id.Dev),
		slog.Uint64("ino", id.Ino),
	)
}

func compareIdentity(a, b Identity) int {
	if c := cmp.Compare(a.Dev, b.Dev); c != 0 {
		return c
	}
	return cmp.Compare(a.Ino, b.Ino)
}

// IdentityOf stats path, following symlinks, and returns its Identity.
func IdentityOf(path string) (Identity, error) {
	id, _, err := statSocket(path)
	return id, err
}

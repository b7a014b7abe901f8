//go:build unix

package stability

import (
	"os"

	"golang.org/x/sys/unix"
)

// tryShared takes a non-blocking shared advisory lock. Writers that hold an
// exclusive flock while capturing make this fail until they finish.
func tryShared(f *os.File) (func(), error) {
	fd := int(f.Fd())
	if err := unix.Flock(fd, unix.LOCK_SH|unix.LOCK_NB); err != nil {
		return nil, err
	}
	return func() { _ = unix.Flock(fd, unix.LOCK_UN) }, nil
}

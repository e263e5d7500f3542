//go:build linux

package copier

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	g_error "github.com/phil-mansfield/gadget-subsample/lib/error"
)

// Reserve allocates size bytes of disk space for f, so that running out of
// space or quota is noticed before anything is written. File systems which
// can't preallocate fall back to extending the file.
func Reserve(f *os.File, size int64) error {
	if size == 0 {
		return nil
	}

	for {
		err := unix.Fallocate(int(f.Fd()), 0, 0, size)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EOPNOTSUPP), errors.Is(err, unix.ENOSYS):
			return truncate(f, size)
		}
		return fmt.Errorf("%w: could not reserve %d bytes for %s: %s",
			g_error.ErrStorageExhausted, size, f.Name(), err.Error())
	}
}

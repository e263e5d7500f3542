//go:build !linux

package copier

import (
	"os"
)

// Reserve sets the size of f to size bytes. Disk space isn't preallocated
// on this platform.
func Reserve(f *os.File, size int64) error {
	if size == 0 {
		return nil
	}
	return truncate(f, size)
}

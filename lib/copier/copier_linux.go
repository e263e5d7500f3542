//go:build linux

package copier

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	g_error "github.com/phil-mansfield/gadget-subsample/lib/error"
)

const (
	// maxIovecs is the number of regions passed to a single writev call.
	maxIovecs = 1024
	// maxSendfile is the largest transfer Linux performs in one sendfile
	// call.
	maxSendfile = 0x7ffff000
)

func newPlatform(kind string, src *os.File) (Strategy, error) {
	switch kind {
	case Mmap:
		data, err := mapFile(src)
		if err != nil {
			return nil, err
		}
		return &mmapStrategy{data, make([]byte, bufSize)}, nil
	case Writev:
		data, err := mapFile(src)
		if err != nil {
			return nil, err
		}
		return &writevStrategy{data, make([][]byte, 0, maxIovecs)}, nil
	case Sendfile:
		return &sendfileStrategy{src}, nil
	}
	return nil, unknownStrategy(kind)
}

// mapFile maps the entirety of src into memory as read-only.
func mapFile(src *os.File) ([]byte, error) {
	info, err := src.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: could not stat %s: %s",
			g_error.ErrShortRead, src.Name(), err.Error())
	}
	if info.Size() == 0 {
		return nil, nil
	}

	data, err := unix.Mmap(int(src.Fd()), 0, int(info.Size()),
		unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("%w: could not map %s into memory: %s",
			g_error.ErrShortRead, src.Name(), err.Error())
	}
	return data, nil
}

func unmap(data []byte) error {
	if data == nil {
		return nil
	}
	return unix.Munmap(data)
}

// mmapStrategy copies records out of a memory-mapped source.
type mmapStrategy struct {
	data, buf []byte
}

func (s *mmapStrategy) Copy(
	dst *os.File, base, itemSize int64, indices []int,
) (int64, error) {
	return CopyRecords(bytes.NewReader(s.data), dst, base, itemSize,
		indices, s.buf)
}

func (s *mmapStrategy) Close() error {
	data := s.data
	s.data = nil
	return unmap(data)
}

// writevStrategy hands regions of a memory-mapped source directly to writev,
// one region per run of consecutive indices.
type writevStrategy struct {
	data []byte
	iovs [][]byte
}

func (s *writevStrategy) Copy(
	dst *os.File, base, itemSize int64, indices []int,
) (int64, error) {
	fd := int(dst.Fd())
	written := int64(0)
	s.iovs = s.iovs[:0]

	err := forEachRun(indices, func(first, n int64) error {
		start, end := base+first*itemSize, base+(first+n)*itemSize
		if start < 0 || end > int64(len(s.data)) {
			return fmt.Errorf("%w: records [%d, %d) run past the end of "+
				"the %d-byte source.", g_error.ErrShortRead, start, end,
				len(s.data))
		}
		s.iovs = append(s.iovs, s.data[start:end])

		if len(s.iovs) == maxIovecs {
			m, err := writevAll(fd, s.iovs)
			written += m
			s.iovs = s.iovs[:0]
			return err
		}
		return nil
	})
	if err != nil {
		return written, err
	}

	m, err := writevAll(fd, s.iovs)
	written += m
	s.iovs = s.iovs[:0]
	return written, err
}

func (s *writevStrategy) Close() error {
	data := s.data
	s.data = nil
	return unmap(data)
}

// writevAll writes every byte of iovs to fd, resuming after partial writes.
// iovs is consumed.
func writevAll(fd int, iovs [][]byte) (int64, error) {
	written := int64(0)
	for len(iovs) > 0 {
		m, err := unix.Writev(fd, iovs)
		if errors.Is(err, unix.EINTR) {
			continue
		} else if err != nil {
			return written, fmt.Errorf("%w: writev failed after %d bytes: %s",
				g_error.ErrShortWrite, written, err.Error())
		} else if m == 0 {
			return written, fmt.Errorf("%w: writev made no progress after "+
				"%d bytes.", g_error.ErrShortWrite, written)
		}
		written += int64(m)

		for m > 0 {
			if m >= len(iovs[0]) {
				m -= len(iovs[0])
				iovs = iovs[1:]
			} else {
				iovs[0] = iovs[0][m:]
				m = 0
			}
		}
		for len(iovs) > 0 && len(iovs[0]) == 0 {
			iovs = iovs[1:]
		}
	}
	return written, nil
}

// sendfileStrategy lets the kernel move each run of records from the source
// to the destination without passing through user space.
type sendfileStrategy struct {
	src *os.File
}

func (s *sendfileStrategy) Copy(
	dst *os.File, base, itemSize int64, indices []int,
) (int64, error) {
	outFd, inFd := int(dst.Fd()), int(s.src.Fd())
	written := int64(0)

	err := forEachRun(indices, func(first, n int64) error {
		off, remaining := base+first*itemSize, n*itemSize
		for remaining > 0 {
			count := remaining
			if count > maxSendfile {
				count = maxSendfile
			}
			m, err := unix.Sendfile(outFd, inFd, &off, int(count))
			if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
				continue
			} else if err != nil {
				return fmt.Errorf("%w: sendfile failed at source offset "+
					"%d: %s", g_error.ErrShortWrite, off, err.Error())
			} else if m == 0 {
				return fmt.Errorf("%w: the source ended at offset %d with "+
					"%d bytes left to copy.", g_error.ErrShortRead, off,
					remaining)
			}
			written += int64(m)
			remaining -= int64(m)
		}
		return nil
	})
	return written, err
}

func (s *sendfileStrategy) Close() error { return nil }

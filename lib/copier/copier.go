/*package copier copies fixed-size records out of a source file and appends
them to a destination file. Several interchangeable strategies are provided.
They differ only in which system calls they use: every strategy reads the
same bytes and leaves the destination in the same state.
*/
package copier

import (
	"fmt"
	"io"
	"os"

	g_error "github.com/phil-mansfield/gadget-subsample/lib/error"
)

// Strategy names accepted by New.
const (
	Buffered = "buffered"
	Mmap     = "mmap"
	Writev   = "writev"
	Sendfile = "sendfile"
)

// Strategies lists every name accepted by New. Not every strategy is
// available on every platform.
var Strategies = []string{Buffered, Mmap, Writev, Sendfile}

// bufSize is the size of the intermediate buffer used by buffered copies.
const bufSize = 1 << 20

// Strategy copies records from a single source file.
type Strategy interface {
	// Copy appends the itemSize-byte records which begin at
	// base + i*itemSize for each i in indices to dst's current position,
	// in the order given by indices. It returns the number of bytes written,
	// which is itemSize*len(indices) on success.
	Copy(dst *os.File, base, itemSize int64, indices []int) (int64, error)
	// Close releases any resources associated with the source file. It
	// doesn't close the source file itself.
	Close() error
}

// New creates a Strategy of the given kind which reads from src.
func New(kind string, src *os.File) (Strategy, error) {
	if kind == Buffered {
		return &bufferedStrategy{src: src, buf: make([]byte, bufSize)}, nil
	}
	return newPlatform(kind, src)
}

func unknownStrategy(kind string) error {
	return fmt.Errorf("%w: '%s' is not a recognized copy strategy. Valid "+
		"strategies are %v.", g_error.ErrInvalidConfig, kind, Strategies)
}

type bufferedStrategy struct {
	src *os.File
	buf []byte
}

func (s *bufferedStrategy) Copy(
	dst *os.File, base, itemSize int64, indices []int,
) (int64, error) {
	return CopyRecords(s.src, dst, base, itemSize, indices, s.buf)
}

func (s *bufferedStrategy) Close() error { return nil }

// CopyRecords performs the copy described by Strategy.Copy with plain reads
// and writes, using buf as intermediate storage. buf must be able to hold at
// least one record. Runs of consecutive indices are read together.
func CopyRecords(
	src io.ReaderAt, dst io.Writer, base, itemSize int64,
	indices []int, buf []byte,
) (int64, error) {
	if itemSize <= 0 || int64(len(buf)) < itemSize {
		panic(fmt.Sprintf("Internal error: cannot copy %d-byte records "+
			"through a %d-byte buffer.", itemSize, len(buf)))
	}
	perBuf := int64(len(buf)) / itemSize

	// Records are gathered in buf and flushed when it fills.
	written, nBuf := int64(0), int64(0)
	flush := func() error {
		if nBuf == 0 {
			return nil
		}
		m, err := dst.Write(buf[:nBuf])
		written += int64(m)
		if err != nil {
			return fmt.Errorf("%w: wrote %d of %d bytes: %s",
				g_error.ErrShortWrite, m, nBuf, err.Error())
		} else if int64(m) != nBuf {
			return fmt.Errorf("%w: wrote %d of %d bytes.",
				g_error.ErrShortWrite, m, nBuf)
		}
		nBuf = 0
		return nil
	}

	err := forEachRun(indices, func(first, n int64) error {
		for n > 0 {
			if nBuf == perBuf*itemSize {
				if err := flush(); err != nil {
					return err
				}
			}
			chunk := perBuf - nBuf/itemSize
			if chunk > n {
				chunk = n
			}

			b := buf[nBuf : nBuf+chunk*itemSize]
			off := base + first*itemSize
			if m, err := src.ReadAt(b, off); m != len(b) {
				if err == nil {
					err = io.ErrUnexpectedEOF
				}
				return fmt.Errorf("%w: read %d of %d bytes at offset %d: %s",
					g_error.ErrShortRead, m, len(b), off, err.Error())
			}

			nBuf += chunk * itemSize
			first += chunk
			n -= chunk
		}
		return nil
	})
	if err != nil {
		return written, err
	}
	if err := flush(); err != nil {
		return written, err
	}
	return written, nil
}

// forEachRun splits ascending indices into runs of consecutive values and
// calls fn on the first index and length of each run, in order.
func forEachRun(indices []int, fn func(first, n int64) error) error {
	for i := 0; i < len(indices); {
		j := i + 1
		for j < len(indices) && indices[j] == indices[j-1]+1 {
			j++
		}
		if err := fn(int64(indices[i]), int64(j-i)); err != nil {
			return err
		}
		i = j
	}
	return nil
}

func truncate(f *os.File, size int64) error {
	if err := f.Truncate(size); err != nil {
		return fmt.Errorf("%w: could not extend %s to %d bytes: %s",
			g_error.ErrStorageExhausted, f.Name(), size, err.Error())
	}
	return nil
}

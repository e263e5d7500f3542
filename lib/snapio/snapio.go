/*package snapio contains functions for reading and writing Gadget-2 snapshot
files. A snapshot file is a sequence of Fortran-style frames: a header frame
followed by position, velocity, ID, and (optionally) mass blocks. Each block
stores the particles of type 0 through 5 back to back.

Nothing in this package assumes anything about the host's byte order or
struct padding. Headers are decoded field by field and every block offset is
computed from a Layout.
*/
package snapio

import (
	"encoding/binary"
	"fmt"
	"io"
	"unsafe"

	g_error "github.com/phil-mansfield/gadget-subsample/lib/error"
)

const (
	// NTypes is the number of particle types in a Gadget-2 file.
	NTypes = 6
	// TargetType is the only particle type that may be subsampled. All other
	// types must be empty.
	TargetType = 1
	// MarkerSize is the size of a single frame length marker.
	MarkerSize = 4
	// FrameOverhead is the number of bytes that a frame adds to its payload.
	FrameOverhead = 2 * MarkerSize
	// MaxFrameSize is the largest payload which can be described by a frame
	// marker. Gadget writes the markers as signed 32-bit integers.
	MaxFrameSize = 1<<31 - 1
)

// WriteMarker writes a single frame length marker.
func WriteMarker(wr io.Writer, order binary.ByteOrder, n int64) error {
	if n < 0 || n > MaxFrameSize {
		return fmt.Errorf("%w: a block with %d bytes cannot be framed, the "+
			"limit is %d bytes.", g_error.ErrSizeOverflow, n, MaxFrameSize)
	}
	b := make([]byte, MarkerSize)
	order.PutUint32(b, uint32(n))
	m, err := wr.Write(b)
	if err != nil {
		return fmt.Errorf("%w: %s", g_error.ErrShortWrite, err.Error())
	} else if m != MarkerSize {
		return fmt.Errorf("%w: wrote %d of %d marker bytes.",
			g_error.ErrShortWrite, m, MarkerSize)
	}
	return nil
}

// ReadMarker reads a single frame length marker.
func ReadMarker(rd io.Reader, order binary.ByteOrder) (int64, error) {
	b := make([]byte, MarkerSize)
	if _, err := io.ReadFull(rd, b); err != nil {
		return 0, fmt.Errorf("%w: could not read frame marker: %s",
			g_error.ErrShortRead, err.Error())
	}
	return int64(order.Uint32(b)), nil
}

// ReadMarkerAt reads a frame length marker at the given offset.
func ReadMarkerAt(rd io.ReaderAt, order binary.ByteOrder, off int64) (int64, error) {
	b := make([]byte, MarkerSize)
	n, err := rd.ReadAt(b, off)
	if n != MarkerSize {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return 0, fmt.Errorf("%w: could not read frame marker at byte %d: %s",
			g_error.ErrShortRead, off, err.Error())
	}
	return int64(order.Uint32(b)), nil
}

// CheckFrameSize returns an error if a payload with n bytes cannot be framed.
func CheckFrameSize(name string, n int64) error {
	if n < 0 || n > MaxFrameSize {
		return fmt.Errorf("%w: the %s block would have %d bytes, but frame "+
			"markers can describe at most %d bytes. Reduce the sampling "+
			"fraction.", g_error.ErrSizeOverflow, name, n, MaxFrameSize)
	}
	return nil
}

// SystemByteOrder returns the byte order of the machine the code is running
// on. Gadget writes files in this order.
func SystemByteOrder() binary.ByteOrder {
	// See https://stackoverflow.com/questions/51332658/any-better-way-to-check-endianness-in-go/51332762
	b := [2]byte{}
	*(*uint16)(unsafe.Pointer(&b[0])) = uint16(0x0001)
	if b[0] == 0 {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

package snapio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	g_error "github.com/phil-mansfield/gadget-subsample/lib/error"
)

// File reads typed particle data from a single Gadget-2 file. Every read
// checks both markers of the block it touches against the size implied by
// the header.
type File struct {
	fileName string
	order    binary.ByteOrder
	hd       *Header
	layout   *Layout
}

// OpenFile reads the header of fileName and prepares it for reading. If
// idBytes is zero, the ID width is inferred from the file.
func OpenFile(
	fileName string, order binary.ByteOrder, idBytes int,
) (*File, error) {
	hd, err := ReadFileHeader(fileName, order)
	if err != nil {
		return nil, err
	}
	if idBytes == 0 {
		idBytes, err = InferIDWidth(fileName, order)
		if err != nil {
			return nil, err
		}
	}

	f := &File{fileName, order, hd, NewLayout(hd, idBytes)}
	if err := f.checkSize(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) Header() *Header  { return f.hd }
func (f *File) Layout() *Layout  { return f.layout }
func (f *File) FileName() string { return f.fileName }
func (f *File) IDBytes() int     { return int(f.layout.idBytes) }

// checkSize returns an error if the file is too small to contain the blocks
// described by its header. Gadget will sometimes append junk, so larger
// files are accepted.
func (f *File) checkSize() error {
	info, err := os.Stat(f.fileName)
	if err != nil {
		return fmt.Errorf("%w: the file %s cannot be opened. The system "+
			"error is: %s", g_error.ErrNotFound, f.fileName, err.Error())
	}

	size := f.layout.FileSize()
	if size > info.Size() {
		return fmt.Errorf("%w: the header of %s implies a file with %d "+
			"bytes, but it actually has %d bytes.", g_error.ErrShortRead,
			f.fileName, size, info.Size())
	}
	return nil
}

// readTypeBlock returns the raw bytes of type typ's sub-array in block fd.
func (f *File) readTypeBlock(fd Field, typ int) ([]byte, error) {
	start, err := f.layout.BlockStart(fd)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(f.fileName)
	if err != nil {
		return nil, fmt.Errorf("%w: the file %s cannot be opened. The "+
			"system error is: \"%s\"", g_error.ErrNotFound, f.fileName,
			err.Error())
	}
	defer file.Close()

	size := f.layout.BlockSize(fd)
	nHeader, err := ReadMarkerAt(file, f.order, start-MarkerSize)
	if err != nil {
		return nil, err
	}
	nFooter, err := ReadMarkerAt(file, f.order, start+size)
	if err != nil {
		return nil, err
	}
	if nHeader != size || nFooter != size {
		return nil, fmt.Errorf("%w: the '%s' block in %s should have %d "+
			"bytes, but its header and footer are %d and %d.",
			g_error.ErrCorruptFrame, fd, f.fileName, size, nHeader, nFooter)
	}

	n := int64(0)
	if f.layout.hasEntries(fd, typ) {
		n = int64(f.hd.NPart[typ])
	}
	b := make([]byte, n*f.layout.ItemSize(fd))
	off := start + f.layout.TypeOffset(fd, typ)
	if m, err := file.ReadAt(b, off); m != len(b) {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("%w: read %d of %d bytes of the '%s' block "+
			"of %s: %s", g_error.ErrShortRead, m, len(b), fd, f.fileName,
			err.Error())
	}
	return b, nil
}

// ReadPositions reads the positions of particles of type typ into buf,
// resizing it as needed.
func (f *File) ReadPositions(typ int, buf [][3]float32) ([][3]float32, error) {
	return f.readVectors(Position, typ, buf)
}

// ReadVelocities reads the velocities of particles of type typ into buf,
// resizing it as needed.
func (f *File) ReadVelocities(typ int, buf [][3]float32) ([][3]float32, error) {
	return f.readVectors(Velocity, typ, buf)
}

func (f *File) readVectors(
	fd Field, typ int, buf [][3]float32,
) ([][3]float32, error) {
	b, err := f.readTypeBlock(fd, typ)
	if err != nil {
		return nil, err
	}
	buf = expand(buf, len(b)/VectorSize)
	for i := range buf {
		for dim := 0; dim < 3; dim++ {
			bits := f.order.Uint32(b[i*VectorSize+4*dim:])
			buf[i][dim] = math.Float32frombits(bits)
		}
	}
	return buf, nil
}

// ReadIDs reads the IDs of particles of type typ into buf, resizing it as
// needed. 4-byte IDs are widened.
func (f *File) ReadIDs(typ int, buf []uint64) ([]uint64, error) {
	b, err := f.readTypeBlock(ID, typ)
	if err != nil {
		return nil, err
	}
	width := int(f.layout.idBytes)
	buf = expand(buf, len(b)/width)
	for i := range buf {
		if width == 4 {
			buf[i] = uint64(f.order.Uint32(b[i*width:]))
		} else {
			buf[i] = f.order.Uint64(b[i*width:])
		}
	}
	return buf, nil
}

// ReadMasses reads the explicit masses of particles of type typ into buf,
// resizing it as needed. If the file has no mass block, ErrFieldAbsent is
// returned. Types with a fixed header mass have no entries.
func (f *File) ReadMasses(typ int, buf []float32) ([]float32, error) {
	b, err := f.readTypeBlock(Mass, typ)
	if err != nil {
		return nil, err
	}
	buf = expand(buf, len(b)/MassSize)
	for i := range buf {
		buf[i] = math.Float32frombits(f.order.Uint32(b[i*MassSize:]))
	}
	return buf, nil
}

// expand resizes x to have length n, reusing its storage when possible.
func expand[T any](x []T, n int) []T {
	if m := len(x); m < n {
		x = append(x, make([]T, n-m)...)
	}
	return x[:n]
}

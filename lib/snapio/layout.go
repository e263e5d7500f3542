package snapio

import (
	"fmt"

	g_error "github.com/phil-mansfield/gadget-subsample/lib/error"
)

// Field identifies one of the blocks of a Gadget-2 file. Blocks are always
// stored in the order Position, Velocity, ID, Mass.
type Field int

const (
	Position Field = iota
	Velocity
	ID
	Mass
)

// Fields lists every field in on-disk order.
var Fields = []Field{Position, Velocity, ID, Mass}

func (f Field) String() string {
	switch f {
	case Position:
		return "position"
	case Velocity:
		return "velocity"
	case ID:
		return "id"
	case Mass:
		return "mass"
	}
	return fmt.Sprintf("Field(%d)", int(f))
}

const (
	// VectorSize is the size of a position or velocity: three float32s.
	VectorSize = 12
	// MassSize is the size of a single particle mass.
	MassSize = 4
)

// Layout computes where blocks and per-type sub-arrays live inside a file
// with a given header. It does no I/O, so it can be used on headers that
// haven't been written yet.
type Layout struct {
	hd      *Header
	idBytes int64
}

// NewLayout returns the Layout of a file with the given header and ID width.
// idBytes may be zero if the ID width isn't known yet, in which case only
// the position and velocity blocks and the start of the ID block are valid.
func NewLayout(hd *Header, idBytes int) *Layout {
	return &Layout{hd, int64(idBytes)}
}

// ItemSize returns the size of one particle's entry in the given block.
func (l *Layout) ItemSize(f Field) int64 {
	switch f {
	case Position, Velocity:
		return VectorSize
	case ID:
		if l.idBytes == 0 {
			panic("Internal error: ID item size requested before the " +
				"ID width was known.")
		}
		return l.idBytes
	case Mass:
		return MassSize
	}
	panic(fmt.Sprintf("Internal error: unrecognized field %d.", int(f)))
}

// hasEntries returns true if particles of type typ have entries in the
// given block. Only types without a fixed header mass are in the mass block.
func (l *Layout) hasEntries(f Field, typ int) bool {
	if f == Mass {
		return l.hd.Mass[typ] == 0
	}
	return true
}

// Present returns true if the block is stored in the file. Position,
// velocity, and ID blocks are always present.
func (l *Layout) Present(f Field) bool {
	if f != Mass {
		return true
	}
	for k := 0; k < NTypes; k++ {
		if l.hasEntries(Mass, k) && l.hd.NPart[k] > 0 {
			return true
		}
	}
	return false
}

// Count returns the number of entries in the given block.
func (l *Layout) Count(f Field) int64 {
	n := int64(0)
	for k := 0; k < NTypes; k++ {
		if l.hasEntries(f, k) {
			n += int64(l.hd.NPart[k])
		}
	}
	return n
}

// BlockSize returns the size of the block's payload, without markers.
func (l *Layout) BlockSize(f Field) int64 {
	return l.ItemSize(f) * l.Count(f)
}

// BlockStart returns the offset of the first payload byte of the block, i.e.
// the byte after its leading marker. If f is an absent mass block,
// ErrFieldAbsent is returned and the block must be skipped.
func (l *Layout) BlockStart(f Field) (int64, error) {
	if !l.Present(f) {
		return 0, fmt.Errorf("%w: no particle type has a zero header "+
			"mass, so there is no %s block.", g_error.ErrFieldAbsent, f)
	}

	off := int64(HeaderDiskSize)
	for _, prev := range Fields {
		if prev == f {
			break
		}
		if l.Present(prev) {
			off += l.BlockSize(prev) + FrameOverhead
		}
	}
	return off + MarkerSize, nil
}

// TypeOffset returns the offset of type typ's sub-array relative to the
// start of the block's payload.
func (l *Layout) TypeOffset(f Field, typ int) int64 {
	off := int64(0)
	for k := 0; k < typ; k++ {
		if l.hasEntries(f, k) {
			off += l.ItemSize(f) * int64(l.hd.NPart[k])
		}
	}
	return off
}

// TypeStart returns the absolute file offset of type typ's sub-array in
// block f.
func (l *Layout) TypeStart(f Field, typ int) (int64, error) {
	start, err := l.BlockStart(f)
	if err != nil {
		return 0, err
	}
	return start + l.TypeOffset(f, typ), nil
}

// FileSize returns the size of a file containing the header and every
// present block.
func (l *Layout) FileSize() int64 {
	size := int64(HeaderDiskSize)
	for _, f := range Fields {
		if l.Present(f) {
			size += l.BlockSize(f) + FrameOverhead
		}
	}
	return size
}

// CheckFrames returns an error if any present block is too large to frame.
func (l *Layout) CheckFrames() error {
	for _, f := range Fields {
		if !l.Present(f) {
			continue
		}
		if err := CheckFrameSize(f.String(), l.BlockSize(f)); err != nil {
			return err
		}
	}
	return nil
}

package snapio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	g_error "github.com/phil-mansfield/gadget-subsample/lib/error"
)

const (
	// HeaderSize is the size of a Gadget-2 header's payload. It is part of
	// the file format and doesn't depend on the platform.
	HeaderSize = 256
	// HeaderDiskSize is the size of the header frame, markers included.
	HeaderDiskSize = HeaderSize + FrameOverhead

	headerFillSize = 60
)

// Header holds the fields of a Gadget-2 header in on-disk order.
type Header struct {
	// NPart is the number of particles of each type in this file.
	NPart [NTypes]uint32
	// Mass is the mass of each particle type. A value of 0 means that masses
	// for that type are stored explicitly in the mass block.
	Mass                  [NTypes]float64
	Time, Redshift        float64
	FlagSFR, FlagFeedback int32
	// NPartTotal is the low word of the number of particles of each type
	// across all the snapshot's files.
	NPartTotal                                [NTypes]uint32
	FlagCooling, NumFiles                     int32
	BoxSize, Omega0, OmegaLambda, HubbleParam float64
	FlagStellarAge, FlagMetals                int32
	// NPartTotalHighWord is the high word of the snapshot-wide count.
	NPartTotalHighWord  [NTypes]uint32
	FlagEntropyInsteadU int32
	Fill                [headerFillSize]byte
}

// Clone returns a copy of the header.
func (hd *Header) Clone() *Header {
	out := *hd
	return &out
}

// FileCount returns the number of files in the snapshot. Old writers leave
// NumFiles at zero for single-file snapshots, so anything below one counts
// as one.
func (hd *Header) FileCount() int {
	if hd.NumFiles <= 1 {
		return 1
	}
	return int(hd.NumFiles)
}

// FileParticles returns the number of particles of all types in this file.
func (hd *Header) FileParticles() int64 {
	n := int64(0)
	for k := 0; k < NTypes; k++ {
		n += int64(hd.NPart[k])
	}
	return n
}

// TypeTotal returns the snapshot-wide number of particles of type typ. For
// single-file snapshots the per-file count is authoritative.
func (hd *Header) TypeTotal(typ int) int64 {
	if hd.NumFiles <= 1 {
		return int64(hd.NPart[typ])
	}
	return int64(uint64(hd.NPartTotal[typ]) +
		uint64(hd.NPartTotalHighWord[typ])<<32)
}

// TotalParticles returns the snapshot-wide number of particles summed over
// all types.
func (hd *Header) TotalParticles() int64 {
	n := int64(0)
	for k := 0; k < NTypes; k++ {
		n += hd.TypeTotal(k)
	}
	return n
}

// Z returns the header's redshift.
func (hd *Header) Z() float64 { return hd.Redshift }

// Encode converts the header to its 256-byte on-disk representation.
func (hd *Header) Encode(order binary.ByteOrder) []byte {
	b := make([]byte, HeaderSize)
	off := 0

	putU32 := func(x uint32) { order.PutUint32(b[off:], x); off += 4 }
	putI32 := func(x int32) { putU32(uint32(x)) }
	putF64 := func(x float64) {
		order.PutUint64(b[off:], math.Float64bits(x))
		off += 8
	}

	for k := range hd.NPart {
		putU32(hd.NPart[k])
	}
	for k := range hd.Mass {
		putF64(hd.Mass[k])
	}
	putF64(hd.Time)
	putF64(hd.Redshift)
	putI32(hd.FlagSFR)
	putI32(hd.FlagFeedback)
	for k := range hd.NPartTotal {
		putU32(hd.NPartTotal[k])
	}
	putI32(hd.FlagCooling)
	putI32(hd.NumFiles)
	putF64(hd.BoxSize)
	putF64(hd.Omega0)
	putF64(hd.OmegaLambda)
	putF64(hd.HubbleParam)
	putI32(hd.FlagStellarAge)
	putI32(hd.FlagMetals)
	for k := range hd.NPartTotalHighWord {
		putU32(hd.NPartTotalHighWord[k])
	}
	putI32(hd.FlagEntropyInsteadU)
	off += copy(b[off:], hd.Fill[:])

	if off != HeaderSize {
		panic(fmt.Sprintf("Internal error: encoded header has %d bytes "+
			"instead of %d.", off, HeaderSize))
	}
	return b
}

// DecodeHeader decodes a 256-byte header payload.
func DecodeHeader(b []byte, order binary.ByteOrder) (*Header, error) {
	if len(b) != HeaderSize {
		return nil, fmt.Errorf("%w: header payload has %d bytes instead "+
			"of %d.", g_error.ErrCorruptFrame, len(b), HeaderSize)
	}

	hd := &Header{}
	off := 0
	u32 := func() uint32 { x := order.Uint32(b[off:]); off += 4; return x }
	i32 := func() int32 { return int32(u32()) }
	f64 := func() float64 {
		x := math.Float64frombits(order.Uint64(b[off:]))
		off += 8
		return x
	}

	for k := range hd.NPart {
		hd.NPart[k] = u32()
	}
	for k := range hd.Mass {
		hd.Mass[k] = f64()
	}
	hd.Time = f64()
	hd.Redshift = f64()
	hd.FlagSFR = i32()
	hd.FlagFeedback = i32()
	for k := range hd.NPartTotal {
		hd.NPartTotal[k] = u32()
	}
	hd.FlagCooling = i32()
	hd.NumFiles = i32()
	hd.BoxSize = f64()
	hd.Omega0 = f64()
	hd.OmegaLambda = f64()
	hd.HubbleParam = f64()
	hd.FlagStellarAge = i32()
	hd.FlagMetals = i32()
	for k := range hd.NPartTotalHighWord {
		hd.NPartTotalHighWord[k] = u32()
	}
	hd.FlagEntropyInsteadU = i32()
	off += copy(hd.Fill[:], b[off:])

	if off != HeaderSize {
		panic(fmt.Sprintf("Internal error: decoded header used %d bytes "+
			"instead of %d.", off, HeaderSize))
	}
	return hd, nil
}

// WriteHeader writes the header frame: marker, payload, marker.
func WriteHeader(wr io.Writer, hd *Header, order binary.ByteOrder) error {
	if err := WriteMarker(wr, order, HeaderSize); err != nil {
		return err
	}
	b := hd.Encode(order)
	n, err := wr.Write(b)
	if err != nil {
		return fmt.Errorf("%w: could not write header: %s",
			g_error.ErrShortWrite, err.Error())
	} else if n != len(b) {
		return fmt.Errorf("%w: wrote %d of %d header bytes.",
			g_error.ErrShortWrite, n, len(b))
	}
	return WriteMarker(wr, order, HeaderSize)
}

// ReadHeaderFrom reads a header frame from rd and checks that both markers
// give the header size.
func ReadHeaderFrom(rd io.Reader, order binary.ByteOrder) (*Header, error) {
	nHeader, err := ReadMarker(rd, order)
	if err != nil {
		return nil, err
	}
	if nHeader != HeaderSize {
		return nil, fmt.Errorf("%w: the first integer would lead to a "+
			"header with %d bytes instead of %d. Either this is not a "+
			"Gadget-2 file or the byte order is wrong.",
			g_error.ErrCorruptFrame, nHeader, HeaderSize)
	}

	b := make([]byte, HeaderSize)
	if _, err := io.ReadFull(rd, b); err != nil {
		return nil, fmt.Errorf("%w: could not read header: %s",
			g_error.ErrShortRead, err.Error())
	}

	nFooter, err := ReadMarker(rd, order)
	if err != nil {
		return nil, err
	}
	if nFooter != nHeader {
		return nil, fmt.Errorf("%w: the header, %d, and footer, %d, of the "+
			"header block don't match.", g_error.ErrCorruptFrame,
			nHeader, nFooter)
	}

	return DecodeHeader(b, order)
}

// ResolveFileName returns the name of the file that a snapshot name refers
// to. "name.0" is tried first and then "name".
func ResolveFileName(name string) (string, error) {
	candidates := []string{fmt.Sprintf("%s.%d", name, 0), name}
	for _, fname := range candidates {
		info, err := os.Stat(fname)
		if err == nil && !info.IsDir() {
			return fname, nil
		}
	}
	return "", fmt.Errorf("%w: could not find the snapshot as either "+
		"'%s' or '%s'.", g_error.ErrNotFound, candidates[0], candidates[1])
}

// ReadHeader reads the header of the snapshot file referred to by name,
// using either naming convention. It returns the header and the name of the
// file that was actually read.
func ReadHeader(
	name string, order binary.ByteOrder,
) (hd *Header, fileName string, err error) {
	fileName, err = ResolveFileName(name)
	if err != nil {
		return nil, "", err
	}
	hd, err = ReadFileHeader(fileName, order)
	return hd, fileName, err
}

// ReadFileHeader reads the header of exactly the file fileName.
func ReadFileHeader(fileName string, order binary.ByteOrder) (*Header, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("%w: the file %s cannot be opened. The "+
			"system error is: \"%s\"", g_error.ErrNotFound, fileName,
			err.Error())
	}
	defer f.Close()

	hd, err := ReadHeaderFrom(bufio.NewReaderSize(f, HeaderDiskSize), order)
	if err != nil {
		return nil, fmt.Errorf("%s is not a valid Gadget-2 file: %w",
			fileName, err)
	}
	return hd, nil
}

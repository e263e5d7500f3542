/*package manifest records which particles were kept by a subsampling run, so
that output particles can be matched back to rows of the parent snapshot.

A manifest is a single zstd-compressed payload. The payload begins with a
magic number, a version number, and an entry count, all uint32s. Each entry
is a file index (uint32), the number of source and selected particles
(uint64s), and then the selected indices as uvarint-encoded differences.
*/
package manifest

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/DataDog/zstd"

	g_error "github.com/phil-mansfield/gadget-subsample/lib/error"
)

const (
	// MagicNumber is an arbitrary number at the start of all manifests.
	MagicNumber = 0x5ab5a4e1
	// ReverseMagicNumber is the magic number if the manifest was written
	// with the opposite byte order.
	ReverseMagicNumber = 0xe1a4b55a
	Version            = 1

	compressionLevel = 3
)

// Entry records the particles selected from a single file.
type Entry struct {
	FileIndex int
	// N and K are the number of source and selected particles.
	N, K int
	// Indices are the selected indices in ascending order.
	Indices []int
}

// Writer streams entries through a zstd encoder as they are added, so
// indices never need to be held for more than one file at a time.
type Writer struct {
	fname    string
	order    binary.ByteOrder
	f        *os.File
	bw       *bufio.Writer
	zw       *zstd.Writer
	nEntries int
	added    int
	buf      []byte
}

// Create creates the manifest fname, which will hold nEntries entries, and
// writes its header. Manifests are never overwritten, so it fails with
// ErrOutputExists if fname already exists.
func Create(fname string, order binary.ByteOrder, nEntries int) (*Writer, error) {
	f, err := os.OpenFile(fname, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("%w: the manifest %s already exists.",
			g_error.ErrOutputExists, fname)
	} else if err != nil {
		return nil, fmt.Errorf("could not create the manifest %s: %w",
			fname, err)
	}

	bw := bufio.NewWriter(f)
	wr := &Writer{
		fname: fname, order: order, f: f, bw: bw,
		zw:       zstd.NewWriterLevel(bw, compressionLevel),
		nEntries: nEntries,
	}
	if err := wr.write(appendHeader(wr.buf[:0], order, nEntries)); err != nil {
		wr.f.Close()
		return nil, err
	}
	return wr, nil
}

// Add writes the entry for the n particles of file i, of which indices
// were selected.
func (wr *Writer) Add(i, n int, indices []int) error {
	if wr.added == wr.nEntries {
		return fmt.Errorf("%w: the manifest %s was created for %d entries, "+
			"but entry %d was added.", g_error.ErrCorruptManifest,
			wr.fname, wr.nEntries, wr.added+1)
	}
	wr.buf = appendEntry(wr.buf[:0], wr.order, i, n, indices)
	if err := wr.write(wr.buf); err != nil {
		return err
	}
	wr.added++
	return nil
}

// Len returns the number of entries that have been added.
func (wr *Writer) Len() int { return wr.added }

// Close finishes the compressed stream and closes the file. It returns an
// error if fewer entries were added than were declared in Create. The file
// is closed either way.
func (wr *Writer) Close() error {
	zErr := wr.zw.Close()
	bErr := wr.bw.Flush()
	fErr := wr.f.Close()

	switch {
	case zErr != nil:
		return fmt.Errorf("could not compress the manifest %s: %w",
			wr.fname, zErr)
	case bErr != nil:
		return fmt.Errorf("%w: could not write the manifest %s: %s",
			g_error.ErrShortWrite, wr.fname, bErr.Error())
	case fErr != nil:
		return fmt.Errorf("%w: closing the manifest %s failed: %s",
			g_error.ErrStorageExhausted, wr.fname, fErr.Error())
	case wr.added != wr.nEntries:
		return fmt.Errorf("%w: the manifest %s was closed after %d of %d "+
			"entries.", g_error.ErrCorruptManifest, wr.fname, wr.added,
			wr.nEntries)
	}
	return nil
}

func (wr *Writer) write(b []byte) error {
	if m, err := wr.zw.Write(b); err != nil || m != len(b) {
		return fmt.Errorf("%w: wrote %d of %d bytes of %s: %v",
			g_error.ErrShortWrite, m, len(b), wr.fname, err)
	}
	return nil
}

// Encode returns the uncompressed payload describing entries.
func Encode(entries []Entry, order binary.ByteOrder) []byte {
	b := appendHeader(nil, order, len(entries))
	for _, e := range entries {
		b = appendEntry(b, order, e.FileIndex, e.N, e.Indices)
	}
	return b
}

func appendHeader(b []byte, order binary.ByteOrder, nEntries int) []byte {
	b = appendUint32(b, order, MagicNumber)
	b = appendUint32(b, order, Version)
	return appendUint32(b, order, uint32(nEntries))
}

func appendEntry(b []byte, order binary.ByteOrder, i, n int, indices []int) []byte {
	b = appendUint32(b, order, uint32(i))
	b = appendUint64(b, order, uint64(n))
	b = appendUint64(b, order, uint64(len(indices)))
	prev := 0
	for _, idx := range indices {
		b = binary.AppendUvarint(b, uint64(idx-prev))
		prev = idx
	}
	return b
}

// Read reads every entry from the manifest fname.
func Read(fname string) ([]Entry, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("%w: the manifest %s cannot be read: %s",
			g_error.ErrNotFound, fname, err.Error())
	}
	defer f.Close()

	zr := zstd.NewReader(bufio.NewReader(f))
	defer zr.Close()
	payload, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not a complete zstd stream: %s",
			g_error.ErrCorruptManifest, fname, err.Error())
	}

	entries, err := Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fname, err)
	}
	return entries, nil
}

// Decode parses an uncompressed payload. The byte order is detected from
// the magic number.
func Decode(payload []byte) ([]Entry, error) {
	rd := bytes.NewReader(payload)

	var order binary.ByteOrder = binary.LittleEndian
	magic, err := readUint32(rd, order)
	if err != nil {
		return nil, err
	}
	switch magic {
	case MagicNumber:
	case ReverseMagicNumber:
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: not a selection manifest. All "+
			"manifests begin with either the 32-bit integer %x or %x. This "+
			"one begins with %x.", g_error.ErrCorruptManifest, MagicNumber,
			ReverseMagicNumber, magic)
	}

	version, err := readUint32(rd, order)
	if err != nil {
		return nil, err
	} else if version > Version {
		return nil, fmt.Errorf("%w: the manifest was written with version "+
			"%d of the format, but this code only understands versions up "+
			"to %d.", g_error.ErrCorruptManifest, version, Version)
	}

	n, err := readUint32(rd, order)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, n)
	for i := range entries {
		if entries[i], err = decodeEntry(rd, order); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}

	if rd.Len() != 0 {
		return nil, fmt.Errorf("%w: %d unexpected bytes after the last "+
			"entry.", g_error.ErrCorruptManifest, rd.Len())
	}
	return entries, nil
}

func decodeEntry(rd *bytes.Reader, order binary.ByteOrder) (Entry, error) {
	fileIndex, err := readUint32(rd, order)
	if err != nil {
		return Entry{}, err
	}
	n, err := readUint64(rd, order)
	if err != nil {
		return Entry{}, err
	}
	k, err := readUint64(rd, order)
	if err != nil {
		return Entry{}, err
	}
	if k > n || k > uint64(rd.Len()) {
		return Entry{}, fmt.Errorf("%w: %d of %d particles are selected, "+
			"but only %d bytes remain.", g_error.ErrCorruptManifest, k, n,
			rd.Len())
	}

	e := Entry{FileIndex: int(fileIndex), N: int(n), K: int(k),
		Indices: make([]int, k)}
	idx := uint64(0)
	for j := range e.Indices {
		delta, err := binary.ReadUvarint(rd)
		if err != nil {
			return Entry{}, fmt.Errorf("%w: could not read index %d: %s",
				g_error.ErrCorruptManifest, j, err.Error())
		}
		idx += delta
		if idx >= n || (j > 0 && delta == 0) {
			return Entry{}, fmt.Errorf("%w: index %d is %d, which isn't "+
				"ascending and below %d.", g_error.ErrCorruptManifest, j,
				idx, n)
		}
		e.Indices[j] = int(idx)
	}
	return e, nil
}

func appendUint32(b []byte, order binary.ByteOrder, x uint32) []byte {
	var tmp [4]byte
	order.PutUint32(tmp[:], x)
	return append(b, tmp[:]...)
}

func appendUint64(b []byte, order binary.ByteOrder, x uint64) []byte {
	var tmp [8]byte
	order.PutUint64(tmp[:], x)
	return append(b, tmp[:]...)
}

func readUint32(rd io.Reader, order binary.ByteOrder) (uint32, error) {
	var x uint32
	if err := binary.Read(rd, order, &x); err != nil {
		return 0, fmt.Errorf("%w: truncated payload: %s",
			g_error.ErrCorruptManifest, err.Error())
	}
	return x, nil
}

func readUint64(rd io.Reader, order binary.ByteOrder) (uint64, error) {
	var x uint64
	if err := binary.Read(rd, order, &x); err != nil {
		return 0, fmt.Errorf("%w: truncated payload: %s",
			g_error.ErrCorruptManifest, err.Error())
	}
	return x, nil
}

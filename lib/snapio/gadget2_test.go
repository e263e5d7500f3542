package snapio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	g_error "github.com/phil-mansfield/gadget-subsample/lib/error"
)

var order = binary.LittleEndian

func testHeader() *Header {
	hd := &Header{
		NPart:    [NTypes]uint32{0, 1000, 0, 0, 0, 0},
		Mass:     [NTypes]float64{0, 1.4e-2, 0, 0, 0, 0},
		Time:     0.25,
		Redshift: 3.0,
		FlagSFR:  1, FlagFeedback: 0,
		NPartTotal:  [NTypes]uint32{0, 8000, 0, 0, 0, 0},
		FlagCooling: 1, NumFiles: 8,
		BoxSize: 125.0, Omega0: 0.286, OmegaLambda: 0.714, HubbleParam: 0.7,
		FlagStellarAge: 0, FlagMetals: 1,
		NPartTotalHighWord:  [NTypes]uint32{0, 2, 0, 0, 0, 0},
		FlagEntropyInsteadU: 1,
	}
	for i := range hd.Fill {
		hd.Fill[i] = byte(i)
	}
	return hd
}

func TestHeaderSize(t *testing.T) {
	for _, o := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		if b := testHeader().Encode(o); len(b) != HeaderSize {
			t.Errorf("Encoded header has %d bytes, not %d.", len(b), HeaderSize)
		}
	}
}

func TestHeaderFieldOffsets(t *testing.T) {
	b := testHeader().Encode(order)

	tests := []struct {
		name string
		off  int
		u32  uint32
	}{
		{"NPart[1]", 4, 1000},
		{"FlagSFR", 88, 1},
		{"NPartTotal[1]", 100, 8000},
		{"FlagCooling", 120, 1},
		{"NumFiles", 124, 8},
		{"FlagMetals", 164, 1},
		{"NPartTotalHighWord[1]", 172, 2},
		{"FlagEntropyInsteadU", 192, 1},
	}
	for i := range tests {
		if x := order.Uint32(b[tests[i].off:]); x != tests[i].u32 {
			t.Errorf("%d) Expected %s at byte %d to be %d, got %d.",
				i, tests[i].name, tests[i].off, tests[i].u32, x)
		}
	}

	f64Tests := []struct {
		name string
		off  int
		f64  float64
	}{
		{"Mass[1]", 32, 1.4e-2},
		{"Time", 72, 0.25},
		{"Redshift", 80, 3.0},
		{"BoxSize", 128, 125.0},
		{"HubbleParam", 152, 0.7},
	}
	for i := range f64Tests {
		x := math.Float64frombits(order.Uint64(b[f64Tests[i].off:]))
		if x != f64Tests[i].f64 {
			t.Errorf("%d) Expected %s at byte %d to be %g, got %g.",
				i, f64Tests[i].name, f64Tests[i].off, f64Tests[i].f64, x)
		}
	}

	if b[196] != 0 || b[255] != 59 {
		t.Errorf("Fill bytes are not at the end of the header: b[196] = %d, "+
			"b[255] = %d.", b[196], b[255])
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	for _, o := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		hd := testHeader()
		buf := &bytes.Buffer{}
		if err := WriteHeader(buf, hd, o); err != nil {
			t.Fatalf("WriteHeader() failed: %s", err.Error())
		}
		if buf.Len() != HeaderDiskSize {
			t.Errorf("Header frame has %d bytes, expected %d.",
				buf.Len(), HeaderDiskSize)
		}

		got, err := ReadHeaderFrom(buf, o)
		if err != nil {
			t.Fatalf("ReadHeaderFrom() failed: %s", err.Error())
		}
		if diff := cmp.Diff(hd, got); diff != "" {
			t.Errorf("Header changed after round trip (-want +got):\n%s", diff)
		}
	}
}

func TestReadHeaderCorrupt(t *testing.T) {
	good := &bytes.Buffer{}
	if err := WriteHeader(good, testHeader(), order); err != nil {
		t.Fatal(err.Error())
	}

	badLeading := append([]byte{}, good.Bytes()...)
	order.PutUint32(badLeading, 255)
	badTrailing := append([]byte{}, good.Bytes()...)
	order.PutUint32(badTrailing[HeaderDiskSize-MarkerSize:], 257)

	tests := []struct {
		b   []byte
		err error
	}{
		{badLeading, g_error.ErrCorruptFrame},
		{badTrailing, g_error.ErrCorruptFrame},
		{good.Bytes()[:100], g_error.ErrShortRead},
		{[]byte{}, g_error.ErrShortRead},
	}

	for i := range tests {
		_, err := ReadHeaderFrom(bytes.NewReader(tests[i].b), order)
		if !errors.Is(err, tests[i].err) {
			t.Errorf("%d) Expected error %v, got %v.", i, tests[i].err, err)
		}
	}

	// A big-endian file read as little-endian has the wrong header size.
	_, err := ReadHeaderFrom(bytes.NewReader(good.Bytes()), binary.BigEndian)
	if !errors.Is(err, g_error.ErrCorruptFrame) {
		t.Errorf("Expected byte order mismatch to give ErrCorruptFrame, got %v.",
			err)
	}
}

func TestResolveFileName(t *testing.T) {
	dir := t.TempDir()
	bare := filepath.Join(dir, "snap_bare")
	numbered := filepath.Join(dir, "snap_numbered")
	both := filepath.Join(dir, "snap_both")

	for _, fname := range []string{bare, numbered + ".0", both, both + ".0"} {
		if err := os.WriteFile(fname, []byte{1}, 0644); err != nil {
			t.Fatal(err.Error())
		}
	}

	tests := []struct {
		name, fileName string
		err            error
	}{
		{bare, bare, nil},
		{numbered, numbered + ".0", nil},
		{both, both + ".0", nil},
		{filepath.Join(dir, "missing"), "", g_error.ErrNotFound},
		{dir, "", g_error.ErrNotFound},
	}

	for i := range tests {
		fileName, err := ResolveFileName(tests[i].name)
		if !errors.Is(err, tests[i].err) {
			t.Errorf("%d) Expected error %v, got %v.", i, tests[i].err, err)
		} else if fileName != tests[i].fileName {
			t.Errorf("%d) Expected '%s' to resolve to '%s', got '%s'.",
				i, tests[i].name, tests[i].fileName, fileName)
		}
	}
}

func TestReadHeader(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "snapshot_010")
	f := NewFakeFile([NTypes]int{0, 10, 0, 0, 0, 0}, 4)
	if err := f.Write(name+".0", order); err != nil {
		t.Fatal(err.Error())
	}

	hd, fileName, err := ReadHeader(name, order)
	if err != nil {
		t.Fatalf("ReadHeader() failed: %s", err.Error())
	}
	if fileName != name+".0" {
		t.Errorf("Expected header to be read from %s.0, got %s.", name, fileName)
	}
	if diff := cmp.Diff(f.Header, hd); diff != "" {
		t.Errorf("Read header differs from written one (-want +got):\n%s", diff)
	}
}

func TestParticleCounts(t *testing.T) {
	single := &Header{NPart: [NTypes]uint32{1, 2, 3, 0, 0, 4}, NumFiles: 1,
		NPartTotal: [NTypes]uint32{100, 100, 100, 0, 0, 100}}
	zeroFiles := &Header{NPart: [NTypes]uint32{0, 7, 0, 0, 0, 0}}
	multi := testHeader()

	tests := []struct {
		hd            *Header
		files         int
		fileN, totalN int64
		total1        int64
	}{
		{single, 1, 10, 10, 2},
		{zeroFiles, 1, 7, 7, 7},
		{multi, 8, 1000, 8000 + 2<<32, 8000 + 2<<32},
	}

	for i := range tests {
		hd := tests[i].hd
		if n := hd.FileCount(); n != tests[i].files {
			t.Errorf("%d) Expected FileCount() = %d, got %d.",
				i, tests[i].files, n)
		}
		if n := hd.FileParticles(); n != tests[i].fileN {
			t.Errorf("%d) Expected FileParticles() = %d, got %d.",
				i, tests[i].fileN, n)
		}
		if n := hd.TotalParticles(); n != tests[i].totalN {
			t.Errorf("%d) Expected TotalParticles() = %d, got %d.",
				i, tests[i].totalN, n)
		}
		if n := hd.TypeTotal(1); n != tests[i].total1 {
			t.Errorf("%d) Expected TypeTotal(1) = %d, got %d.",
				i, tests[i].total1, n)
		}
	}

	if single.NPartTotal[0] != 100 {
		t.Errorf("TotalParticles() modified the header.")
	}
}

func TestWriteMarkerOverflow(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := WriteMarker(buf, order, MaxFrameSize); err != nil {
		t.Errorf("Expected a marker of %d to be valid, got %s.",
			MaxFrameSize, err.Error())
	}
	err := WriteMarker(buf, order, MaxFrameSize+1)
	if !errors.Is(err, g_error.ErrSizeOverflow) {
		t.Errorf("Expected ErrSizeOverflow, got %v.", err)
	}
	if buf.Len() != MarkerSize {
		t.Errorf("Failed WriteMarker() still wrote bytes.")
	}
}

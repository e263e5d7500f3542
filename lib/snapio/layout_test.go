package snapio

import (
	"errors"
	"testing"

	g_error "github.com/phil-mansfield/gadget-subsample/lib/error"
)

func TestLayoutDarkMatterOnly(t *testing.T) {
	hd := &Header{NPart: [NTypes]uint32{0, 1000, 0, 0, 0, 0},
		Mass: [NTypes]float64{0, 1, 0, 0, 0, 0}}
	l := NewLayout(hd, 4)

	tests := []struct {
		f     Field
		start int64
		size  int64
	}{
		{Position, 264 + 4, 12000},
		{Velocity, 264 + 12008 + 4, 12000},
		{ID, 264 + 2*12008 + 4, 4000},
	}

	for i := range tests {
		start, err := l.BlockStart(tests[i].f)
		if err != nil {
			t.Errorf("%d) BlockStart(%s) failed: %s", i, tests[i].f, err.Error())
		} else if start != tests[i].start {
			t.Errorf("%d) Expected BlockStart(%s) = %d, got %d.",
				i, tests[i].f, tests[i].start, start)
		}
		if size := l.BlockSize(tests[i].f); size != tests[i].size {
			t.Errorf("%d) Expected BlockSize(%s) = %d, got %d.",
				i, tests[i].f, tests[i].size, size)
		}
		if off := l.TypeOffset(tests[i].f, 1); off != 0 {
			t.Errorf("%d) Expected TypeOffset(%s, 1) = 0, got %d.",
				i, tests[i].f, off)
		}
	}

	// Type 0 has zero header mass but no particles, so there's no mass block.
	if l.Present(Mass) {
		t.Errorf("Expected no mass block.")
	}
	if _, err := l.BlockStart(Mass); !errors.Is(err, g_error.ErrFieldAbsent) {
		t.Errorf("Expected BlockStart(Mass) to give ErrFieldAbsent, got %v.", err)
	}

	if size := l.FileSize(); size != 264+2*12008+4008 {
		t.Errorf("Expected FileSize() = %d, got %d.", 264+2*12008+4008, size)
	}
}

func TestLayoutMixedTypes(t *testing.T) {
	// Types 0 and 4 store explicit masses.
	hd := &Header{NPart: [NTypes]uint32{10, 20, 0, 5, 7, 0},
		Mass: [NTypes]float64{0, 1, 0, 1, 0, 1}}
	l := NewLayout(hd, 8)

	typeTests := []struct {
		f   Field
		typ int
		off int64
	}{
		{Position, 0, 0},
		{Position, 1, 120},
		{Position, 3, 360},
		{Position, 4, 420},
		{Velocity, 5, 12 * 42},
		{ID, 1, 80},
		{ID, 4, 8 * 35},
		{Mass, 0, 0},
		{Mass, 1, 40},
		{Mass, 3, 40},
		{Mass, 4, 40},
		{Mass, 5, 68},
	}
	for i := range typeTests {
		tt := typeTests[i]
		if off := l.TypeOffset(tt.f, tt.typ); off != tt.off {
			t.Errorf("%d) Expected TypeOffset(%s, %d) = %d, got %d.",
				i, tt.f, tt.typ, tt.off, off)
		}
	}

	if n := l.Count(Mass); n != 17 {
		t.Errorf("Expected 17 mass entries, got %d.", n)
	}

	massStart, err := l.BlockStart(Mass)
	if err != nil {
		t.Fatalf("BlockStart(Mass) failed: %s", err.Error())
	}
	expStart := int64(264 + (12*42 + 8) + (12*42 + 8) + (8*42 + 8) + 4)
	if massStart != expStart {
		t.Errorf("Expected BlockStart(Mass) = %d, got %d.", expStart, massStart)
	}

	typeStart, err := l.TypeStart(Mass, 4)
	if err != nil || typeStart != expStart+40 {
		t.Errorf("Expected TypeStart(Mass, 4) = %d, got %d (%v).",
			expStart+40, typeStart, err)
	}

	if size := l.FileSize(); size != expStart-4+17*4+8 {
		t.Errorf("Expected FileSize() = %d, got %d.", expStart-4+17*4+8, size)
	}
}

func TestLayoutBlocksAreContiguous(t *testing.T) {
	headers := []*Header{
		{NPart: [NTypes]uint32{0, 1, 0, 0, 0, 0},
			Mass: [NTypes]float64{1, 1, 1, 1, 1, 1}},
		{NPart: [NTypes]uint32{3, 0, 9, 0, 0, 100},
			Mass: [NTypes]float64{0, 0, 0, 0, 0, 0}},
		{NPart: [NTypes]uint32{0, 1 << 20, 0, 0, 0, 0},
			Mass: [NTypes]float64{0, 0, 1, 1, 1, 1}},
		{NPart: [NTypes]uint32{0, 0, 0, 0, 0, 0}},
	}

	for i, hd := range headers {
		for _, idBytes := range []int{4, 8} {
			l := NewLayout(hd, idBytes)
			prev := int64(HeaderDiskSize)
			prevStart := int64(-1)
			for _, f := range Fields {
				if !l.Present(f) {
					continue
				}
				start, err := l.BlockStart(f)
				if err != nil {
					t.Errorf("%d) BlockStart(%s) failed: %s", i, f, err.Error())
					continue
				}
				if start != prev+MarkerSize {
					t.Errorf("%d) Expected %s block at %d, got %d.",
						i, f, prev+MarkerSize, start)
				}
				if start <= prevStart {
					t.Errorf("%d) %s block starts at %d, before the previous "+
						"block at %d.", i, f, start, prevStart)
				}
				prevStart = start
				prev = start + l.BlockSize(f) + MarkerSize
			}
			if size := l.FileSize(); size != prev {
				t.Errorf("%d) Expected FileSize() = %d, got %d.", i, prev, size)
			}
		}
	}
}

func TestLayoutCheckFrames(t *testing.T) {
	ok := &Header{NPart: [NTypes]uint32{0, 1 << 20, 0, 0, 0, 0},
		Mass: [NTypes]float64{1, 1, 1, 1, 1, 1}}
	tooBig := &Header{NPart: [NTypes]uint32{0, 1 << 28, 0, 0, 0, 0},
		Mass: [NTypes]float64{1, 1, 1, 1, 1, 1}}

	if err := NewLayout(ok, 8).CheckFrames(); err != nil {
		t.Errorf("Expected %d particles to fit in frames, got %s.",
			1<<20, err.Error())
	}
	err := NewLayout(tooBig, 4).CheckFrames()
	if !errors.Is(err, g_error.ErrSizeOverflow) {
		t.Errorf("Expected ErrSizeOverflow for %d particles, got %v.", 1<<28, err)
	}
}

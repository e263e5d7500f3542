package sample

import (
	"errors"
	"testing"

	g_error "github.com/phil-mansfield/gadget-subsample/lib/error"
)

func TestNewStream(t *testing.T) {
	for _, generator := range Generators {
		a, err := NewStream(generator, 42)
		if err != nil {
			t.Fatalf("NewStream('%s') failed: %s", generator, err.Error())
		}
		b, _ := NewStream(generator, 42)
		c, _ := NewStream(generator, 43)

		same, differ := true, false
		for i := 0; i < 1000; i++ {
			x, y, z := a.Uniform(), b.Uniform(), c.Uniform()
			if x < 0 || x >= 1 {
				t.Errorf("%s: Uniform() = %g is outside [0, 1).", generator, x)
			}
			same = same && x == y
			differ = differ || x != z
		}

		if !same {
			t.Errorf("%s: streams with the same seed diverged.", generator)
		}
		if !differ {
			t.Errorf("%s: streams with different seeds were identical.",
				generator)
		}
	}

	if _, err := NewStream("ranlxd1", 42); !errors.Is(err, g_error.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for an unknown generator, got %v.",
			err)
	}
}

func TestXorshift128(t *testing.T) {
	gen := &Xorshift128{}
	gen.Seed(5)

	want := []uint32{3656013429, 504890832, 2421774901}
	for i := range want {
		if got := gen.Uint32(); got != want[i] {
			t.Errorf("%d) Expected %d, got %d.", i, want[i], got)
		}
	}

	// Seeding again restarts the sequence.
	gen.Seed(5)
	if got := gen.Uint64(); got != uint64(want[0])<<32|uint64(want[1]) {
		t.Errorf("Expected Uint64() to join the first two steps, got %x.", got)
	}

	stream := SourceStream{gen}
	n, sum := 100000, 0.0
	for i := 0; i < n; i++ {
		sum += stream.Uniform()
	}
	if mean := sum / float64(n); mean < 0.49 || mean > 0.51 {
		t.Errorf("Expected mean of xorshift draws near 0.5, got %.4f.", mean)
	}
}

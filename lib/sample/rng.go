package sample

import (
	"fmt"

	"gonum.org/v1/gonum/mathext/prng"

	g_error "github.com/phil-mansfield/gadget-subsample/lib/error"
)

// Stream is a seedable source of uniform random numbers in [0, 1). Streams
// are stateful and not thread safe: every call advances the stream.
type Stream interface {
	Uniform() float64
}

// Generator names accepted by NewStream.
const (
	MT19937    = "mt19937"
	MT19937x64 = "mt19937_64"
	Xorshift   = "xorshift"
)

// Generators lists every name accepted by NewStream.
var Generators = []string{MT19937, MT19937x64, Xorshift}

// Source is a seedable generator of 64 random bits. gonum's generators and
// Xorshift128 all satisfy it.
type Source interface {
	Seed(seed uint64)
	Uint64() uint64
}

// NewStream returns a new stream of the named generator type, seeded with
// seed. The same name and seed always give the same sequence.
func NewStream(generator string, seed uint64) (Stream, error) {
	var src Source
	switch generator {
	case MT19937:
		src = prng.NewMT19937()
	case MT19937x64:
		src = prng.NewMT19937_64()
	case Xorshift:
		src = &Xorshift128{}
	default:
		return nil, fmt.Errorf("%w: '%s' is not a recognized random "+
			"number generator. Valid generators are %v.",
			g_error.ErrInvalidConfig, generator, Generators)
	}
	src.Seed(seed)
	return SourceStream{src}, nil
}

// SourceStream converts a Source into uniform doubles.
type SourceStream struct {
	Source
}

// Uniform uses the top 53 bits of the source, so every value is exactly
// representable and 1.0 is never returned.
func (s SourceStream) Uniform() float64 {
	return float64(s.Uint64()>>11) / (1 << 53)
}

// Xorshift128 is Marsaglia's 128-bit xorshift generator. The state words
// before seeding are his reference values.
type Xorshift128 struct {
	x, y, z, w uint32
}

// Seed resets the generator. Only the low 32 bits of seed are used.
func (g *Xorshift128) Seed(seed uint64) {
	g.x, g.y, g.z, g.w = 123456789, 362436069, 521288629, uint32(seed)
}

// Uint32 advances the generator by one step.
func (g *Xorshift128) Uint32() uint32 {
	t := g.x ^ (g.x << 11)
	g.x, g.y, g.z = g.y, g.z, g.w
	g.w ^= (g.w >> 19) ^ t ^ (t >> 8)
	return g.w
}

// Uint64 joins two consecutive steps.
func (g *Xorshift128) Uint64() uint64 {
	hi := uint64(g.Uint32())
	return hi<<32 | uint64(g.Uint32())
}

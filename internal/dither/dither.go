// Package dither implements the fixed-seed, fixed-formula pseudo-random
// dither generator the streaming pipeline adds before band-limiting.
//
// The generator and its seed are part of the observable contract of the
// pipeline (spec §4.1, §9): two independent implementations that use this
// exact LCG produce bit-identical descriptor streams from the same input.
// Swapping in math/rand or any other PRNG would break that reproducibility,
// so this is intentionally hand-rolled rather than sourced from a library.
package dither

// seed is the fixed starting state every run begins from.
const seed uint32 = 0x31415926

// LCG is the 32-bit linear congruential generator used to dither the
// mono signal before filtering and to pre-warm the envelope ring.
type LCG struct {
	state uint32
}

// New returns a generator reset to the fixed seed.
func New() *LCG {
	return &LCG{state: seed}
}

// Next advances the generator and returns the next dither offset, a
// small signed value in roughly [-32, 31].
func (g *LCG) Next() int32 {
	g.state = (g.state << 4) - g.state
	g.state ^= 1
	return int32(g.state) >> 26
}

// Fill writes len(dst) dither offsets into dst (as float64, ready to add
// to a sample stream).
func (g *LCG) Fill(dst []float64) {
	for i := range dst {
		dst[i] = float64(g.Next())
	}
}

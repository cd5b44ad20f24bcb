// Package tensor implements the 4-D signed-8 discrimination lookup table
// (spec §3, §4.5, §6): index derivation from a descriptor, saturating
// accessors, and the on-disk header/checksum/codec envelope.
package tensor

import "github.com/caudio/skipcast/internal/descriptor"

// Dims are the fixed tensor dimensions (spec §3): range_dB, cycles/2,
// low_third>>4, mid_third>>4.
var Dims = [4]int{48, 24, 16, 16}

// Size is the total element count of a full-size tensor.
const Size = 48 * 24 * 16 * 16

// Tensor is a value-typed, h-major 4-D array of signed scores in
// [-99, 99]. Per spec §9 it's read-only at runtime once loaded; Set is
// only used while building.
type Tensor struct {
	dims [4]int
	data []int8
}

// New allocates a zeroed tensor of the given dimensions.
func New(dims [4]int) *Tensor {
	n := dims[0] * dims[1] * dims[2] * dims[3]
	return &Tensor{dims: dims, data: make([]int8, n)}
}

// Dims returns the tensor's dimensions.
func (t *Tensor) Dims() [4]int { return t.dims }

func (t *Tensor) offset(h, i, j, k int) int {
	return Offset(t.dims, h, i, j, k)
}

// Offset computes the flat h-major index for a 4-D position under
// dims. Exported so packages that accumulate parallel per-cell data
// (e.g. internal/trainer's Distribution) can stay index-compatible
// with Tensor without duplicating the layout formula.
func Offset(dims [4]int, h, i, j, k int) int {
	return ((h*dims[1]+i)*dims[2]+j)*dims[3] + k
}

// At returns the value at a raw (already-saturated) index.
func (t *Tensor) At(h, i, j, k int) int8 {
	return t.data[t.offset(h, i, j, k)]
}

// Set stores a value at a raw (already-saturated) index.
func (t *Tensor) Set(h, i, j, k int, v int8) {
	t.data[t.offset(h, i, j, k)] = v
}

// Index derives the saturating (h, i, j, k) tensor index from a
// descriptor at the fixed full-resolution Dims, dropping sub-resolution
// bits and clamping to the edge of each axis (spec §3's index-derivation
// formula).
func Index(r descriptor.Record) (h, i, j, k int) {
	return IndexFor(r, Dims)
}

// IndexFor is Index generalized to an arbitrary dims extent, so a
// trainer that collapsed one or more axes to a single bucket (spec
// §4.5's dimension-reduction feature) can accumulate into a
// correspondingly smaller Distribution without ever indexing out of
// its bounds: clamping against a bound of 1 always yields index 0.
func IndexFor(r descriptor.Record, dims [4]int) (h, i, j, k int) {
	h = clamp(int(r.RangeDB), dims[0])
	i = clamp(int(r.Cycles)>>1, dims[1])
	j = clamp(int(r.LowThird)>>4, dims[2])
	k = clamp(int(r.MidThird)>>4, dims[3])
	return
}

func clamp(v, bound int) int {
	if v >= bound {
		return bound - 1
	}
	return v
}

// Score looks up the signed discrimination score for a descriptor.
func (t *Tensor) Score(r descriptor.Record) int8 {
	h, i, j, k := Index(r)
	return t.At(h, i, j, k)
}

// Bytes returns the raw element bytes, h-major, for checksumming and
// encoding. The caller must not mutate the tensor while holding this.
func (t *Tensor) Bytes() []byte {
	out := make([]byte, len(t.data))
	for idx, v := range t.data {
		out[idx] = byte(v)
	}
	return out
}

// FromBytes overwrites the tensor's contents from raw element bytes in
// h-major order. len(b) must equal Size.
func (t *Tensor) FromBytes(b []byte) {
	for idx, v := range b {
		t.data[idx] = int8(v)
	}
}

// Checksum is the unsigned 8-bit sum of all tensor bytes, mod 2^32
// (spec §4.5, §6).
func Checksum(b []byte) uint32 {
	var sum uint32
	for _, v := range b {
		sum += uint32(v)
	}
	return sum
}

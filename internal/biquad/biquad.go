// Package biquad implements the two second-order IIR sections the input
// stage cascades to band-limit the mono signal before envelope analysis.
//
// Spec §9 treats the biquad filter as a replaceable black box fixed only
// by its contract — construct from coefficients, apply in place over a
// buffer — not by its internal topology. None of the audio codec
// libraries elsewhere in the retrieval pack (opus, ADPCM, FLAC bitstream
// packages) expose a general-purpose coefficient-driven filter, so this
// is a direct implementation of the standard RBJ cookbook formulas
// rather than a borrowed dependency.
package biquad

import "math"

// Coefficients holds a normalized biquad's transfer-function coefficients
// (a0 is always normalized to 1 and omitted).
type Coefficients struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// Highpass returns coefficients for a Butterworth-Q high-pass section.
// freqNorm is the cutoff frequency divided by the sample rate.
func Highpass(freqNorm float64) Coefficients {
	return cookbook(freqNorm, true)
}

// Lowpass returns coefficients for a Butterworth-Q low-pass section.
// freqNorm is the cutoff frequency divided by the sample rate.
func Lowpass(freqNorm float64) Coefficients {
	return cookbook(freqNorm, false)
}

const q = math.Sqrt2 / 2 // Butterworth Q

func cookbook(freqNorm float64, highpass bool) Coefficients {
	w0 := 2 * math.Pi * freqNorm
	sinW0, cosW0 := math.Sin(w0), math.Cos(w0)
	alpha := sinW0 / (2 * q)

	var b0, b1, b2, a0, a1, a2 float64

	if highpass {
		b0 = (1 + cosW0) / 2
		b1 = -(1 + cosW0)
		b2 = (1 + cosW0) / 2
	} else {
		b0 = (1 - cosW0) / 2
		b1 = 1 - cosW0
		b2 = (1 - cosW0) / 2
	}

	a0 = 1 + alpha
	a1 = -2 * cosW0
	a2 = 1 - alpha

	return Coefficients{
		B0: b0 / a0,
		B1: b1 / a0,
		B2: b2 / a0,
		A1: a1 / a0,
		A2: a2 / a0,
	}
}

// Biquad is one initialized second-order section with its own transposed
// direct-form-II state, mirroring the black-box init(coefs)/apply_buffer
// contract from spec §9.
type Biquad struct {
	c      Coefficients
	z1, z2 float64
}

// New initializes a section from coefficients, scaling the numerator by
// gain (the black box's init(coefs, gain) contract).
func New(c Coefficients, gain float64) *Biquad {
	return &Biquad{
		c: Coefficients{
			B0: c.B0 * gain,
			B1: c.B1 * gain,
			B2: c.B2 * gain,
			A1: c.A1,
			A2: c.A2,
		},
	}
}

// Apply filters buf in place, carrying state across calls.
func (b *Biquad) Apply(buf []float64) {
	for i, x := range buf {
		y := x*b.c.B0 + b.z1
		b.z1 = x*b.c.B1 + b.z2 - b.c.A1*y
		b.z2 = x*b.c.B2 - b.c.A2*y
		buf[i] = y
	}
}

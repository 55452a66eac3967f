package main

import (
	"math"
	"math/cmplx"
)

// FMDemodulator converts complex IQ blocks to real audio at a lower
// sample rate. It carries the last IQ sample of the previous block so
// the quadrature discriminator sees no phase discontinuity at block
// boundaries, and a partial decimation accumulator for the same reason.
type FMDemodulator struct {
	gain       float64 // sampleRate / (2*pi*deviation)
	decimation int

	prev    complex128
	havePre bool

	accum float64 // partial decimation group carried across blocks
	count int
}

// NewFMDemodulator creates a demodulator for the given IQ sample rate,
// FM deviation (Hz) and integer decimation factor. A tone at full
// deviation maps to an audio amplitude of 1.0.
func NewFMDemodulator(sampleRate int, deviation float64, decimation int) *FMDemodulator {
	return &FMDemodulator{
		gain:       float64(sampleRate) / (2 * math.Pi * deviation),
		decimation: decimation,
	}
}

// Demodulate runs the quadrature discriminator over one IQ block and
// returns the decimated audio samples it yields. The returned slice is
// freshly allocated; it may be empty for very short blocks. Saturated
// input clips to +/-1 rather than erroring.
func (d *FMDemodulator) Demodulate(block []complex64) []float64 {
	out := make([]float64, 0, len(block)/d.decimation+1)
	for _, s := range block {
		cur := complex128(s)
		if d.havePre {
			v := cmplx.Phase(cur*cmplx.Conj(d.prev)) * d.gain
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			d.accum += v
			d.count++
			if d.count == d.decimation {
				out = append(out, d.accum/float64(d.decimation))
				d.accum = 0
				d.count = 0
			}
		}
		d.prev = cur
		d.havePre = true
	}
	return out
}

// Reset discards all carried state. Used when the sample stream restarts.
func (d *FMDemodulator) Reset() {
	d.prev = 0
	d.havePre = false
	d.accum = 0
	d.count = 0
}

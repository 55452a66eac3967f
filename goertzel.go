package main

import (
	"math"

	"gonum.org/v1/gonum/dsp/window"
)

// GoertzelBank computes the normalized energy at each of the sixteen
// reference frequencies over a fixed-length windowed block. One bank is
// built per detector and reused for every block.
type GoertzelBank struct {
	blockSize int
	coefs     [NumTones]float64
	win       []float64
	winGain   float64 // coherent gain of the window, sum(w)/N
	buf       []float64
}

// NewGoertzelBank builds a bank for the given audio sample rate and
// block length. The bin index k is left fractional: rounding it to an
// integer would pull every detector off the exact ZVEI frequencies.
func NewGoertzelBank(sampleRate, blockSize int) *GoertzelBank {
	b := &GoertzelBank{
		blockSize: blockSize,
		buf:       make([]float64, blockSize),
	}
	for i, freq := range toneFrequencies {
		k := float64(blockSize) * freq / float64(sampleRate)
		b.coefs[i] = 2 * math.Cos(2*math.Pi*k/float64(blockSize))
	}
	b.win = make([]float64, blockSize)
	for i := range b.win {
		b.win[i] = 1
	}
	window.Hamming(b.win)
	sum := 0.0
	for _, w := range b.win {
		sum += w
	}
	b.winGain = sum / float64(blockSize)
	return b
}

// BlockSize returns the number of samples the bank expects per call.
func (b *GoertzelBank) BlockSize() int { return b.blockSize }

// Energies fills out with the normalized magnitude at each reference
// frequency for one block. A full-scale sine exactly on a reference
// frequency reads close to 1.0. The block must be exactly BlockSize long.
func (b *GoertzelBank) Energies(block []float64, out *[NumTones]float64) {
	for i, s := range block {
		b.buf[i] = s * b.win[i]
	}
	norm := 2 / (float64(b.blockSize) * b.winGain)
	for t := 0; t < NumTones; t++ {
		coef := b.coefs[t]
		var q1, q2 float64
		for _, s := range b.buf {
			q0 := coef*q1 - q2 + s
			q2 = q1
			q1 = q0
		}
		mag := math.Sqrt(q1*q1 + q2*q2 - q1*q2*coef)
		out[t] = mag * norm
	}
}

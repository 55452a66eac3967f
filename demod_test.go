package main

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemodulateConstantOffset(t *testing.T) {
	// A carrier offset of +1500 Hz with 3000 Hz deviation should read
	// as a steady +0.5.
	const sampleRate = 250000
	const offset = 1500.0

	iq := make([]complex64, 5000)
	for i := range iq {
		phase := 2 * math.Pi * offset * float64(i) / sampleRate
		iq[i] = complex64(cmplx.Exp(complex(0, phase)))
	}

	d := NewFMDemodulator(sampleRate, 3000, 10)
	audio := d.Demodulate(iq)
	require.NotEmpty(t, audio)
	for _, a := range audio {
		assert.InDelta(t, 0.5, a, 0.01)
	}
}

func TestDemodulateRecoversTone(t *testing.T) {
	const sampleRate = 250000
	const freq = 1530.0

	audio := makeTone(freq, sampleRate, 25000, 1.0)
	iq := modulateFM(audio, sampleRate, 3000)

	d := NewFMDemodulator(sampleRate, 3000, 10)
	out := d.Demodulate(iq)
	require.NotEmpty(t, out)

	// RMS of a unit sine is 1/sqrt(2); skip the leading edge where the
	// demodulator settles.
	sum := 0.0
	n := 0
	for _, v := range out[10:] {
		sum += v * v
		n++
	}
	rms := math.Sqrt(sum / float64(n))
	assert.InDelta(t, 1/math.Sqrt2, rms, 0.05)
}

func TestDemodulatePhaseContinuity(t *testing.T) {
	// Splitting the stream into arbitrary blocks must not change the
	// output: the previous sample carries across the boundary.
	const sampleRate = 250000
	audio := makeTone(1270, sampleRate, 20000, 1.0)
	iq := modulateFM(audio, sampleRate, 3000)

	whole := NewFMDemodulator(sampleRate, 3000, 10)
	ref := whole.Demodulate(iq)

	split := NewFMDemodulator(sampleRate, 3000, 10)
	var got []float64
	for _, block := range [][]complex64{iq[:7], iq[7:9999], iq[9999:]} {
		got = append(got, split.Demodulate(block)...)
	}

	require.Equal(t, len(ref), len(got))
	for i := range ref {
		assert.InDelta(t, ref[i], got[i], 1e-12)
	}
}

func TestDemodulateClipsSaturatedInput(t *testing.T) {
	// A 12 kHz offset is four times the configured deviation; the
	// discriminator output must clip to 1.0 instead of exceeding it.
	const sampleRate = 250000
	const offset = 12000.0

	iq := make([]complex64, 2000)
	for i := range iq {
		phase := 2 * math.Pi * offset * float64(i) / sampleRate
		iq[i] = complex64(cmplx.Exp(complex(0, phase)))
	}

	d := NewFMDemodulator(sampleRate, 3000, 10)
	audio := d.Demodulate(iq)
	require.NotEmpty(t, audio)
	for _, a := range audio {
		assert.LessOrEqual(t, a, 1.0)
		assert.InDelta(t, 1.0, a, 0.01)
	}
}

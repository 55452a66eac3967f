package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGoertzelEnergiesOnFrequency(t *testing.T) {
	const sampleRate = 25000
	const blockSize = 512

	bank := NewGoertzelBank(sampleRate, blockSize)

	for s := ToneSymbol(0); s < NumTones; s++ {
		tone := makeTone(s.Frequency(), sampleRate, blockSize, 1.0)

		var energies [NumTones]float64
		bank.Energies(tone, &energies)

		// Full-scale on-frequency sine reads close to 1.0 and clearly
		// dominates every other detector.
		assert.InDelta(t, 1.0, energies[s], 0.15, "symbol %s", s)
		for other := ToneSymbol(0); other < NumTones; other++ {
			if other == s {
				continue
			}
			assert.Less(t, energies[other], energies[s]/3,
				"symbol %s leaked into %s", s, other)
		}
	}
}

func TestGoertzelScalesWithAmplitude(t *testing.T) {
	bank := NewGoertzelBank(25000, 512)
	tone := makeTone(1400, 25000, 512, 0.5)

	var energies [NumTones]float64
	bank.Energies(tone, &energies)
	assert.InDelta(t, 0.5, energies[4], 0.1)
}

func TestGoertzelSilence(t *testing.T) {
	bank := NewGoertzelBank(25000, 512)
	silence := make([]float64, 512)

	var energies [NumTones]float64
	bank.Energies(silence, &energies)
	for s, e := range energies {
		assert.Zero(t, e, "symbol %d", s)
	}
}

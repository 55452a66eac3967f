package main

import "time"

// ToneObservation is the detector's verdict for one audio block:
// either a single identified tone or NoSymbol. Offset is the position
// of the block start in the audio stream, derived from the sample
// counter so identical input always yields identical observations.
type ToneObservation struct {
	Symbol ToneSymbol
	Offset time.Duration
	Energy float64 // normalized energy of the winning tone (0 for NoSymbol)
}

// ToneDetector slices the demodulated audio stream into fixed blocks
// and runs the Goertzel bank over each. A block maps to a symbol only
// when the strongest tone is both above the absolute threshold and
// sufficiently ahead of the runner-up.
type ToneDetector struct {
	bank      *GoertzelBank
	threshold float64
	margin    float64

	sampleRate int
	samplePos  uint64 // absolute position of pending[0] in the audio stream

	pending []float64
}

// NewToneDetector creates a detector over the given audio sample rate.
func NewToneDetector(sampleRate int, cfg *DecoderConfig) *ToneDetector {
	return &ToneDetector{
		bank:       NewGoertzelBank(sampleRate, cfg.BlockSize),
		threshold:  cfg.DetectionThreshold,
		margin:     cfg.DiscriminationMargin,
		sampleRate: sampleRate,
		pending:    make([]float64, 0, cfg.BlockSize),
	}
}

// Process appends audio to the pending buffer and returns one
// observation per completed block. Leftover samples are carried to the
// next call, so block boundaries are independent of how the demodulator
// chunks its output.
func (d *ToneDetector) Process(audio []float64) []ToneObservation {
	var obs []ToneObservation
	d.pending = append(d.pending, audio...)
	blockSize := d.bank.BlockSize()
	for len(d.pending) >= blockSize {
		obs = append(obs, d.classify(d.pending[:blockSize]))
		d.pending = d.pending[blockSize:]
		d.samplePos += uint64(blockSize)
	}
	if len(d.pending) > 0 && cap(d.pending) > 2*blockSize {
		d.pending = append(make([]float64, 0, blockSize), d.pending...)
	}
	return obs
}

func (d *ToneDetector) classify(block []float64) ToneObservation {
	var energies [NumTones]float64
	d.bank.Energies(block, &energies)

	best, runnerUp := NoSymbol, NoSymbol
	for t := ToneSymbol(0); t < NumTones; t++ {
		switch {
		case best == NoSymbol || energies[t] > energies[best]:
			runnerUp = best
			best = t
		case runnerUp == NoSymbol || energies[t] > energies[runnerUp]:
			runnerUp = t
		}
	}

	ob := ToneObservation{
		Symbol: NoSymbol,
		Offset: sampleOffset(d.samplePos, d.sampleRate),
	}
	if energies[best] < d.threshold {
		return ob
	}
	// A tie, or anything short of the margin, is ambiguous and rejected.
	if energies[runnerUp] > 0 && energies[best] < d.margin*energies[runnerUp] {
		return ob
	}
	ob.Symbol = best
	ob.Energy = energies[best]
	return ob
}

// sampleOffset converts a sample count to a stream offset without
// overflowing on long runs (pos*1e9 would wrap after a few days).
func sampleOffset(pos uint64, rate int) time.Duration {
	r := uint64(rate)
	return time.Duration(pos/r)*time.Second +
		time.Duration(pos%r)*time.Second/time.Duration(r)
}

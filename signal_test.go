package main

import (
	"errors"
	"io"
	"math"
	"sync"
)

// Test signal helpers shared by the demodulator, detector and pipeline
// tests. All synthetic signals are fully deterministic.

func defaultTestConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.SDR.Frequency = 85500000
	return cfg
}

// makeTone generates n samples of a sine at freq and the given
// amplitude, starting at phase zero.
func makeTone(freq float64, sampleRate, n int, amplitude float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

// modulateFM frequency-modulates an audio signal onto a complex
// baseband carrier. An audio amplitude of 1.0 swings the instantaneous
// frequency by the full deviation, matching the demodulator's scaling.
func modulateFM(audio []float64, sampleRate int, deviation float64) []complex64 {
	out := make([]complex64, len(audio))
	phase := 0.0
	for i, a := range audio {
		phase += 2 * math.Pi * a * deviation / float64(sampleRate)
		out[i] = complex(float32(math.Cos(phase)), float32(math.Sin(phase)))
	}
	return out
}

// toneSequenceAudio builds an audio stream at the IQ sample rate:
// the given tones played back to back for toneSamples each, followed
// by silenceSamples of silence.
func toneSequenceAudio(symbols []ToneSymbol, sampleRate, toneSamples, silenceSamples int) []float64 {
	audio := make([]float64, 0, len(symbols)*toneSamples+silenceSamples)
	for _, s := range symbols {
		audio = append(audio, makeTone(s.Frequency(), sampleRate, toneSamples, 1.0)...)
	}
	return append(audio, make([]float64, silenceSamples)...)
}

// chunkIQ splits an IQ stream into fixed-size read blocks, keeping the
// short tail.
func chunkIQ(iq []complex64, blockLen int) [][]complex64 {
	var blocks [][]complex64
	for len(iq) > blockLen {
		blocks = append(blocks, iq[:blockLen])
		iq = iq[blockLen:]
	}
	if len(iq) > 0 {
		blocks = append(blocks, iq)
	}
	return blocks
}

// scriptedSource replays a fixed list of IQ blocks. When the script is
// exhausted it either calls onExhausted once and keeps returning
// silence, or returns io.EOF. The callback makes shutdown tests
// deterministic: it cancels the pipeline context before the next pull.
type scriptedSource struct {
	blocks      [][]complex64
	idx         int
	onExhausted func()
	silence     []complex64
}

func (s *scriptedSource) NextBlock() ([]complex64, error) {
	if s.idx < len(s.blocks) {
		b := s.blocks[s.idx]
		s.idx++
		return b, nil
	}
	if s.onExhausted != nil {
		s.onExhausted()
		s.onExhausted = nil
		if s.silence == nil {
			s.silence = make([]complex64, 256)
			for i := range s.silence {
				s.silence[i] = 1
			}
		}
		return s.silence, nil
	}
	return nil, io.EOF
}

func (s *scriptedSource) Close() error { return nil }

var errDeviceGone = errors.New("device gone")

// failingSource simulates a lost device on the first read.
type failingSource struct{}

func (f *failingSource) NextBlock() ([]complex64, error) { return nil, errDeviceGone }
func (f *failingSource) Close() error                    { return nil }

// memorySink collects records for assertions.
type memorySink struct {
	mu      sync.Mutex
	records []SequenceRecord
}

func (m *memorySink) WriteRecord(rec SequenceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memorySink) Records() []SequenceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SequenceRecord(nil), m.records...)
}

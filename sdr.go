package main

import (
	"fmt"
	"log"

	rtl "github.com/jpoirier/gortlsdr"
)

// SampleSource delivers successive blocks of complex baseband samples.
// NextBlock returns io.EOF when the stream ends cleanly; any other
// error means the source failed. Tests substitute synthetic sources.
type SampleSource interface {
	NextBlock() ([]complex64, error)
	Close() error
}

// RTLSDRSource reads IQ blocks from an RTL-SDR dongle via librtlsdr.
type RTLSDRSource struct {
	dev     *rtl.Context
	rawBuf  []byte
	samples []complex64
}

// NewRTLSDRSource opens device 0 and configures it from the SDR
// settings: sample rate, center frequency, gain mode and buffering.
func NewRTLSDRSource(cfg *SDRConfig) (*RTLSDRSource, error) {
	dev, err := rtl.Open(0)
	if err != nil {
		return nil, fmt.Errorf("failed to open RTL-SDR device: %w", err)
	}

	if err := dev.SetSampleRate(cfg.SampleRate); err != nil {
		dev.Close()
		return nil, fmt.Errorf("failed to set sample rate: %w", err)
	}
	if err := dev.SetCenterFreq(int(cfg.Frequency)); err != nil {
		dev.Close()
		return nil, fmt.Errorf("failed to set center frequency: %w", err)
	}

	if cfg.Gain.Auto {
		if err := dev.SetTunerGainMode(false); err != nil {
			dev.Close()
			return nil, fmt.Errorf("failed to enable tuner AGC: %w", err)
		}
		dev.SetAgcMode(true)
		log.Printf("SDR: Tuner gain set to auto")
	} else {
		if err := dev.SetTunerGainMode(true); err != nil {
			dev.Close()
			return nil, fmt.Errorf("failed to set manual gain mode: %w", err)
		}
		// librtlsdr wants tenths of a dB
		if err := dev.SetTunerGain(int(cfg.Gain.DB * 10)); err != nil {
			dev.Close()
			return nil, fmt.Errorf("failed to set tuner gain: %w", err)
		}
		log.Printf("SDR: Tuner gain set to %.1f dB", cfg.Gain.DB)
	}

	// Flush stale samples accumulated before configuration finished.
	if err := dev.ResetBuffer(); err != nil {
		dev.Close()
		return nil, fmt.Errorf("failed to reset device buffer: %w", err)
	}

	log.Printf("SDR: Device opened at %.4f MHz, %d S/s, %d samples per read",
		float64(cfg.Frequency)/1e6, cfg.SampleRate, cfg.BufferSize)

	return &RTLSDRSource{
		dev:     dev,
		rawBuf:  make([]byte, cfg.BufferSize*2),
		samples: make([]complex64, cfg.BufferSize),
	}, nil
}

// NextBlock performs one synchronous read and converts the unsigned
// 8-bit IQ pairs to complex64 in [-1, 1]. The returned slice is reused
// by the next call; the pipeline consumes it before pulling again.
func (s *RTLSDRSource) NextBlock() ([]complex64, error) {
	n, err := s.dev.ReadSync(s.rawBuf, len(s.rawBuf))
	if err != nil {
		return nil, fmt.Errorf("device read failed: %w", err)
	}
	n -= n % 2
	if n == 0 {
		return s.samples[:0], nil
	}
	for i := 0; i < n/2; i++ {
		re := (float32(s.rawBuf[2*i]) - 127.5) / 127.5
		im := (float32(s.rawBuf[2*i+1]) - 127.5) / 127.5
		s.samples[i] = complex(re, im)
	}
	return s.samples[:n/2], nil
}

// Close releases the device.
func (s *RTLSDRSource) Close() error {
	return s.dev.Close()
}

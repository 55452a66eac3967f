package main

import (
	"sync/atomic"
	"time"
)

// Stats holds the monotonic counters for one process lifetime. All
// fields are updated atomically so the decode path never takes a lock
// and Snapshot never blocks a producer.
type Stats struct {
	started time.Time

	observations atomic.Uint64
	detections   atomic.Uint64
	perSymbol    [NumTones]atomic.Uint64
	completed    atomic.Uint64
	aborted      atomic.Uint64
	sinkDropped  atomic.Uint64

	lastDetection atomic.Int64 // unix nanos, 0 until the first detection
}

// StatsSnapshot is an immutable copy of the counters at one instant.
type StatsSnapshot struct {
	Started       time.Time        `json:"started"`
	Uptime        float64          `json:"uptime_seconds"`
	Observations  uint64           `json:"observations"`
	Detections    uint64           `json:"detections"`
	PerSymbol     [NumTones]uint64 `json:"per_symbol"`
	Completed     uint64           `json:"sequences_completed"`
	Aborted       uint64           `json:"sequences_aborted"`
	SinkDropped   uint64           `json:"sink_dropped"`
	LastDetection time.Time        `json:"last_detection,omitempty"`
}

// NewStats creates a counter set anchored at the given start time.
func NewStats(started time.Time) *Stats {
	return &Stats{started: started}
}

// CountObservation records one detector block verdict. Detected tones
// additionally bump the per-symbol counter and the last-detection mark.
func (s *Stats) CountObservation(ob ToneObservation, at time.Time) {
	s.observations.Add(1)
	if ob.Symbol.Valid() {
		s.detections.Add(1)
		s.perSymbol[ob.Symbol].Add(1)
		s.lastDetection.Store(at.UnixNano())
	}
}

// CountCompleted records one emitted sequence.
func (s *Stats) CountCompleted() { s.completed.Add(1) }

// CountAborted records one discarded partial sequence.
func (s *Stats) CountAborted() { s.aborted.Add(1) }

// CountSinkDropped records one record lost to a full sink queue.
func (s *Stats) CountSinkDropped() { s.sinkDropped.Add(1) }

// Snapshot returns a consistent-enough copy of all counters without
// blocking writers. Individual counters are exact; cross-counter skew
// of one block is acceptable for reporting.
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		Started:      s.started,
		Uptime:       time.Since(s.started).Seconds(),
		Observations: s.observations.Load(),
		Detections:   s.detections.Load(),
		Completed:    s.completed.Load(),
		Aborted:      s.aborted.Load(),
		SinkDropped:  s.sinkDropped.Load(),
	}
	for i := range s.perSymbol {
		snap.PerSymbol[i] = s.perSymbol[i].Load()
	}
	if ns := s.lastDetection.Load(); ns != 0 {
		snap.LastDetection = time.Unix(0, ns)
	}
	return snap
}

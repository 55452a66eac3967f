package main

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatsCounters(t *testing.T) {
	start := time.Now()
	s := NewStats(start)

	s.CountObservation(ToneObservation{Symbol: NoSymbol}, start)
	s.CountObservation(ToneObservation{Symbol: 3, Energy: 0.8}, start.Add(time.Second))
	s.CountObservation(ToneObservation{Symbol: 3, Energy: 0.7}, start.Add(2*time.Second))
	s.CountCompleted()
	s.CountAborted()
	s.CountSinkDropped()

	snap := s.Snapshot()
	assert.Equal(t, uint64(3), snap.Observations)
	assert.Equal(t, uint64(2), snap.Detections)
	assert.Equal(t, uint64(2), snap.PerSymbol[3])
	assert.Equal(t, uint64(0), snap.PerSymbol[4])
	assert.Equal(t, uint64(1), snap.Completed)
	assert.Equal(t, uint64(1), snap.Aborted)
	assert.Equal(t, uint64(1), snap.SinkDropped)
	assert.True(t, snap.LastDetection.Equal(start.Add(2*time.Second)))
}

func TestStatsNoDetectionYet(t *testing.T) {
	s := NewStats(time.Now())
	assert.True(t, s.Snapshot().LastDetection.IsZero())
}

func TestStatsConcurrentSnapshot(t *testing.T) {
	// Snapshots must never block or race with producers.
	s := NewStats(time.Now())
	const perWorker = 1000

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			at := time.Now()
			for i := 0; i < perWorker; i++ {
				s.CountObservation(ToneObservation{Symbol: ToneSymbol(i % NumTones), Energy: 0.5}, at)
				s.CountCompleted()
			}
		}()
	}
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				s.Snapshot()
			}
		}
	}()
	wg.Wait()
	close(done)

	snap := s.Snapshot()
	assert.Equal(t, uint64(4*perWorker), snap.Observations)
	assert.Equal(t, uint64(4*perWorker), snap.Detections)
	assert.Equal(t, uint64(4*perWorker), snap.Completed)
}

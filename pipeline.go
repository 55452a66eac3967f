package main

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"
)

// RecordSink receives completed sequence records. Implementations may
// block on I/O; the pipeline isolates them behind a bounded queue.
type RecordSink interface {
	WriteRecord(rec SequenceRecord) error
}

// sinkQueueDepth bounds the record queue between the decode path and
// the sink writer. Records arrive at most every few hundred
// milliseconds, so a small queue only fills when a sink wedges.
const sinkQueueDepth = 64

// Pipeline wires the stages together: source blocks are demodulated,
// detected and decoded in order on a single goroutine, while a second
// goroutine services the sinks. The decode path never blocks on sink
// I/O; a full queue drops the record and counts it.
type Pipeline struct {
	source SampleSource
	demod  *FMDemodulator
	det    *ToneDetector
	seq    *SequenceDecoder
	stats  *Stats
	sinks  []RecordSink

	base            time.Time
	displayInterval time.Duration

	queue chan SequenceRecord
}

// NewPipeline assembles the decode chain. base anchors all record
// timestamps; two pipelines fed the same samples and base produce
// identical records.
func NewPipeline(cfg *Config, source SampleSource, stats *Stats, base time.Time, sinks ...RecordSink) *Pipeline {
	p := &Pipeline{
		source:          source,
		demod:           NewFMDemodulator(cfg.SDR.SampleRate, cfg.SDR.Deviation, cfg.Decimation()),
		det:             NewToneDetector(cfg.Decoder.AudioSampleRate, &cfg.Decoder),
		stats:           stats,
		sinks:           sinks,
		base:            base,
		displayInterval: time.Duration(cfg.Monitoring.DisplayIntervalSec) * time.Second,
		queue:           make(chan SequenceRecord, sinkQueueDepth),
	}
	p.seq = NewSequenceDecoder(&cfg.Decoder, base, p.onComplete, p.onAbort)
	return p
}

func (p *Pipeline) onComplete(rec SequenceRecord) {
	p.stats.CountCompleted()
	log.Printf("Decoder: sequence %s (confidence %.2f)", rec.Code, rec.Confidence)
	select {
	case p.queue <- rec:
	default:
		p.stats.CountSinkDropped()
		log.Printf("Decoder WARNING: sink queue full, dropped sequence %s", rec.Code)
	}
}

func (p *Pipeline) onAbort(partial string) {
	p.stats.CountAborted()
	log.Printf("Decoder: aborted partial sequence %q", partial)
}

// Run pulls sample blocks until the stream ends or the context is
// cancelled, then drains. A clean end of stream (io.EOF) and
// cancellation both return nil; any other source error is returned
// after the drain.
func (p *Pipeline) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.serviceSinks()
	}()

	if p.displayInterval > 0 {
		go p.statusLoop(ctx)
	}

	var runErr error
	for {
		if ctx.Err() != nil {
			break
		}
		block, err := p.source.NextBlock()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				runErr = err
			}
			break
		}
		p.processBlock(block)
	}

	// Drain: a partial sequence at shutdown is counted, never emitted.
	p.seq.ForceAbort()
	close(p.queue)
	wg.Wait()
	return runErr
}

func (p *Pipeline) processBlock(block []complex64) {
	audio := p.demod.Demodulate(block)
	for _, ob := range p.det.Process(audio) {
		p.stats.CountObservation(ob, p.base.Add(ob.Offset))
		p.seq.Observe(ob)
	}
}

func (p *Pipeline) serviceSinks() {
	for rec := range p.queue {
		for _, sink := range p.sinks {
			if err := sink.WriteRecord(rec); err != nil {
				log.Printf("Sink ERROR: failed to write sequence %s: %v", rec.Code, err)
			}
		}
	}
}

func (p *Pipeline) statusLoop(ctx context.Context) {
	ticker := time.NewTicker(p.displayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := p.stats.Snapshot()
			log.Printf("Status: uptime %s, %d blocks, %d detections, %d sequences, %d aborts, %d drops",
				time.Duration(snap.Uptime*float64(time.Second)).Round(time.Second),
				snap.Observations, snap.Detections, snap.Completed, snap.Aborted, snap.SinkDropped)
		}
	}
}

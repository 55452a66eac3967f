package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/process"
)

// PrometheusMetrics holds all Prometheus metric collectors for decoder
// and resource data. Gauges mirror the stats counters and are refreshed
// from snapshots by a ticker goroutine, so the decode path never
// touches a collector directly.
type PrometheusMetrics struct {
	// Decoder metrics
	observationsTotal  prometheus.Gauge     // Audio blocks classified since start
	detectionsTotal    prometheus.Gauge     // Blocks with an identified tone
	detectionsBySymbol *prometheus.GaugeVec // Detections per tone (with 'symbol' label)
	sequencesTotal     prometheus.Gauge     // Completed five-tone sequences
	abortsTotal        prometheus.Gauge     // Discarded partial sequences
	sinkDropsTotal     prometheus.Gauge     // Records lost to a full sink queue
	lastDetectionTime  prometheus.Gauge     // Unix timestamp of last tone detection
	uptimeSeconds      prometheus.Gauge     // Seconds since process start

	// Resource metrics
	goroutineCount    prometheus.Gauge // Current number of goroutines
	memoryAllocBytes  prometheus.Gauge // Current memory allocated in bytes
	processCPUPercent prometheus.Gauge // Process CPU usage percent
	processRSSBytes   prometheus.Gauge // Process resident set size in bytes

	proc *process.Process
}

// NewPrometheusMetrics creates and registers all Prometheus metrics
func NewPrometheusMetrics() *PrometheusMetrics {
	pm := &PrometheusMetrics{
		observationsTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "zvei_observations_total",
			Help: "Total detector blocks classified since start",
		}),
		detectionsTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "zvei_detections_total",
			Help: "Total blocks in which a tone was identified",
		}),
		detectionsBySymbol: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "zvei_detections_by_symbol_total",
				Help: "Tone detections per symbol",
			},
			[]string{"symbol"},
		),
		sequencesTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "zvei_sequences_total",
			Help: "Completed five-tone sequences",
		}),
		abortsTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "zvei_sequence_aborts_total",
			Help: "Partial sequences discarded by timing rules or shutdown",
		}),
		sinkDropsTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "zvei_sink_drops_total",
			Help: "Records dropped because the sink queue was full",
		}),
		lastDetectionTime: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "zvei_last_detection_timestamp_seconds",
			Help: "Unix timestamp of the most recent tone detection",
		}),
		uptimeSeconds: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "zvei_uptime_seconds",
			Help: "Seconds since process start",
		}),
		goroutineCount: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "zvei_goroutines",
			Help: "Current number of goroutines",
		}),
		memoryAllocBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "zvei_memory_alloc_bytes",
			Help: "Currently allocated heap bytes",
		}),
		processCPUPercent: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "zvei_process_cpu_percent",
			Help: "Process CPU usage percent",
		}),
		processRSSBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "zvei_process_rss_bytes",
			Help: "Process resident set size in bytes",
		}),
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		pm.proc = proc
	} else {
		log.Printf("Metrics: process stats unavailable: %v", err)
	}

	return pm
}

// StartUpdater refreshes all gauges from stats snapshots at the given
// interval until the context is cancelled.
func (pm *PrometheusMetrics) StartUpdater(ctx context.Context, stats *Stats, interval time.Duration) {
	if pm == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		pm.update(stats.Snapshot())
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pm.update(stats.Snapshot())
			}
		}
	}()
}

func (pm *PrometheusMetrics) update(snap StatsSnapshot) {
	pm.observationsTotal.Set(float64(snap.Observations))
	pm.detectionsTotal.Set(float64(snap.Detections))
	for s := ToneSymbol(0); s < NumTones; s++ {
		pm.detectionsBySymbol.WithLabelValues(s.String()).Set(float64(snap.PerSymbol[s]))
	}
	pm.sequencesTotal.Set(float64(snap.Completed))
	pm.abortsTotal.Set(float64(snap.Aborted))
	pm.sinkDropsTotal.Set(float64(snap.SinkDropped))
	pm.uptimeSeconds.Set(snap.Uptime)
	if !snap.LastDetection.IsZero() {
		pm.lastDetectionTime.Set(float64(snap.LastDetection.Unix()))
	}

	pm.updateResourceMetrics()
}

// updateResourceMetrics updates runtime and process resource metrics
func (pm *PrometheusMetrics) updateResourceMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	pm.goroutineCount.Set(float64(runtime.NumGoroutine()))
	pm.memoryAllocBytes.Set(float64(m.Alloc))

	if pm.proc == nil {
		return
	}
	if pct, err := pm.proc.CPUPercent(); err == nil {
		pm.processCPUPercent.Set(pct)
	}
	if mem, err := pm.proc.MemoryInfo(); err == nil {
		pm.processRSSBytes.Set(float64(mem.RSS))
	}
}

// StartMetricsServer serves /metrics on the configured listen address.
func StartMetricsServer(ctx context.Context, listen string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: listen, Handler: mux}
	go func() {
		log.Printf("Metrics: serving /metrics on %s", listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Metrics ERROR: listener failed: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()
}

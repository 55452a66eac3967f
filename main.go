package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Global debug flag
var DebugMode bool

// Global start time for process uptime tracking
var StartTime time.Time

func main() {
	// Record start time for uptime tracking
	StartTime = time.Now()

	// Parse command line flags
	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	frequency := flag.Float64("frequency", 0, "Center frequency in MHz (overrides config)")
	gain := flag.String("gain", "", "Tuner gain: auto or dB 0-50 (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Set global debug mode - check environment variable first, then CLI flag
	DebugMode = *debug
	if debugEnv := os.Getenv("DEBUG"); debugEnv != "" {
		DebugMode = debugEnv == "true" || debugEnv == "1" || debugEnv == "yes"
	}
	if DebugMode {
		log.Println("Debug mode enabled")
	}

	// Load configuration
	config, err := LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// CLI overrides beat file values
	if *frequency != 0 {
		config.SDR.Frequency = uint64(*frequency * 1e6)
	}
	if *gain != "" {
		parsed, err := ParseGain(*gain)
		if err != nil {
			log.Fatalf("Invalid -gain flag: %v", err)
		}
		config.SDR.Gain = parsed
	}

	if err := config.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Printf("Starting ZVEI monitor on %.4f MHz (gain %s)", config.FrequencyMHz(), config.SDR.Gain)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stats := NewStats(StartTime)

	// Prometheus metrics endpoint
	var metrics *PrometheusMetrics
	if config.Prometheus.Enabled {
		metrics = NewPrometheusMetrics()
		metrics.StartUpdater(ctx, stats, 10*time.Second)
		StartMetricsServer(ctx, config.Prometheus.Listen)
	}

	// Detection log files
	signalLogger, err := NewSignalLogger(&config.Logging, config.FrequencyMHz(), StartTime)
	if err != nil {
		log.Fatalf("Failed to open signal logs: %v", err)
	}
	defer signalLogger.Close()
	for _, path := range signalLogger.Paths() {
		log.Printf("Logging detections to %s", path)
	}

	sinks := []RecordSink{signalLogger}

	// Optional MQTT publishing
	if config.MQTT.Enabled {
		publisher, err := NewMQTTPublisher(&config.MQTT, stats)
		if err != nil {
			log.Fatalf("Failed to set up MQTT: %v", err)
		}
		publisher.StartPublisher(ctx)
		sinks = append(sinks, publisher)
	}

	// RTL-SDR device
	source, err := NewRTLSDRSource(&config.SDR)
	if err != nil {
		log.Fatalf("Failed to open SDR: %v", err)
	}
	defer source.Close()

	// Shutdown on SIGINT/SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received %v, shutting down...", sig)
		cancel()
	}()

	pipeline := NewPipeline(config, source, stats, StartTime, sinks...)
	runErr := pipeline.Run(ctx)

	printSummary(stats, signalLogger.Paths())

	if runErr != nil {
		log.Fatalf("Acquisition failed: %v", runErr)
	}
}

// printSummary logs the end-of-session totals.
func printSummary(stats *Stats, logPaths []string) {
	snap := stats.Snapshot()
	log.Printf("Session summary: uptime %s",
		time.Duration(snap.Uptime*float64(time.Second)).Round(time.Second))
	log.Printf("  blocks classified: %d, tone detections: %d", snap.Observations, snap.Detections)
	log.Printf("  sequences decoded: %d, aborted: %d, sink drops: %d",
		snap.Completed, snap.Aborted, snap.SinkDropped)
	for s := ToneSymbol(0); s < NumTones; s++ {
		if snap.PerSymbol[s] > 0 {
			log.Printf("  tone %s: %d", s, snap.PerSymbol[s])
		}
	}
	for _, path := range logPaths {
		log.Printf("  log file: %s", path)
	}
}

package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	SDR        SDRConfig        `yaml:"sdr"`
	Decoder    DecoderConfig    `yaml:"decoder"`
	Logging    LoggingConfig    `yaml:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Prometheus PrometheusConfig `yaml:"prometheus"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
}

// SDRConfig contains receiver tuning settings
type SDRConfig struct {
	Frequency  uint64      `yaml:"frequency"`   // Center frequency in Hz (required)
	SampleRate int         `yaml:"sample_rate"` // IQ sample rate in Hz
	Gain       GainSetting `yaml:"gain"`        // Tuner gain: "auto" or dB (0-50)
	BufferSize int         `yaml:"buffer_size"` // IQ samples per device read
	Deviation  float64     `yaml:"deviation"`   // FM deviation in Hz used to scale the discriminator
}

// DecoderConfig contains tone detection and sequence assembly settings
type DecoderConfig struct {
	AudioSampleRate      int     `yaml:"audio_sample_rate"`      // Audio rate after decimation; must divide sample_rate
	BlockSize            int     `yaml:"block_size"`             // Detector window length in audio samples
	DetectionThreshold   float64 `yaml:"detection_threshold"`    // Minimum normalized tone energy (0-1)
	DiscriminationMargin float64 `yaml:"discrimination_margin"`  // Strongest tone must exceed runner-up by this ratio
	RepeatSuppressionMs  int     `yaml:"repeat_suppression_ms"`  // Same-symbol observations within this window collapse to one digit
	MaxInterDigitGapMs   int     `yaml:"max_inter_digit_gap_ms"` // A new digit later than this aborts the sequence
	SilenceTimeoutMs     int     `yaml:"silence_timeout_ms"`     // Silence longer than this aborts a partial sequence
}

// LoggingConfig contains detection log file settings
type LoggingConfig struct {
	Dir     string   `yaml:"dir"`     // Directory for detection log files
	Formats []string `yaml:"formats"` // Any of: json, csv, text
}

// MonitoringConfig contains periodic status reporting settings
type MonitoringConfig struct {
	DisplayIntervalSec int `yaml:"display_interval_sec"` // Seconds between status log lines (0 = off)
}

// PrometheusConfig contains the /metrics listener settings
type PrometheusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"` // e.g. ":9090"
}

// MQTTConfig contains MQTT publishing settings
type MQTTConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Broker          string        `yaml:"broker"` // e.g. tcp://localhost:1883
	TopicPrefix     string        `yaml:"topic_prefix"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	PublishInterval int           `yaml:"publish_interval"` // Seconds between stats publications
	TLS             MQTTTLSConfig `yaml:"tls"`
}

// MQTTTLSConfig contains TLS settings for the MQTT connection
type MQTTTLSConfig struct {
	Enabled    bool   `yaml:"enabled"`
	CACert     string `yaml:"ca_cert"`
	ClientCert string `yaml:"client_cert"`
	ClientKey  string `yaml:"client_key"`
}

// GainSetting represents a tuner gain that is either automatic or a
// fixed value in dB. In YAML it is written as "auto" or a number.
type GainSetting struct {
	Auto bool
	DB   float64
}

// UnmarshalYAML accepts "auto" or a numeric gain value.
func (g *GainSetting) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseGain(raw)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// MarshalYAML renders the gain back as "auto" or a number.
func (g GainSetting) MarshalYAML() (interface{}, error) {
	if g.Auto {
		return "auto", nil
	}
	return g.DB, nil
}

func (g GainSetting) String() string {
	if g.Auto {
		return "auto"
	}
	return strconv.FormatFloat(g.DB, 'f', -1, 64)
}

// ParseGain parses a gain value from the config file or CLI:
// "auto" or a dB value in the range 0-50. An empty string means auto.
func ParseGain(s string) (GainSetting, error) {
	if s == "" || s == "auto" {
		return GainSetting{Auto: true}, nil
	}
	db, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return GainSetting{}, fmt.Errorf("invalid gain %q: use \"auto\" or a number", s)
	}
	if db < 0 || db > 50 {
		return GainSetting{}, fmt.Errorf("gain %.1f dB out of range (0-50)", db)
	}
	return GainSetting{DB: db}, nil
}

// LoadConfig reads and parses the YAML configuration file, applying
// defaults for any unset fields.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

// applyDefaults fills in defaults for fields left at their zero value.
func (c *Config) applyDefaults() {
	if c.SDR.SampleRate == 0 {
		c.SDR.SampleRate = 250000
	}
	if c.SDR.BufferSize == 0 {
		c.SDR.BufferSize = 65536
	}
	if c.SDR.Deviation == 0 {
		c.SDR.Deviation = 3000
	}
	if c.Decoder.AudioSampleRate == 0 {
		c.Decoder.AudioSampleRate = 25000
	}
	if c.Decoder.BlockSize == 0 {
		c.Decoder.BlockSize = 512
	}
	if c.Decoder.DetectionThreshold == 0 {
		c.Decoder.DetectionThreshold = 0.1
	}
	if c.Decoder.DiscriminationMargin == 0 {
		c.Decoder.DiscriminationMargin = 2.0
	}
	if c.Decoder.RepeatSuppressionMs == 0 {
		c.Decoder.RepeatSuppressionMs = 100
	}
	if c.Decoder.MaxInterDigitGapMs == 0 {
		c.Decoder.MaxInterDigitGapMs = 250
	}
	if c.Decoder.SilenceTimeoutMs == 0 {
		c.Decoder.SilenceTimeoutMs = 400
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = "logs"
	}
	if len(c.Logging.Formats) == 0 {
		c.Logging.Formats = []string{"json", "csv", "text"}
	}
	if c.Monitoring.DisplayIntervalSec == 0 {
		c.Monitoring.DisplayIntervalSec = 30
	}
	if c.Prometheus.Listen == "" {
		c.Prometheus.Listen = ":9090"
	}
	if c.MQTT.Broker == "" {
		c.MQTT.Broker = "tcp://localhost:1883"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "zvei"
	}
	if c.MQTT.PublishInterval == 0 {
		c.MQTT.PublishInterval = 60
	}
}

// Validate checks if the configuration is valid. The pipeline must not
// start with an invalid configuration, so validation failures are fatal
// before any sample is pulled.
func (c *Config) Validate() error {
	if c.SDR.Frequency == 0 {
		return fmt.Errorf("sdr.frequency is required")
	}
	if c.SDR.SampleRate < 225000 {
		return fmt.Errorf("sdr.sample_rate must be at least 225000 (RTL-SDR minimum)")
	}
	if c.SDR.BufferSize < 512 {
		return fmt.Errorf("sdr.buffer_size must be at least 512")
	}
	if c.SDR.Deviation <= 0 {
		return fmt.Errorf("sdr.deviation must be positive")
	}
	if c.Decoder.AudioSampleRate < 8000 {
		return fmt.Errorf("decoder.audio_sample_rate must be at least 8000")
	}
	if c.SDR.SampleRate%c.Decoder.AudioSampleRate != 0 {
		return fmt.Errorf("sdr.sample_rate (%d) must be an integer multiple of decoder.audio_sample_rate (%d)",
			c.SDR.SampleRate, c.Decoder.AudioSampleRate)
	}
	if c.Decoder.BlockSize < 64 {
		return fmt.Errorf("decoder.block_size must be at least 64")
	}
	if c.Decoder.DetectionThreshold <= 0 || c.Decoder.DetectionThreshold > 1 {
		return fmt.Errorf("decoder.detection_threshold must be in (0, 1]")
	}
	if c.Decoder.DiscriminationMargin < 1 {
		return fmt.Errorf("decoder.discrimination_margin must be at least 1.0")
	}
	if c.Decoder.RepeatSuppressionMs <= 0 {
		return fmt.Errorf("decoder.repeat_suppression_ms must be positive")
	}
	if c.Decoder.MaxInterDigitGapMs <= 0 {
		return fmt.Errorf("decoder.max_inter_digit_gap_ms must be positive")
	}
	if c.Decoder.SilenceTimeoutMs <= 0 {
		return fmt.Errorf("decoder.silence_timeout_ms must be positive")
	}
	for _, f := range c.Logging.Formats {
		switch f {
		case "json", "csv", "text":
		default:
			return fmt.Errorf("logging.formats: unknown format %q (use json, csv or text)", f)
		}
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	return nil
}

// RepeatSuppression returns the duplicate-suppression window.
func (dc *DecoderConfig) RepeatSuppression() time.Duration {
	return time.Duration(dc.RepeatSuppressionMs) * time.Millisecond
}

// MaxInterDigitGap returns the maximum allowed gap between digits.
func (dc *DecoderConfig) MaxInterDigitGap() time.Duration {
	return time.Duration(dc.MaxInterDigitGapMs) * time.Millisecond
}

// SilenceTimeout returns the silence duration that aborts a partial sequence.
func (dc *DecoderConfig) SilenceTimeout() time.Duration {
	return time.Duration(dc.SilenceTimeoutMs) * time.Millisecond
}

// Decimation returns the IQ-to-audio decimation factor.
func (c *Config) Decimation() int {
	return c.SDR.SampleRate / c.Decoder.AudioSampleRate
}

// FrequencyMHz returns the tuned frequency in MHz for display and file names.
func (c *Config) FrequencyMHz() float64 {
	return float64(c.SDR.Frequency) / 1e6
}

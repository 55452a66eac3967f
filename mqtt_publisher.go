package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// MQTTPublisher publishes decoded sequences and periodic statistics.
// Sequences go to <topic_prefix>/sequences as they complete; a stats
// snapshot plus gathered Prometheus metrics goes to
// <topic_prefix>/stats every publish interval.
type MQTTPublisher struct {
	client mqtt.Client
	config *MQTTConfig
	stats  *Stats
}

// StatsPayload is the periodic statistics message.
type StatsPayload struct {
	Timestamp int64              `json:"timestamp"`
	Stats     StatsSnapshot      `json:"stats"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
}

// loadTLSConfig loads TLS configuration from files
func loadTLSConfig(tlsConfig MQTTTLSConfig) (*tls.Config, error) {
	if !tlsConfig.Enabled {
		return nil, nil
	}

	config := &tls.Config{}

	if tlsConfig.CACert != "" {
		caCert, err := os.ReadFile(tlsConfig.CACert)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		config.RootCAs = caCertPool
	}

	if tlsConfig.ClientCert != "" && tlsConfig.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(tlsConfig.ClientCert, tlsConfig.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		config.Certificates = []tls.Certificate{cert}
	}

	return config, nil
}

// NewMQTTPublisher connects to the broker with auto-reconnect enabled.
func NewMQTTPublisher(config *MQTTConfig, stats *Stats) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID("zveimon_" + uuid.NewString()[:8])

	if config.Username != "" {
		opts.SetUsername(config.Username)
	}
	if config.Password != "" {
		opts.SetPassword(config.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	if config.TLS.Enabled {
		tlsConfig, err := loadTLSConfig(config.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS config: %w", err)
		}
		opts.SetTLSConfig(tlsConfig)
	}

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Println("MQTT: Connected to broker")
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("MQTT: Connection lost: %v", err)
	})
	opts.SetReconnectingHandler(func(client mqtt.Client, opts *mqtt.ClientOptions) {
		log.Println("MQTT: Attempting to reconnect...")
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	log.Printf("MQTT: Successfully connected to broker: %s", config.Broker)

	return &MQTTPublisher{
		client: client,
		config: config,
		stats:  stats,
	}, nil
}

// WriteRecord publishes one decoded sequence. Implements RecordSink.
func (mp *MQTTPublisher) WriteRecord(rec SequenceRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal sequence: %w", err)
	}
	topic := mp.config.TopicPrefix + "/sequences"
	token := mp.client.Publish(topic, 0, false, data)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, token.Error())
	}
	return nil
}

// StartPublisher runs the periodic stats publisher until the context
// is cancelled, then disconnects.
func (mp *MQTTPublisher) StartPublisher(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Duration(mp.config.PublishInterval) * time.Second)
		defer ticker.Stop()

		log.Printf("MQTT: Stats publisher started with %d second interval", mp.config.PublishInterval)

		// Publish immediately on start
		mp.publishStats()

		for {
			select {
			case <-ctx.Done():
				log.Println("MQTT: Stats publisher stopped")
				mp.client.Disconnect(250)
				return
			case <-ticker.C:
				mp.publishStats()
			}
		}
	}()
}

// publishStats publishes a stats snapshot together with all gathered
// Prometheus metric values.
func (mp *MQTTPublisher) publishStats() {
	payload := StatsPayload{
		Timestamp: time.Now().Unix(),
		Stats:     mp.stats.Snapshot(),
		Metrics:   gatherMetricValues(),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("MQTT ERROR: Failed to marshal stats payload: %v", err)
		return
	}

	topic := mp.config.TopicPrefix + "/stats"
	token := mp.client.Publish(topic, 0, false, data)
	if token.Wait() && token.Error() != nil {
		log.Printf("MQTT ERROR: Failed to publish to topic %s: %v", topic, token.Error())
	}
}

// gatherMetricValues flattens the default Prometheus registry into a
// name(+labels) to value map.
func gatherMetricValues() map[string]float64 {
	metricFamilies, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		log.Printf("MQTT ERROR: Failed to gather Prometheus metrics: %v", err)
		return nil
	}

	values := make(map[string]float64)
	for _, mf := range metricFamilies {
		for _, m := range mf.GetMetric() {
			value, ok := extractMetricValue(m)
			if !ok {
				continue
			}
			key := mf.GetName()
			for _, label := range m.GetLabel() {
				key += "_" + label.GetName() + "_" + label.GetValue()
			}
			values[key] = value
		}
	}
	return values
}

// extractMetricValue extracts the numeric value from a Prometheus metric
func extractMetricValue(m *dto.Metric) (float64, bool) {
	if m.GetGauge() != nil {
		return m.GetGauge().GetValue(), true
	}
	if m.GetCounter() != nil {
		return m.GetCounter().GetValue(), true
	}
	if m.GetHistogram() != nil {
		return m.GetHistogram().GetSampleSum(), true
	}
	if m.GetSummary() != nil {
		return m.GetSummary().GetSampleSum(), true
	}
	return 0, false
}

// Package stream feeds shift rows published on a Kafka topic into the ingestion pipeline.
//
// Each message value is a JSON array of raw rows and is imported as one batch. Offsets
// are committed only after the pipeline has returned a report, so a storage failure
// leaves the message to be redelivered.
package stream

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turnos-io/turnos/internal/config"
)

const (
	defaultBrokers  = "localhost:9092"
	defaultTopic    = "turnos.rows"
	defaultGroupID  = "turnos-ingester"
	defaultMinBytes = 1
	defaultMaxBytes = 10 * 1024 * 1024
	defaultMaxWait  = time.Second
)

var (
	// ErrNoBrokers is returned when no Kafka broker address is configured.
	ErrNoBrokers = errors.New("at least one kafka broker is required")

	// ErrEmptyTopic is returned when the topic name is empty.
	ErrEmptyTopic = errors.New("kafka topic cannot be empty")

	// ErrEmptyGroupID is returned when the consumer group is empty.
	ErrEmptyGroupID = errors.New("kafka consumer group cannot be empty")
)

// Config holds Kafka consumer settings.
type Config struct {
	Brokers  []string
	Topic    string
	GroupID  string
	MinBytes int
	MaxBytes int
	MaxWait  time.Duration
}

// LoadConfig loads consumer configuration from environment variables with defaults.
func LoadConfig() *Config {
	return &Config{
		Brokers:  config.ParseCommaSeparatedList(config.GetEnvStr("TURNOS_KAFKA_BROKERS", defaultBrokers)),
		Topic:    config.GetEnvStr("TURNOS_KAFKA_TOPIC", defaultTopic),
		GroupID:  config.GetEnvStr("TURNOS_KAFKA_GROUP_ID", defaultGroupID),
		MinBytes: config.GetEnvInt("TURNOS_KAFKA_MIN_BYTES", defaultMinBytes),
		MaxBytes: config.GetEnvInt("TURNOS_KAFKA_MAX_BYTES", defaultMaxBytes),
		MaxWait:  config.GetEnvDuration("TURNOS_KAFKA_MAX_WAIT", defaultMaxWait),
	}
}

// Validate checks the settings needed to join the consumer group.
func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return ErrNoBrokers
	}

	if strings.TrimSpace(c.Topic) == "" {
		return ErrEmptyTopic
	}

	if strings.TrimSpace(c.GroupID) == "" {
		return ErrEmptyGroupID
	}

	return nil
}

// String returns a loggable summary.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Brokers: %s, Topic: %s, GroupID: %s}", strings.Join(c.Brokers, ","), c.Topic, c.GroupID)
}

// NewReader creates a consumer-group reader. Offsets are committed explicitly by the
// Consumer (CommitInterval 0 makes CommitMessages synchronous).
func NewReader(cfg *Config) (*kafka.Reader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid stream configuration: %w", err)
	}

	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       cfg.MinBytes,
		MaxBytes:       cfg.MaxBytes,
		MaxWait:        cfg.MaxWait,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: 0,
	}), nil
}

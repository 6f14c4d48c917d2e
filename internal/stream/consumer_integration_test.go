package stream

import (
	"context"
	"net"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/turnos-io/turnos/internal/ingestion"
	"github.com/turnos-io/turnos/internal/storage"
)

// countingReader records how many messages were committed.
type countingReader struct {
	MessageReader

	committed atomic.Int64
}

func (r *countingReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	if err := r.MessageReader.CommitMessages(ctx, msgs...); err != nil {
		return err
	}

	r.committed.Add(int64(len(msgs)))

	return nil
}

func startKafka(ctx context.Context, t *testing.T) []string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("turnos-test"))
	require.NoError(t, err, "failed to start kafka container")

	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Errorf("Failed to terminate kafka container: %v", err)
		}
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)

	return brokers
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafka.Dial("tcp", broker)
	require.NoError(t, err)

	defer func() {
		_ = conn.Close()
	}()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)

	defer func() {
		_ = controllerConn.Close()
	}()

	require.NoError(t, controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func TestConsumer_KafkaIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	brokers := startKafka(ctx, t)
	cfg := &Config{
		Brokers:  brokers,
		Topic:    "turnos.rows.it",
		GroupID:  "turnos-it",
		MinBytes: 1,
		MaxBytes: 1 << 20,
		MaxWait:  200 * time.Millisecond,
	}

	createTopic(t, brokers[0], cfg.Topic)

	writer := &kafka.Writer{Addr: kafka.TCP(brokers...), Topic: cfg.Topic, Balancer: &kafka.LeastBytes{}}

	defer func() {
		_ = writer.Close()
	}()

	require.NoError(t, writer.WriteMessages(ctx,
		kafka.Message{Value: []byte(`[{"fecha":"1/9/2025","turno":"mañana"},{"fecha":"bad"}]`)},
		kafka.Message{Value: []byte(`not json`)},
		kafka.Message{Value: []byte(`[{"date":"2025-09-02","shift":"noche","vacation":true}]`)},
	))

	reader, err := NewReader(cfg)
	require.NoError(t, err)

	counting := &countingReader{MessageReader: reader}
	store := storage.NewMemoryStore()
	consumer := NewConsumer(counting, ingestion.NewPipeline(store, nil, nil), nil)

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)

	go func() {
		done <- consumer.Run(runCtx)
	}()

	require.Eventually(t, func() bool { return counting.committed.Load() == 3 }, 90*time.Second, 250*time.Millisecond)
	assert.Equal(t, 2, store.Len())

	stop()
	require.NoError(t, <-done)
	require.NoError(t, consumer.Close())

	// The group's committed offset is past all three messages.
	groupReader := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: cfg.Topic, GroupID: cfg.GroupID})

	defer func() {
		_ = groupReader.Close()
	}()

	require.NoError(t, writer.WriteMessages(ctx, kafka.Message{Value: []byte(`[]`)}))

	fetchCtx, fetchCancel := context.WithTimeout(ctx, 60*time.Second)
	defer fetchCancel()

	next, err := groupReader.FetchMessage(fetchCtx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), next.Offset)
}

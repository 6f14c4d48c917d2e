package stream

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turnos-io/turnos/internal/ingestion"
	"github.com/turnos-io/turnos/internal/shift"
	"github.com/turnos-io/turnos/internal/storage"
)

// fakeReader serves queued messages, then blocks until ctx is cancelled.
type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []int64
	fetchErr  error
	commitErr error
	closed    bool
	drained   chan struct{}
}

func newFakeReader(values ...string) *fakeReader {
	r := &fakeReader{drained: make(chan struct{})}
	for i, v := range values {
		r.messages = append(r.messages, kafka.Message{Topic: "turnos.rows", Offset: int64(i), Value: []byte(v)})
	}

	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()

	if r.fetchErr != nil {
		r.mu.Unlock()

		return kafka.Message{}, r.fetchErr
	}

	if len(r.messages) > 0 {
		msg := r.messages[0]
		r.messages = r.messages[1:]
		r.mu.Unlock()

		return msg, nil
	}

	r.mu.Unlock()

	select {
	case <-r.drained:
	default:
		close(r.drained)
	}

	<-ctx.Done()

	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.commitErr != nil {
		return r.commitErr
	}

	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}

	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true

	return nil
}

func (r *fakeReader) committedOffsets() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]int64(nil), r.committed...)
}

// runUntilDrained runs the consumer until every queued message was fetched.
func runUntilDrained(t *testing.T, consumer *Consumer, reader *fakeReader) error {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)

	go func() {
		done <- consumer.Run(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-reader.drained:
		cancel()

		return <-done
	}
}

type failingIngester struct{}

func (failingIngester) Ingest(context.Context, []shift.RawRow) (*ingestion.BatchReport, error) {
	return nil, shift.WrapRepositoryError("bulk upsert", errors.New("connection refused"))
}

func TestConsumer_ImportsAndCommits(t *testing.T) {
	store := storage.NewMemoryStore()
	reader := newFakeReader(
		`[{"fecha":"3/9/2025","turno":"mañana"},{"fecha":"4/9/2025","turno":"noche","personId":7}]`,
		`[{"date":"garbage"}]`,
		`[{"date":"2025-09-03","shift":"tarde"}]`,
	)

	consumer := NewConsumer(reader, ingestion.NewPipeline(store, nil, nil), nil)

	require.NoError(t, runUntilDrained(t, consumer, reader))

	assert.Equal(t, []int64{0, 1, 2}, reader.committedOffsets(), "all-skipped batches are committed too")
	assert.Equal(t, 2, store.Len())

	updated, err := store.FindByIdentity(context.Background(), "2025-09-03", "")
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, shift.Afternoon, updated.Shift)

	withPerson, err := store.FindByIdentity(context.Background(), "2025-09-04", "7")
	require.NoError(t, err)
	assert.NotNil(t, withPerson)
}

func TestConsumer_MalformedMessageIsCommitted(t *testing.T) {
	store := storage.NewMemoryStore()
	reader := newFakeReader(`{"date":"2025-09-03"}`, `[{"date":"2025-09-05","shift":"night"}]`)

	consumer := NewConsumer(reader, ingestion.NewPipeline(store, nil, nil), nil)

	require.NoError(t, runUntilDrained(t, consumer, reader))

	assert.Equal(t, []int64{0, 1}, reader.committedOffsets())
	assert.Equal(t, 1, store.Len())
}

func TestConsumer_RepositoryFailureStopsWithoutCommit(t *testing.T) {
	reader := newFakeReader(`[{"date":"2025-09-03","shift":"night"}]`, `[]`)

	consumer := NewConsumer(reader, failingIngester{}, nil)

	err := runUntilDrained(t, consumer, reader)

	var repoErr *shift.RepositoryError
	require.ErrorAs(t, err, &repoErr)
	assert.Empty(t, reader.committedOffsets())
}

func TestConsumer_FetchError(t *testing.T) {
	reader := newFakeReader()
	reader.fetchErr = errors.New("broker unreachable")

	err := NewConsumer(reader, failingIngester{}, nil).Run(context.Background())

	require.ErrorIs(t, err, reader.fetchErr)
}

func TestConsumer_CommitError(t *testing.T) {
	reader := newFakeReader(`[]`)
	reader.commitErr = errors.New("rebalance in progress")

	err := NewConsumer(reader, ingestion.NewPipeline(storage.NewMemoryStore(), nil, nil), nil).
		Run(context.Background())

	require.ErrorIs(t, err, reader.commitErr)
}

func TestConsumer_Close(t *testing.T) {
	reader := newFakeReader()

	require.NoError(t, NewConsumer(reader, failingIngester{}, nil).Close())
	assert.True(t, reader.closed)
}

func TestDecodeMessage(t *testing.T) {
	rows, err := DecodeMessage([]byte(`[{"date":"2025-09-03","vacation":1}]`))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, shift.NormalizeVacation(rows[0]["vacation"]))

	for _, value := range []string{``, `{}`, `"rows"`, `[1,2]`, `[{}] trailing`} {
		_, err := DecodeMessage([]byte(value))
		assert.ErrorIs(t, err, ErrMalformedMessage, value)
	}
}

package storage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"

	"github.com/turnos-io/turnos/internal/config"
	"github.com/turnos-io/turnos/internal/shift"
)

func setupShiftStore(ctx context.Context, t *testing.T) (*ShiftStore, *Connection) {
	t.Helper()

	testDB := config.SetupTestDatabase(ctx, t)

	t.Cleanup(func() {
		_ = testDB.Connection.Close()
		_ = testcontainers.TerminateContainer(testDB.Container)
	})

	conn := &Connection{DB: testDB.Connection}

	store, err := NewShiftStore(conn)
	require.NoError(t, err)

	return store, conn
}

func TestShiftStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	store, conn := setupShiftStore(ctx, t)

	t.Run("Contract", testRepositoryContract(ctx, store))
	t.Run("HealthCheck", func(t *testing.T) {
		require.NoError(t, store.HealthCheck(ctx))
	})
	t.Run("EtagAndIdPersisted", testEtagAndIDPersisted(ctx, store, conn))
	t.Run("BulkUpsertIsAtomic", testBulkUpsertIsAtomic(ctx, store))
	t.Run("ConcurrentBulkUpserts", testConcurrentBulkUpserts(ctx, store))
}

func testEtagAndIDPersisted(ctx context.Context, store *ShiftStore, conn *Connection) func(t *testing.T) {
	return func(t *testing.T) {
		record := shift.Record{Date: "2024-06-01", PersonID: "ana", Shift: shift.Morning, Notes: "etag"}

		_, err := store.Upsert(ctx, record)
		require.NoError(t, err)

		var (
			id   string
			etag string
		)

		err = conn.QueryRowContext(ctx,
			`SELECT id::text, etag FROM shift_records WHERE record_key = $1`, "2024-06-01_ana",
		).Scan(&id, &etag)
		require.NoError(t, err)
		assert.Len(t, id, 36)
		assert.Equal(t, ComputeETag(record), etag)

		var idAfter string

		_, err = store.Upsert(ctx, shift.Record{Date: "2024-06-01", PersonID: "ana", Shift: shift.Night})
		require.NoError(t, err)

		err = conn.QueryRowContext(ctx,
			`SELECT id::text FROM shift_records WHERE record_key = $1`, "2024-06-01_ana",
		).Scan(&idAfter)
		require.NoError(t, err)
		assert.Equal(t, id, idAfter)
	}
}

func testBulkUpsertIsAtomic(ctx context.Context, store *ShiftStore) func(t *testing.T) {
	return func(t *testing.T) {
		// A calendar-invalid date passes no validator here and fails in PostgreSQL,
		// rolling back the valid record before it.
		_, err := store.BulkUpsert(ctx, []shift.Record{
			{Date: "2024-07-01", Shift: shift.Morning},
			{Date: "2024-02-30", Shift: shift.Night},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrShiftStoreFailed)

		var pqErr *pq.Error
		assert.True(t, errors.As(err, &pqErr))

		found, err := store.FindByIdentity(ctx, "2024-07-01", "")
		require.NoError(t, err)
		assert.Nil(t, found)
	}
}

func testConcurrentBulkUpserts(ctx context.Context, store *ShiftStore) func(t *testing.T) {
	return func(t *testing.T) {
		var wg sync.WaitGroup

		for i := 0; i < 8; i++ {
			wg.Add(1)

			go func() {
				defer wg.Done()

				_, err := store.BulkUpsert(ctx, []shift.Record{{Date: "2024-08-01", Shift: shift.Afternoon}})
				if err != nil {
					// Losing a race surfaces as a conflict, never as a duplicate row.
					assert.ErrorIs(t, err, ErrConflict)
				}
			}()
		}

		wg.Wait()

		records, err := store.FindByRange(ctx, "2024-08-01", "2024-08-01", "")
		require.NoError(t, err)
		assert.Len(t, records, 1)
	}
}

func TestNewShiftStore_NilConnection(t *testing.T) {
	_, err := NewShiftStore(nil)

	require.ErrorIs(t, err, ErrNoDatabaseConnection)
}

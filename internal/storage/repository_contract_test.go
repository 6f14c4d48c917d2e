package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turnos-io/turnos/internal/shift"
)

// testRepositoryContract runs the behavior every shift.Repository must share against a
// fresh, empty repo.
func testRepositoryContract(ctx context.Context, repo shift.Repository) func(t *testing.T) {
	return func(t *testing.T) {
		t.Run("UpsertInsertsThenUpdates", testUpsertInsertsThenUpdates(ctx, repo))
		t.Run("FindByIdentity", testFindByIdentity(ctx, repo))
		t.Run("BulkUpsertFollowsInputOrder", testBulkUpsertFollowsInputOrder(ctx, repo))
		t.Run("FindByRange", testFindByRange(ctx, repo))
		t.Run("Stats", testStats(ctx, repo))
	}
}

func testUpsertInsertsThenUpdates(ctx context.Context, repo shift.Repository) func(t *testing.T) {
	return func(t *testing.T) {
		first, err := repo.Upsert(ctx, shift.Record{Date: "2024-01-10", Shift: shift.Morning, Notes: "a"})
		require.NoError(t, err)
		assert.True(t, first.WasInsert)
		assert.Equal(t, first.Record.CreatedAt, first.Record.UpdatedAt)

		time.Sleep(5 * time.Millisecond)

		second, err := repo.Upsert(ctx, shift.Record{Date: "2024-01-10", Shift: shift.Night, Notes: "b"})
		require.NoError(t, err)
		assert.False(t, second.WasInsert)
		assert.Equal(t, shift.Night, second.Record.Shift)
		assert.Equal(t, "b", second.Record.Notes)
		assert.True(t, second.Record.CreatedAt.Equal(first.Record.CreatedAt))
		assert.True(t, second.Record.UpdatedAt.After(first.Record.UpdatedAt))
	}
}

func testFindByIdentity(ctx context.Context, repo shift.Repository) func(t *testing.T) {
	return func(t *testing.T) {
		_, err := repo.Upsert(ctx, shift.Record{Date: "2024-01-11", PersonID: "ana", IsVacation: true})
		require.NoError(t, err)

		found, err := repo.FindByIdentity(ctx, "2024-01-11", "ana")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.True(t, found.IsVacation)
		assert.False(t, found.HasShift())

		missing, err := repo.FindByIdentity(ctx, "2024-01-11", "")
		require.NoError(t, err)
		assert.Nil(t, missing)
	}
}

func testBulkUpsertFollowsInputOrder(ctx context.Context, repo shift.Repository) func(t *testing.T) {
	return func(t *testing.T) {
		results, err := repo.BulkUpsert(ctx, []shift.Record{
			{Date: "2024-02-03", Shift: shift.Afternoon},
			{Date: "2024-02-01", Shift: shift.Morning},
			{Date: "2024-02-03", Shift: shift.Night}, // same identity as the first
			{Date: "2024-02-01", PersonID: "luis", Shift: shift.Night},
		})
		require.NoError(t, err)
		require.Len(t, results, 4)

		assert.Equal(t, "2024-02-03", results[0].Record.Date)
		assert.True(t, results[0].WasInsert)
		assert.True(t, results[1].WasInsert)
		assert.False(t, results[2].WasInsert)
		assert.Equal(t, shift.Night, results[2].Record.Shift)
		assert.True(t, results[3].WasInsert)
		assert.Equal(t, "luis", results[3].Record.PersonID)

		stored, err := repo.FindByIdentity(ctx, "2024-02-03", "")
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, shift.Night, stored.Shift)
	}
}

func testFindByRange(ctx context.Context, repo shift.Repository) func(t *testing.T) {
	return func(t *testing.T) {
		_, err := repo.BulkUpsert(ctx, []shift.Record{
			{Date: "2024-03-05", Shift: shift.Morning},
			{Date: "2024-03-01", Shift: shift.Night},
			{Date: "2024-03-03", Shift: shift.Afternoon, PersonID: "ana"},
			{Date: "2024-04-01", Shift: shift.Morning},
		})
		require.NoError(t, err)

		records, err := repo.FindByRange(ctx, "2024-03-01", "2024-03-31", "")
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, []string{"2024-03-01", "2024-03-03", "2024-03-05"},
			[]string{records[0].Date, records[1].Date, records[2].Date})

		records, err = repo.FindByRange(ctx, "2024-03-01", "2024-03-31", "ana")
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, shift.Afternoon, records[0].Shift)

		records, err = repo.FindByRange(ctx, "2030-01-01", "2030-12-31", "")
		require.NoError(t, err)
		assert.Empty(t, records)
	}
}

func testStats(ctx context.Context, repo shift.Repository) func(t *testing.T) {
	return func(t *testing.T) {
		_, err := repo.BulkUpsert(ctx, []shift.Record{
			{Date: "2024-05-01", Shift: shift.Morning},
			{Date: "2024-05-02", Shift: shift.Morning, PersonID: "ana"},
			{Date: "2024-05-03", IsVacation: true},
			{Date: "2024-05-04", Shift: shift.Night, IsVacation: true},
		})
		require.NoError(t, err)

		stats, err := repo.Stats(ctx, shift.StatsQuery{From: "2024-05-01", To: "2024-05-31"})
		require.NoError(t, err)
		assert.Equal(t, 4, stats.Total)
		assert.Equal(t, map[shift.Shift]int{shift.Morning: 2, shift.Afternoon: 0, shift.Night: 1}, stats.PerShift)
		assert.Equal(t, 2, stats.VacationCount)

		stats, err = repo.Stats(ctx, shift.StatsQuery{From: "2024-05-01", PersonID: "ana"})
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Total)

		stats, err = repo.Stats(ctx, shift.StatsQuery{To: "2024-04-30"})
		require.NoError(t, err)
		assert.Positive(t, stats.Total)
		assert.Len(t, stats.PerShift, 3)
	}
}

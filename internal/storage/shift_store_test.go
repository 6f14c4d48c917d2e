package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestShiftStore_Classify(t *testing.T) {
	store := &ShiftStore{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unique violation", &pq.Error{Code: "23505"}, ErrConflict},
		{"serialization failure", &pq.Error{Code: "40001"}, ErrConflict},
		{"connection failure", &pq.Error{Code: "08006"}, ErrShiftStoreFailed},
		{"bad date", &pq.Error{Code: "22008"}, ErrShiftStoreFailed},
		{"bad conn", driver.ErrBadConn, ErrShiftStoreFailed},
		{"deadline", context.DeadlineExceeded, ErrShiftStoreFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.classify("upsert", tt.err)

			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, tt.err)
			assert.Contains(t, err.Error(), "upsert")
		})
	}
}

func TestIsDatabaseConnectionError(t *testing.T) {
	assert.True(t, isDatabaseConnectionError(&pq.Error{Code: "08003"}))
	assert.True(t, isDatabaseConnectionError(fmt.Errorf("wrapped: %w", sql.ErrConnDone)))
	assert.True(t, isDatabaseConnectionError(driver.ErrBadConn))
	assert.False(t, isDatabaseConnectionError(&pq.Error{Code: "23505"}))
	assert.False(t, isDatabaseConnectionError(errors.New("other")))
	assert.False(t, isDatabaseConnectionError(nil))
}

func TestNullableText(t *testing.T) {
	assert.Nil(t, nullableText(""))
	assert.Equal(t, "ana", nullableText("ana"))
}

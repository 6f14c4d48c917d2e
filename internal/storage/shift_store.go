package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/turnos-io/turnos/internal/config"
	"github.com/turnos-io/turnos/internal/shift"
)

var (
	// ErrShiftStoreFailed is returned when a shift record storage operation fails.
	ErrShiftStoreFailed = errors.New("shift record storage failed")

	// ErrConflict is returned when a concurrent writer wins a race on the same identity
	// (serialization failure or unique violation). Conflicts are not retried.
	ErrConflict = errors.New("shift record write conflict")
)

// PostgreSQL error codes handled by ShiftStore.
const (
	pqUniqueViolation       = "23505"
	pqSerializationFailure  = "40001"
	pqConnectionErrorPrefix = "08"
)

const recordColumns = `id, to_char(shift_date, 'YYYY-MM-DD'), person_id, shift, is_vacation, notes,
	created_at, updated_at`

type (
	// ShiftStore implements shift.Repository with a PostgreSQL backend.
	//
	// Each record is one row of shift_records keyed by record_key ("date" or
	// "date_personId"). Insert vs update is detected with RETURNING (xmax = 0).
	// BulkUpsert runs in a single transaction.
	ShiftStore struct {
		conn   *Connection
		logger *slog.Logger
	}

	// ShiftStoreOption configures optional ShiftStore behavior.
	ShiftStoreOption func(*ShiftStore)

	rowScanner interface {
		Scan(dest ...any) error
	}

	queryRower interface {
		QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	}
)

var _ shift.Repository = (*ShiftStore)(nil)

// WithStoreLogger replaces the default JSON logger.
func WithStoreLogger(logger *slog.Logger) ShiftStoreOption {
	return func(s *ShiftStore) {
		s.logger = logger
	}
}

// NewShiftStore creates a PostgreSQL-backed shift record store.
// Returns ErrNoDatabaseConnection if conn is nil.
func NewShiftStore(conn *Connection, opts ...ShiftStoreOption) (*ShiftStore, error) {
	if conn == nil {
		return nil, ErrNoDatabaseConnection
	}

	store := &ShiftStore{
		conn:   conn,
		logger: config.NewLogger(),
	}

	for _, opt := range opts {
		opt(store)
	}

	return store, nil
}

// HealthCheck verifies the database connection is healthy.
func (s *ShiftStore) HealthCheck(ctx context.Context) error {
	return s.conn.HealthCheck(ctx)
}

// Close closes the underlying connection pool.
func (s *ShiftStore) Close() error {
	return s.conn.Close()
}

// FindByIdentity implements shift.Repository.
func (s *ShiftStore) FindByIdentity(ctx context.Context, date, personID string) (*shift.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM shift_records WHERE record_key = $1`

	record, err := scanRecord(s.conn.QueryRowContext(ctx, query, shift.IdentityKey(date, personID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // absent record is not an error
	}

	if err != nil {
		return nil, s.classify("find", err)
	}

	return &record, nil
}

// FindByRange implements shift.Repository.
func (s *ShiftStore) FindByRange(ctx context.Context, from, to, personID string) ([]shift.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM shift_records
		WHERE shift_date BETWEEN $1::date AND $2::date
		  AND ($3::text IS NULL OR person_id = $3::text)
		ORDER BY shift_date, person_id
	`

	rows, err := s.conn.QueryContext(ctx, query, from, to, nullableText(personID))
	if err != nil {
		return nil, s.classify("find range", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	records := make([]shift.Record, 0)

	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, s.classify("find range", err)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, s.classify("find range", err)
	}

	return records, nil
}

// Upsert implements shift.Repository.
func (s *ShiftStore) Upsert(ctx context.Context, record shift.Record) (shift.UpsertResult, error) {
	result, err := upsertRecord(ctx, s.conn.DB, record)
	if err != nil {
		return shift.UpsertResult{}, s.classify("upsert", err)
	}

	return result, nil
}

// BulkUpsert implements shift.Repository. All records are written in one transaction;
// any failure rolls the whole batch back.
func (s *ShiftStore) BulkUpsert(ctx context.Context, records []shift.Record) ([]shift.UpsertResult, error) {
	startTime := time.Now()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, s.classify("bulk upsert", err)
	}

	defer func() {
		_ = tx.Rollback() // no-op after commit
	}()

	results := make([]shift.UpsertResult, len(records))
	inserted := 0

	for i, record := range records {
		result, err := upsertRecord(ctx, tx, record)
		if err != nil {
			return nil, s.classify("bulk upsert", err)
		}

		if result.WasInsert {
			inserted++
		}

		results[i] = result
	}

	if err := tx.Commit(); err != nil {
		return nil, s.classify("bulk upsert", err)
	}

	s.logger.Info("Bulk upsert complete",
		slog.Int("total", len(records)),
		slog.Int("inserted", inserted),
		slog.Int("updated", len(records)-inserted),
		slog.Int64("duration_ms", time.Since(startTime).Milliseconds()),
	)

	return results, nil
}

// Stats implements shift.Repository. Absent bounds and person match every record.
func (s *ShiftStore) Stats(ctx context.Context, query shift.StatsQuery) (shift.Stats, error) {
	sqlQuery := `
		SELECT shift, is_vacation, COUNT(*)
		FROM shift_records
		WHERE ($1::date IS NULL OR shift_date >= $1::date)
		  AND ($2::date IS NULL OR shift_date <= $2::date)
		  AND ($3::text IS NULL OR person_id = $3::text)
		GROUP BY shift, is_vacation
	`

	rows, err := s.conn.QueryContext(ctx, sqlQuery,
		nullableText(query.From),
		nullableText(query.To),
		nullableText(query.PersonID),
	)
	if err != nil {
		return shift.Stats{}, s.classify("stats", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	stats := shift.NewStats()

	for rows.Next() {
		var (
			label      sql.NullString
			isVacation bool
			count      int
		)

		if err := rows.Scan(&label, &isVacation, &count); err != nil {
			return shift.Stats{}, s.classify("stats", err)
		}

		stats.Total += count

		if label.Valid && shift.Shift(label.String).IsValid() {
			stats.PerShift[shift.Shift(label.String)] += count
		}

		if isVacation {
			stats.VacationCount += count
		}
	}

	if err := rows.Err(); err != nil {
		return shift.Stats{}, s.classify("stats", err)
	}

	return stats, nil
}

// upsertRecord runs the upsert on db or tx.
func upsertRecord(ctx context.Context, q queryRower, record shift.Record) (shift.UpsertResult, error) {
	// RETURNING (xmax = 0) detects INSERT vs UPDATE:
	//   - xmax = 0: new row inserted
	//   - xmax != 0: existing row updated
	query := `
		INSERT INTO shift_records (
			id, record_key, shift_date, person_id, shift, is_vacation, notes, etag
		) VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8)
		ON CONFLICT (record_key)
		DO UPDATE SET
			shift = EXCLUDED.shift,
			is_vacation = EXCLUDED.is_vacation,
			notes = EXCLUDED.notes,
			etag = EXCLUDED.etag,
			updated_at = clock_timestamp()
		RETURNING ` + recordColumns + `, (xmax = 0) AS inserted
	`

	var (
		id       uuid.UUID
		label    sql.NullString
		stored   shift.Record
		inserted bool
	)

	err := q.QueryRowContext(ctx, query,
		uuid.New(),
		record.Identity(),
		record.Date,
		record.PersonID,
		nullableText(string(record.Shift)),
		record.IsVacation,
		record.Notes,
		ComputeETag(record),
	).Scan(
		&id,
		&stored.Date,
		&stored.PersonID,
		&label,
		&stored.IsVacation,
		&stored.Notes,
		&stored.CreatedAt,
		&stored.UpdatedAt,
		&inserted,
	)
	if err != nil {
		return shift.UpsertResult{}, err
	}

	stored.Shift = shift.Shift(label.String)

	return shift.UpsertResult{Record: stored, WasInsert: inserted}, nil
}

func scanRecord(row rowScanner) (shift.Record, error) {
	var (
		id     uuid.UUID
		label  sql.NullString
		record shift.Record
	)

	err := row.Scan(
		&id,
		&record.Date,
		&record.PersonID,
		&label,
		&record.IsVacation,
		&record.Notes,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return shift.Record{}, err
	}

	record.Shift = shift.Shift(label.String)

	return record, nil
}

// classify tags err with ErrConflict or ErrShiftStoreFailed and logs it.
func (s *ShiftStore) classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", ErrShiftStoreFailed, op, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation, pqSerializationFailure:
			s.logger.Warn("Shift record write conflict",
				slog.String("op", op),
				slog.String("code", string(pqErr.Code)),
				slog.String("error", pqErr.Message))

			return fmt.Errorf("%w: %s: %w", ErrConflict, op, err)
		}
	}

	if isDatabaseConnectionError(err) {
		s.logger.Error("Database connection lost",
			slog.String("op", op),
			slog.String("error", err.Error()))
	} else {
		s.logger.Error("Shift record storage failed",
			slog.String("op", op),
			slog.String("error", err.Error()))
	}

	return fmt.Errorf("%w: %s: %w", ErrShiftStoreFailed, op, err)
}

// isDatabaseConnectionError checks for PostgreSQL class 08 errors and the standard
// database/sql connection errors.
func isDatabaseConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return strings.HasPrefix(string(pqErr.Code), pqConnectionErrorPrefix)
	}

	return errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn)
}

// nullableText maps "" to SQL NULL.
func nullableText(s string) any {
	if s == "" {
		return nil
	}

	return s
}

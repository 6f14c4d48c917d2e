package shift

import "context"

// Repository is the document store behind Turnos, keyed by record identity
// (date, or date+personID).
//
// The domain defines what it needs here; internal/storage provides the PostgreSQL and
// in-memory implementations. Implementations set CreatedAt on insert and UpdatedAt on
// every write, and never create two records with the same identity.
type Repository interface {
	// FindByIdentity returns the record for date and personID, or nil when absent.
	FindByIdentity(ctx context.Context, date, personID string) (*Record, error)

	// FindByRange returns records with from <= date <= to, sorted by date ascending.
	// An empty personID matches every record.
	FindByRange(ctx context.Context, from, to, personID string) ([]Record, error)

	// Upsert inserts or updates record, preserving CreatedAt on update.
	Upsert(ctx context.Context, record Record) (UpsertResult, error)

	// BulkUpsert upserts records as one operation. Results follow the input order.
	// Records sharing an identity are applied in order, so the first is an insert
	// and later ones are updates.
	BulkUpsert(ctx context.Context, records []Record) ([]UpsertResult, error)

	// Stats aggregates records matching query.
	Stats(ctx context.Context, query StatsQuery) (Stats, error)
}

package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/turnos-io/turnos/internal/shift"
)

// MemoryStore is a thread-safe in-memory shift.Repository, used by tests and by
// TURNOS_STORAGE=memory.
type MemoryStore struct {
	// docs maps identity keys to documents
	docs map[string]*Document
	now  func() time.Time
	// mutex protects docs; BulkUpsert holds it for the whole batch
	mutex sync.RWMutex
}

// MemoryStoreOption configures optional MemoryStore behavior.
type MemoryStoreOption func(*MemoryStore)

// WithClock replaces time.Now as the source of CreatedAt/UpdatedAt.
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	store := &MemoryStore{
		docs: make(map[string]*Document),
		now:  time.Now,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

var _ shift.Repository = (*MemoryStore)(nil)

// FindByIdentity implements shift.Repository.
func (s *MemoryStore) FindByIdentity(ctx context.Context, date, personID string) (*shift.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	doc, exists := s.docs[shift.IdentityKey(date, personID)]
	if !exists {
		return nil, nil //nolint:nilnil // absent record is not an error
	}

	record := doc.Record

	return &record, nil
}

// FindByRange implements shift.Repository.
func (s *MemoryStore) FindByRange(ctx context.Context, from, to, personID string) ([]shift.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	records := make([]shift.Record, 0)

	for _, doc := range s.docs {
		if matches(doc.Record, from, to, personID) {
			records = append(records, doc.Record)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Date != records[j].Date {
			return records[i].Date < records[j].Date
		}

		return records[i].PersonID < records[j].PersonID
	})

	return records, nil
}

// Upsert implements shift.Repository.
func (s *MemoryStore) Upsert(ctx context.Context, record shift.Record) (shift.UpsertResult, error) {
	if err := ctx.Err(); err != nil {
		return shift.UpsertResult{}, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.upsertLocked(record), nil
}

// BulkUpsert implements shift.Repository. The batch is applied under one lock.
func (s *MemoryStore) BulkUpsert(ctx context.Context, records []shift.Record) ([]shift.UpsertResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	results := make([]shift.UpsertResult, len(records))
	for i, record := range records {
		results[i] = s.upsertLocked(record)
	}

	return results, nil
}

// Stats implements shift.Repository.
func (s *MemoryStore) Stats(ctx context.Context, query shift.StatsQuery) (shift.Stats, error) {
	if err := ctx.Err(); err != nil {
		return shift.Stats{}, err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	stats := shift.NewStats()

	for _, doc := range s.docs {
		if !matches(doc.Record, query.From, query.To, query.PersonID) {
			continue
		}

		stats.Total++

		if doc.Record.Shift.IsValid() {
			stats.PerShift[doc.Record.Shift]++
		}

		if doc.Record.IsVacation {
			stats.VacationCount++
		}
	}

	return stats, nil
}

// Document returns a copy of the stored document for date and personID.
func (s *MemoryStore) Document(date, personID string) (Document, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	doc, exists := s.docs[shift.IdentityKey(date, personID)]
	if !exists {
		return Document{}, false
	}

	return *doc, true
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.docs)
}

// HealthCheck always succeeds.
func (s *MemoryStore) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op; the documents are dropped with the store.
func (s *MemoryStore) Close() error {
	return nil
}

// upsertLocked writes record. Caller must hold the write lock.
func (s *MemoryStore) upsertLocked(record shift.Record) shift.UpsertResult {
	now := s.now()
	key := record.Identity()

	if doc, exists := s.docs[key]; exists {
		doc.Apply(record, now)

		return shift.UpsertResult{Record: doc.Record, WasInsert: false}
	}

	doc := NewDocument(record, now)
	s.docs[key] = doc

	return shift.UpsertResult{Record: doc.Record, WasInsert: true}
}

// matches applies the optional range and person filters. Empty bounds are open.
func matches(record shift.Record, from, to, personID string) bool {
	if from != "" && record.Date < from {
		return false
	}

	if to != "" && record.Date > to {
		return false
	}

	return personID == "" || record.PersonID == personID
}

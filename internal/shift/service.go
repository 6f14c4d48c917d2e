package shift

import (
	"context"
	"fmt"
)

// Service is the single-record read/write path. Writes are validated in Strict mode.
type Service struct {
	repo       Repository
	normalizer *Normalizer
	validator  *Validator
}

// NewService creates a Service. A nil normalizer uses the built-in label aliases.
func NewService(repo Repository, normalizer *Normalizer) *Service {
	if normalizer == nil {
		normalizer = NewNormalizer(nil)
	}

	return &Service{
		repo:       repo,
		normalizer: normalizer,
		validator:  NewValidator(),
	}
}

// GetByDate returns the record for date and personID, or nil when none is stored.
func (s *Service) GetByDate(ctx context.Context, date, personID string) (*Record, error) {
	if err := checkDates(true, date); err != nil {
		return nil, err
	}

	record, err := s.repo.FindByIdentity(ctx, date, personID)
	if err != nil {
		return nil, WrapRepositoryError("find", err)
	}

	return record, nil
}

// GetByRange returns records dated from..to inclusive, sorted by date.
// Returns *InvalidRangeError when from is after to.
func (s *Service) GetByRange(ctx context.Context, from, to, personID string) ([]Record, error) {
	if err := checkRange(from, to); err != nil {
		return nil, err
	}

	records, err := s.repo.FindByRange(ctx, from, to, personID)
	if err != nil {
		return nil, WrapRepositoryError("find range", err)
	}

	return records, nil
}

// UpsertOne validates a typed input strictly and stores it.
func (s *Service) UpsertOne(ctx context.Context, in Input) (Record, error) {
	return s.store(ctx, s.normalizer.NormalizeInput(in))
}

// UpsertRaw normalizes a loosely typed row, validates it strictly and stores it.
func (s *Service) UpsertRaw(ctx context.Context, row RawRow) (Record, error) {
	candidate, err := s.normalizer.Normalize(row)
	if err != nil {
		return Record{}, err
	}

	return s.store(ctx, candidate)
}

// Stats aggregates records matching query. Absent bounds cover the whole store.
func (s *Service) Stats(ctx context.Context, query StatsQuery) (Stats, error) {
	if err := checkDates(false, query.From, query.To); err != nil {
		return Stats{}, err
	}

	if query.From != "" && query.To != "" && query.From > query.To {
		return Stats{}, &InvalidRangeError{From: query.From, To: query.To}
	}

	stats, err := s.repo.Stats(ctx, query)
	if err != nil {
		return Stats{}, WrapRepositoryError("stats", err)
	}

	return stats, nil
}

func (s *Service) store(ctx context.Context, candidate Record) (Record, error) {
	record, _, err := s.validator.Validate(candidate, Strict)
	if err != nil {
		return Record{}, err
	}

	result, err := s.repo.Upsert(ctx, record)
	if err != nil {
		return Record{}, WrapRepositoryError("upsert", err)
	}

	return result.Record, nil
}

func checkRange(from, to string) error {
	if err := checkDates(true, from, to); err != nil {
		return err
	}

	// Canonical dates order lexically.
	if from > to {
		return &InvalidRangeError{From: from, To: to}
	}

	return nil
}

// checkDates rejects dates that are not canonical. Empty dates are rejected only when
// required.
func checkDates(required bool, dates ...string) error {
	var messages []string

	for _, d := range dates {
		if d == "" {
			if required {
				messages = append(messages, "date is required (expected YYYY-MM-DD)")
			}

			continue
		}

		if !IsCanonicalDate(d) {
			messages = append(messages, fmt.Sprintf("invalid date format %q (expected YYYY-MM-DD)", d))
		}
	}

	if len(messages) > 0 {
		return &ValidationError{Messages: messages}
	}

	return nil
}

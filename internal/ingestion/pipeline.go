// Package ingestion turns batches of loosely formatted rows into stored shift records.
//
// Rows come from spreadsheet uploads, JSON batches or the Kafka stream. Each row is
// normalized and validated on its own; the rows that pass are written with a single
// Repository.BulkUpsert and the outcome is summarized in a BatchReport.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/turnos-io/turnos/internal/shift"
)

type (
	// BatchReport is the outcome of one ingestion call.
	//
	// Inserted + Updated + Skipped always equals the number of input rows. Warnings hold
	// one "row N: ..." entry per skipped row and per soft rule violation, in row order.
	// Items are the stored records in input order.
	BatchReport struct {
		Inserted int
		Updated  int
		Skipped  int
		Warnings []string
		Items    []shift.Record
	}

	// Pipeline runs Normalize → Validate (lenient) → BulkUpsert for a batch.
	Pipeline struct {
		repo       shift.Repository
		normalizer *shift.Normalizer
		validator  *shift.Validator
		logger     *slog.Logger
	}
)

// NewPipeline creates a Pipeline. A nil normalizer uses the built-in label aliases and
// a nil logger discards output.
func NewPipeline(repo shift.Repository, normalizer *shift.Normalizer, logger *slog.Logger) *Pipeline {
	if normalizer == nil {
		normalizer = shift.NewNormalizer(nil)
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Pipeline{
		repo:       repo,
		normalizer: normalizer,
		validator:  shift.NewValidator(),
		logger:     logger,
	}
}

// Ingest processes rows and reports per-row outcomes.
//
// Row-level normalization and validation failures never abort the batch: the row is
// skipped and its message added to Warnings. Only a Repository failure is returned as
// an error (*shift.RepositoryError), in which case the report is nil.
func (p *Pipeline) Ingest(ctx context.Context, rows []shift.RawRow) (*BatchReport, error) {
	startTime := time.Now()

	report := &BatchReport{
		Warnings: make([]string, 0),
		Items:    make([]shift.Record, 0, len(rows)),
	}

	valid := make([]shift.Record, 0, len(rows))

	for i, row := range rows {
		record, warnings, err := p.check(row)

		for _, warning := range warnings {
			report.Warnings = append(report.Warnings, rowMessage(i, warning))
		}

		if err != nil {
			report.Skipped++
			report.Warnings = append(report.Warnings, rowMessage(i, err.Error()))

			continue
		}

		valid = append(valid, record)
	}

	if len(valid) > 0 {
		results, err := p.repo.BulkUpsert(ctx, valid)
		if err != nil {
			p.logger.Error("Batch ingestion failed",
				slog.Int("rows", len(rows)),
				slog.Int("valid", len(valid)),
				slog.String("error", err.Error()),
				slog.Int64("duration_ms", time.Since(startTime).Milliseconds()))

			return nil, shift.WrapRepositoryError("bulk upsert", err)
		}

		for _, result := range results {
			if result.WasInsert {
				report.Inserted++
			} else {
				report.Updated++
			}

			report.Items = append(report.Items, result.Record)
		}
	}

	p.logger.Info("Batch ingestion complete",
		slog.Int("rows", len(rows)),
		slog.Int("inserted", report.Inserted),
		slog.Int("updated", report.Updated),
		slog.Int("skipped", report.Skipped),
		slog.Int("warnings", len(report.Warnings)),
		slog.Int64("duration_ms", time.Since(startTime).Milliseconds()))

	return report, nil
}

// check normalizes and validates one row. Soft warnings of a rejected row are dropped;
// the rejection message covers it.
func (p *Pipeline) check(row shift.RawRow) (shift.Record, []string, error) {
	candidate, err := p.normalizer.Normalize(row)
	if err != nil {
		return shift.Record{}, nil, err
	}

	record, warnings, err := p.validator.Validate(candidate, shift.Lenient)
	if err != nil {
		return shift.Record{}, nil, err
	}

	return record, warnings, nil
}

func rowMessage(index int, message string) string {
	return fmt.Sprintf("row %d: %s", index+1, message)
}

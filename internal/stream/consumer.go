package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turnos-io/turnos/internal/ingestion"
	"github.com/turnos-io/turnos/internal/shift"
)

// ErrMalformedMessage is returned by DecodeMessage when a value is not a JSON array of objects.
var ErrMalformedMessage = errors.New("message is not a JSON array of rows")

type (
	// MessageReader is the part of *kafka.Reader the Consumer uses.
	MessageReader interface {
		FetchMessage(ctx context.Context) (kafka.Message, error)
		CommitMessages(ctx context.Context, msgs ...kafka.Message) error
		Close() error
	}

	// Ingester imports one batch of rows. *ingestion.Pipeline implements it.
	Ingester interface {
		Ingest(ctx context.Context, rows []shift.RawRow) (*ingestion.BatchReport, error)
	}

	// Consumer reads row batches from a MessageReader and imports them.
	Consumer struct {
		reader   MessageReader
		ingester Ingester
		logger   *slog.Logger
	}
)

// NewConsumer creates a Consumer. A nil logger discards output.
func NewConsumer(reader MessageReader, ingester Ingester, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Consumer{
		reader:   reader,
		ingester: ingester,
		logger:   logger,
	}
}

// Run consumes until ctx is cancelled (returns nil) or an error stops it.
//
// A message that cannot be decoded is logged and committed so it does not block the
// partition. A repository failure stops the consumer without committing, leaving the
// message for the next run.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("failed to fetch message: %w", err)
		}

		if err := c.handle(ctx, msg); err != nil {
			return err
		}
	}
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	startTime := time.Now()

	attrs := []any{
		slog.String("topic", msg.Topic),
		slog.Int("partition", msg.Partition),
		slog.Int64("offset", msg.Offset),
	}

	rows, err := DecodeMessage(msg.Value)
	if err != nil {
		c.logger.Warn("Discarding malformed message", append(attrs, slog.String("error", err.Error()))...)

		return c.commit(ctx, msg)
	}

	report, err := c.ingester.Ingest(ctx, rows)
	if err != nil {
		c.logger.Error("Batch import failed, offset not committed",
			append(attrs, slog.String("error", err.Error()))...)

		return fmt.Errorf("failed to import message at offset %d: %w", msg.Offset, err)
	}

	c.logger.Info("Batch imported", append(attrs,
		slog.Int("rows", len(rows)),
		slog.Int("inserted", report.Inserted),
		slog.Int("updated", report.Updated),
		slog.Int("skipped", report.Skipped),
		slog.Any("warnings", report.Warnings),
		slog.Duration("duration", time.Since(startTime)),
	)...)

	return c.commit(ctx, msg)
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) error {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to commit offset %d: %w", msg.Offset, err)
	}

	return nil
}

// DecodeMessage parses a message value into raw rows. Numbers are kept as json.Number.
func DecodeMessage(value []byte) ([]shift.RawRow, error) {
	decoder := json.NewDecoder(bytes.NewReader(value))
	decoder.UseNumber()

	var rows []shift.RawRow
	if err := decoder.Decode(&rows); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	if decoder.More() {
		return nil, fmt.Errorf("%w: trailing data after the array", ErrMalformedMessage)
	}

	return rows, nil
}

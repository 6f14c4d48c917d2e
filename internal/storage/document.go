package storage

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/turnos-io/turnos/internal/shift"
)

// Document is the stored form of a shift.Record. ID, ETag and Timestamp are storage
// bookkeeping and never reach the domain.
type Document struct {
	ID        uuid.UUID
	Key       string
	Record    shift.Record
	ETag      string
	Timestamp time.Time
}

// NewDocument creates the document for a record stored for the first time.
func NewDocument(record shift.Record, now time.Time) *Document {
	record.CreatedAt = now
	record.UpdatedAt = now

	return &Document{
		ID:        uuid.New(),
		Key:       record.Identity(),
		Record:    record,
		ETag:      ComputeETag(record),
		Timestamp: now,
	}
}

// Apply replaces the mutable fields with those of record, keeping ID and CreatedAt.
func (d *Document) Apply(record shift.Record, now time.Time) {
	record.CreatedAt = d.Record.CreatedAt
	record.UpdatedAt = now

	d.Record = record
	d.ETag = ComputeETag(record)
	d.Timestamp = now
}

// ComputeETag returns a BLAKE2b-256 hash of the record's content fields, hex encoded.
// Timestamps are excluded, so rewriting identical content keeps the etag.
func ComputeETag(record shift.Record) string {
	content := strings.Join([]string{
		record.Date,
		record.PersonID,
		string(record.Shift),
		strconv.FormatBool(record.IsVacation),
		record.Notes,
	}, "\x00")

	sum := blake2b.Sum256([]byte(content))

	return hex.EncodeToString(sum[:])
}

// Package shift holds the Turnos domain: shift records, the normalization of loosely
// typed input rows, the business rules and the read/write service over a Repository.
//
// The types here carry no storage or transport concerns. The API layer maps its own
// JSON DTOs onto them, and internal/storage maps them onto database rows.
package shift

import (
	"time"
)

// Canonical shift names.
const (
	Morning   Shift = "morning"
	Afternoon Shift = "afternoon"
	Night     Shift = "night"
)

type (
	// Shift is a work assignment for one date. The empty Shift means "no shift".
	Shift string

	// Record is one shift assignment, identified by Date alone or by Date+PersonID.
	Record struct {
		// Date is the canonical YYYY-MM-DD calendar date.
		Date string

		// PersonID is optional; empty means the record belongs to the date alone.
		PersonID string

		// Shift is empty when no shift is assigned.
		Shift Shift

		IsVacation bool
		Notes      string

		// CreatedAt and UpdatedAt are set by the Repository on write.
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// RawRow is one loosely typed input row, as decoded from JSON, a spreadsheet or a
	// stream message. Values are strings, numbers or booleans.
	RawRow map[string]any

	// Input is a typed single-record write.
	Input struct {
		Date       string
		Shift      string
		IsVacation bool
		Notes      string
		PersonID   string
	}

	// UpsertResult reports one stored record and whether its identity was new.
	UpsertResult struct {
		Record    Record
		WasInsert bool
	}

	// StatsQuery filters Stats. Empty fields mean "no bound" / "all people".
	StatsQuery struct {
		From     string
		To       string
		PersonID string
	}

	// Stats aggregates records. A record with both a shift and the vacation flag
	// counts in PerShift and in VacationCount.
	Stats struct {
		Total         int
		PerShift      map[Shift]int
		VacationCount int
	}
)

// Shifts lists the valid shifts in day order.
func Shifts() []Shift {
	return []Shift{Morning, Afternoon, Night}
}

// IsValid reports whether s is one of the three canonical shifts.
func (s Shift) IsValid() bool {
	switch s {
	case Morning, Afternoon, Night:
		return true
	default:
		return false
	}
}

// String returns the shift name.
func (s Shift) String() string {
	return string(s)
}

// Identity returns the unique key of the record: "2025-09-03" or "2025-09-03_ana".
func (r Record) Identity() string {
	return IdentityKey(r.Date, r.PersonID)
}

// IdentityKey builds the identity for a date and optional person.
func IdentityKey(date, personID string) string {
	if personID == "" {
		return date
	}

	return date + "_" + personID
}

// HasShift reports whether a concrete shift is assigned.
func (r Record) HasShift() bool {
	return r.Shift != ""
}

// NewStats returns an empty Stats with every shift present in PerShift.
func NewStats() Stats {
	perShift := make(map[Shift]int, len(Shifts()))
	for _, s := range Shifts() {
		perShift[s] = 0
	}

	return Stats{PerShift: perShift}
}

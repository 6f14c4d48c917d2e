package shift

import (
	"fmt"
	"time"
)

// Mode selects how strictly Validate treats soft rules.
type Mode int

const (
	// Lenient reports a shift+vacation conflict as a warning. Used by bulk ingestion.
	Lenient Mode = iota
	// Strict rejects a shift+vacation conflict. Used by single-record writes.
	Strict
)

// MsgShiftAndVacation is reported when a record has a shift and the vacation flag.
const MsgShiftAndVacation = "shift and vacation specified simultaneously"

func (m Mode) String() string {
	if m == Strict {
		return "strict"
	}

	return "lenient"
}

// Validator applies the Turnos business rules to candidate records.
type Validator struct{}

// NewValidator creates a new Validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks record against the rules, in order:
//
//  1. Date is a YYYY-MM-DD calendar date (hard).
//  2. Shift and IsVacation are not both set (warning in Lenient, hard in Strict).
//  3. Shift, when set, is morning, afternoon or night (hard).
//
// Every applicable rule is evaluated. Hard violations are returned together as a
// *ValidationError; the record is returned only when there are none.
func (v *Validator) Validate(record Record, mode Mode) (Record, []string, error) {
	var (
		violations []string
		warnings   []string
	)

	if !IsCanonicalDate(record.Date) {
		violations = append(violations,
			fmt.Sprintf("invalid date format %q (expected YYYY-MM-DD)", record.Date))
	}

	if record.HasShift() && record.IsVacation {
		if mode == Strict {
			violations = append(violations, MsgShiftAndVacation)
		} else {
			warnings = append(warnings, MsgShiftAndVacation)
		}
	}

	if record.HasShift() && !record.Shift.IsValid() {
		violations = append(violations,
			fmt.Sprintf("invalid shift %q (expected morning, afternoon or night)", record.Shift))
	}

	if len(violations) > 0 {
		return Record{}, warnings, &ValidationError{Messages: violations}
	}

	return record, warnings, nil
}

// IsCanonicalDate reports whether date is YYYY-MM-DD and names a real calendar day.
func IsCanonicalDate(date string) bool {
	if !isoDatePattern.MatchString(date) {
		return false
	}

	_, err := time.Parse(time.DateOnly, date)

	return err == nil
}

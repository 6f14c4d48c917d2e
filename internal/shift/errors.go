package shift

import (
	"fmt"
	"strings"
)

// NormalizationError reports a raw row whose shape cannot be parsed.
type NormalizationError struct {
	Field string
	Value any
}

func (e *NormalizationError) Error() string {
	if e.Field == fieldDate {
		return fmt.Sprintf("invalid date format %s (expected YYYY-MM-DD or D/M/YYYY)", formatValue(e.Value))
	}

	return fmt.Sprintf("invalid %s value %s", e.Field, formatValue(e.Value))
}

// ValidationError carries every hard rule violation of one record, in rule order.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}

// InvalidRangeError is returned when a range read has From after To.
type InvalidRangeError struct {
	From string
	To   string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid range: from %s is after to %s", e.From, e.To)
}

// RepositoryError wraps a failure of the Repository. The cause is preserved for errors.Is.
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository %s failed: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}

// WrapRepositoryError tags err as a RepositoryError for op. Nil stays nil and an
// existing RepositoryError is returned unchanged.
func WrapRepositoryError(op string, err error) error {
	if err == nil {
		return nil
	}

	if repoErr, ok := err.(*RepositoryError); ok { //nolint:errorlint // only the outermost error is checked
		return repoErr
	}

	return &RepositoryError{Op: op, Err: err}
}

func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}

	return fmt.Sprintf("%v", v)
}

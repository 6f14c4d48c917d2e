package shift

import (
	"encoding/json"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/turnos-io/turnos/internal/aliasing"
)

// Canonical field names of a raw row.
const (
	fieldDate     = "date"
	fieldShift    = "shift"
	fieldVacation = "vacation"
	fieldNotes    = "notes"
	fieldPerson   = "personId"
)

//nolint:gochecknoglobals // read-only lookup tables and compiled patterns
var (
	// fieldAliases lists the accepted spellings of each field in priority order,
	// lower-case. Row keys are matched case-insensitively.
	fieldAliases = map[string][]string{
		fieldDate:     {"date", "fecha"},
		fieldShift:    {"shift", "turno"},
		fieldVacation: {"vacation", "isvacation", "vacaciones", "esvacaciones"},
		fieldNotes:    {"notes", "notas"},
		fieldPerson:   {"personid", "personaid", "person"},
	}

	isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	dmyDatePattern = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{4})$`)

	truthyStrings = map[string]bool{"sí": true, "si": true, "true": true, "1": true}
)

// LabelResolver maps a typed shift label to its canonical name.
// aliasing.Resolver is the production implementation.
type LabelResolver interface {
	Resolve(label string) string
}

// Normalizer turns raw rows into candidate records. It never applies business rules,
// only rejects values whose shape cannot be parsed.
type Normalizer struct {
	labels LabelResolver
}

// NewNormalizer creates a Normalizer. A nil resolver falls back to the built-in aliases.
func NewNormalizer(labels LabelResolver) *Normalizer {
	if labels == nil {
		labels = aliasing.NewResolver(nil)
	}

	return &Normalizer{labels: labels}
}

// Normalize parses row into a candidate record.
//
// Returns *NormalizationError when the date is missing or malformed, or when the shift
// label is not a string.
func (n *Normalizer) Normalize(row RawRow) (Record, error) {
	fields := canonicalFields(row)

	date, err := NormalizeDate(fields[fieldDate])
	if err != nil {
		return Record{}, err
	}

	label, err := n.normalizeShift(fields[fieldShift])
	if err != nil {
		return Record{}, err
	}

	return Record{
		Date:       date,
		PersonID:   normalizeText(fields[fieldPerson]),
		Shift:      label,
		IsVacation: NormalizeVacation(fields[fieldVacation]),
		Notes:      normalizeText(fields[fieldNotes]),
	}, nil
}

// NormalizeInput canonicalizes the label, notes and person of a typed input. The date
// is left as given; the validator checks it.
func (n *Normalizer) NormalizeInput(in Input) Record {
	return Record{
		Date:       strings.TrimSpace(in.Date),
		PersonID:   strings.TrimSpace(in.PersonID),
		Shift:      n.resolveLabel(in.Shift),
		IsVacation: in.IsVacation,
		Notes:      strings.TrimSpace(in.Notes),
	}
}

func (n *Normalizer) normalizeShift(value any) (Shift, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return n.resolveLabel(v), nil
	default:
		return "", &NormalizationError{Field: fieldShift, Value: value}
	}
}

func (n *Normalizer) resolveLabel(label string) Shift {
	cleaned := strings.ToLower(strings.TrimSpace(label))
	if cleaned == "" {
		return ""
	}

	return Shift(n.labels.Resolve(cleaned))
}

// NormalizeDate returns the ISO form of a date given as YYYY-MM-DD (unchanged) or
// D/M/YYYY, D-M-YYYY (day and month zero-padded).
func NormalizeDate(value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", &NormalizationError{Field: fieldDate, Value: value}
	}

	cleaned := strings.TrimSpace(s)

	if isoDatePattern.MatchString(cleaned) {
		return cleaned, nil
	}

	match := dmyDatePattern.FindStringSubmatch(cleaned)
	if match == nil {
		return "", &NormalizationError{Field: fieldDate, Value: value}
	}

	day, _ := strconv.Atoi(match[1])
	month, _ := strconv.Atoi(match[2])

	return fmt.Sprintf("%s-%02d-%02d", match[3], month, day), nil
}

// NormalizeVacation interprets a loosely typed vacation flag. Booleans pass through,
// the number 1 is true, and the strings "sí", "si", "true" and "1" (any case, trimmed)
// are true. Everything else is false.
func NormalizeVacation(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return truthyStrings[strings.ToLower(strings.TrimSpace(v))]
	case float64:
		return v == 1
	case float32:
		return v == 1
	case int:
		return v == 1
	case int32:
		return v == 1
	case int64:
		return v == 1
	case json.Number:
		f, err := v.Float64()

		return err == nil && f == 1
	default:
		return false
	}
}

func normalizeText(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// IsDateField reports whether a row key names the date field ("date", "Fecha", ...).
func IsDateField(key string) bool {
	return slices.Contains(fieldAliases[fieldDate], strings.ToLower(strings.TrimSpace(key)))
}

// canonicalFields re-keys row by canonical field name. When a row carries several
// spellings of one field, the first in fieldAliases order wins.
func canonicalFields(row RawRow) map[string]any {
	lowered := make(map[string]any, len(row))

	for _, key := range slices.Sorted(maps.Keys(row)) {
		k := strings.ToLower(strings.TrimSpace(key))
		if _, seen := lowered[k]; !seen {
			lowered[k] = row[key]
		}
	}

	fields := make(map[string]any, len(fieldAliases))

	for field, aliases := range fieldAliases {
		for _, alias := range aliases {
			if v, ok := lowered[alias]; ok {
				fields[field] = v

				break
			}
		}
	}

	return fields
}

package aliasing

import (
	"log/slog"
	"strings"
)

// builtinAliases are always available, regardless of configuration.
//
//nolint:gochecknoglobals // read-only lookup table
var builtinAliases = map[string]string{
	"mañana":    "morning",
	"manana":    "morning",
	"morning":   "morning",
	"tarde":     "afternoon",
	"afternoon": "afternoon",
	"noche":     "night",
	"night":     "night",
}

// Resolver resolves shift labels to canonical shift names.
// Immutable after construction, safe for concurrent use.
type Resolver struct {
	aliases map[string]string
}

// NewResolver merges the configured aliases over the built-in ones. Keys and values are
// lower-cased and trimmed; entries with an empty key or value are skipped with a warning.
// A nil config yields a resolver with only the built-in aliases.
func NewResolver(cfg *Config) *Resolver {
	aliases := make(map[string]string, len(builtinAliases))
	for k, v := range builtinAliases {
		aliases[k] = v
	}

	if cfg == nil {
		return &Resolver{aliases: aliases}
	}

	for alias, canonical := range cfg.ShiftAliases {
		key := strings.ToLower(strings.TrimSpace(alias))
		value := strings.ToLower(strings.TrimSpace(canonical))

		if key == "" || value == "" {
			slog.Warn("Skipping shift alias with empty label",
				slog.String("alias", alias),
				slog.String("canonical", canonical))

			continue
		}

		aliases[key] = value
	}

	return &Resolver{aliases: aliases}
}

// Resolve returns the canonical shift for label, or label itself when no alias matches.
// Lookup is case-insensitive and ignores surrounding whitespace.
func (r *Resolver) Resolve(label string) string {
	if label == "" {
		return label
	}

	key := strings.ToLower(strings.TrimSpace(label))

	if r == nil {
		if canonical, ok := builtinAliases[key]; ok {
			return canonical
		}

		return label
	}

	if canonical, ok := r.aliases[key]; ok {
		return canonical
	}

	return label
}

// AliasCount returns the number of known aliases, built-in ones included.
func (r *Resolver) AliasCount() int {
	if r == nil {
		return len(builtinAliases)
	}

	return len(r.aliases)
}

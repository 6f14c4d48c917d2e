// Package aliasing maps the shift labels people actually type into the canonical
// shift names stored by Turnos.
//
// Spreadsheets arrive in Spanish and English ("Mañana", "tarde", "Night"). A small set
// of aliases is built in; sites can add their own in a YAML file.
package aliasing

import (
	"errors"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/turnos-io/turnos/internal/config"
)

// Config holds shift label aliases loaded from .turnos.yaml.
type Config struct {
	// ShiftAliases maps a label (as typed) to a canonical shift name.
	//nolint:tagliatelle // snake_case is intentional for YAML config files
	ShiftAliases map[string]string `yaml:"shift_aliases"`
}

// DefaultConfigPath is the default location for the alias file.
const DefaultConfigPath = ".turnos.yaml"

// ConfigPathEnvVar overrides DefaultConfigPath.
const ConfigPathEnvVar = "TURNOS_ALIASES_PATH"

// LoadConfig loads alias configuration from a YAML file at the given path.
//
// Behavior:
//   - Returns empty config (not error) if file doesn't exist
//   - Returns empty config + logs warning if the file can't be read or parsed
//   - Returns populated config on success
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		ShiftAliases: make(map[string]string),
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config source
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("Alias file not found, using built-in shift aliases",
				slog.String("path", path))

			return cfg, nil
		}

		slog.Warn("Failed to read alias file, using built-in shift aliases",
			slog.String("path", path),
			slog.String("error", err.Error()))

		return cfg, nil
	}

	if len(data) == 0 {
		return cfg, nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		slog.Warn("Failed to parse alias file, using built-in shift aliases",
			slog.String("path", path),
			slog.String("error", err.Error()))

		return &Config{ShiftAliases: make(map[string]string)}, nil
	}

	if cfg.ShiftAliases == nil {
		cfg.ShiftAliases = make(map[string]string)
	}

	return cfg, nil
}

// LoadConfigFromEnv loads config from TURNOS_ALIASES_PATH, falling back to
// ".turnos.yaml" in the current directory.
func LoadConfigFromEnv() (*Config, error) {
	path := config.GetEnvStr(ConfigPathEnvVar, DefaultConfigPath)

	return LoadConfig(path)
}

// NewResolverFromEnv loads the alias file named by TURNOS_ALIASES_PATH and builds a
// Resolver from it. A missing or broken file yields the built-in aliases.
func NewResolverFromEnv() *Resolver {
	cfg, err := LoadConfigFromEnv()
	if err != nil {
		slog.Warn("Using built-in shift aliases", slog.String("error", err.Error()))

		return NewResolver(nil)
	}

	return NewResolver(cfg)
}

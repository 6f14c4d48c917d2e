// Package migrations embeds the Turnos database schema.
//
// Files follow the strict naming standard 001_name.up.sql / 001_name.down.sql. Every up
// migration needs a matching down migration and sequences start at 001 without gaps.
// cmd/migrator and the integration test helpers read them through golang-migrate's
// iofs source.
package migrations

import (
	"crypto/sha256"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
)

//go:embed *.sql
var embeddedMigrations embed.FS

// Migration filename regex: 001_migration_name.up.sql or 001_migration_name.down.sql.
var migrationFilenameRegex = regexp.MustCompile(`^(\d{3})_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)

// ErrNoMigrations is returned when the catalog holds no migration files.
var ErrNoMigrations = errors.New("no embedded migration files found")

type (
	// Catalog lists and validates the migration files of a filesystem.
	Catalog struct {
		fs        fs.FS
		checksums map[string]string // filename -> checksum for integrity checking
	}

	// Info contains parsed information about a migration file.
	Info struct {
		Sequence  int
		Name      string
		Direction string // "up" or "down"
		Filename  string
	}
)

// FS returns the embedded migration files.
func FS() fs.FS {
	return embeddedMigrations
}

// NewCatalog creates a Catalog over filesystem. Pass nil to use the embedded migrations.
func NewCatalog(filesystem fs.FS) *Catalog {
	if filesystem == nil {
		filesystem = embeddedMigrations
	}

	return &Catalog{
		fs:        filesystem,
		checksums: make(map[string]string),
	}
}

// FS returns the filesystem the catalog reads from.
func (c *Catalog) FS() fs.FS {
	return c.fs
}

// List returns the migration filenames that follow the naming standard, sorted.
// Other files are ignored.
func (c *Catalog) List() ([]string, error) {
	entries, err := fs.ReadDir(c.fs, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []string

	for _, entry := range entries {
		if !entry.IsDir() && migrationFilenameRegex.MatchString(entry.Name()) {
			files = append(files, entry.Name())
		}
	}

	// 001_x.down.sql < 001_x.up.sql < 002_y.down.sql
	sort.Strings(files)

	return files, nil
}

// Validate checks pairing, sequence and, on repeated calls, that no file changed since
// the previous call.
func (c *Catalog) Validate() error {
	files, err := c.List()
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return ErrNoMigrations
	}

	infos := make([]*Info, 0, len(files))

	for _, file := range files {
		info, err := ParseFilename(file)
		if err != nil {
			return err
		}

		infos = append(infos, info)
	}

	if err := validatePairing(infos); err != nil {
		return err
	}

	if err := validateSequence(infos); err != nil {
		return err
	}

	for _, file := range files {
		content, err := fs.ReadFile(c.fs, file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}

		sum := fmt.Sprintf("%x", sha256.Sum256(content))

		if previous, seen := c.checksums[file]; seen && previous != sum {
			return fmt.Errorf("checksum mismatch for %s: file has been modified", file)
		}

		c.checksums[file] = sum
	}

	return nil
}

// MaxSequence returns the highest migration sequence in the catalog, or 0.
func (c *Catalog) MaxSequence() int {
	files, err := c.List()
	if err != nil {
		return 0
	}

	maxSequence := 0

	for _, file := range files {
		if info, err := ParseFilename(file); err == nil && info.Sequence > maxSequence {
			maxSequence = info.Sequence
		}
	}

	return maxSequence
}

// ParseFilename splits a migration filename into its components.
func ParseFilename(filename string) (*Info, error) {
	matches := migrationFilenameRegex.FindStringSubmatch(filename)
	if len(matches) != 4 { //nolint:mnd // full match + 3 groups
		return nil, fmt.Errorf(
			"invalid migration filename format: %s (expected: 001_name.up.sql or 001_name.down.sql)",
			filename,
		)
	}

	sequence, err := strconv.Atoi(matches[1])
	if err != nil {
		return nil, fmt.Errorf("invalid sequence number in filename %s: %w", filename, err)
	}

	return &Info{
		Sequence:  sequence,
		Name:      matches[2],
		Direction: matches[3],
		Filename:  filename,
	}, nil
}

func validatePairing(infos []*Info) error {
	directions := make(map[string]map[string]bool)

	for _, info := range infos {
		key := fmt.Sprintf("%03d_%s", info.Sequence, info.Name)
		if directions[key] == nil {
			directions[key] = make(map[string]bool)
		}

		directions[key][info.Direction] = true
	}

	for key, seen := range directions {
		if !seen["up"] {
			return fmt.Errorf("orphaned down migration: missing up migration for %s", key)
		}

		if !seen["down"] {
			return fmt.Errorf("orphaned up migration: missing down migration for %s", key)
		}
	}

	return nil
}

func validateSequence(infos []*Info) error {
	seen := make(map[int]bool)

	var sequences []int

	for _, info := range infos {
		if !seen[info.Sequence] {
			seen[info.Sequence] = true
			sequences = append(sequences, info.Sequence)
		}
	}

	sort.Ints(sequences)

	if len(sequences) > 0 && sequences[0] != 1 {
		return fmt.Errorf("migration sequence should start with 001, but found %03d", sequences[0])
	}

	for i := 1; i < len(sequences); i++ {
		if expected := sequences[i-1] + 1; sequences[i] != expected {
			return fmt.Errorf("gap in migration sequence: expected %03d, found %03d", expected, sequences[i])
		}
	}

	return nil
}

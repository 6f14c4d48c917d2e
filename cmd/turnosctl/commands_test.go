package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/turnos-io/turnos/internal/storage"
)

func runCLI(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	root := newRootCmd(app)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.Execute()

	return out.String(), err
}

func newTestApp() (*App, *storage.MemoryStore) {
	store := storage.NewMemoryStore()

	return newApp(store, slog.New(slog.DiscardHandler)), store
}

func writeWorkbook(t *testing.T, rows [][]any) string {
	t.Helper()

	f := excelize.NewFile()

	defer func() {
		_ = f.Close()
	}()

	for r, row := range rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Sheet1", cell, value))
		}
	}

	path := filepath.Join(t.TempDir(), "turnos.xlsx")
	require.NoError(t, f.SaveAs(path))

	return path
}

func TestImportCommand(t *testing.T) {
	app, store := newTestApp()

	path := writeWorkbook(t, [][]any{
		{"Fecha", "Turno", "Vacaciones"},
		{"1/9/2025", "mañana", "no"},
		{"2/9/2025", "tarde", "sí"},
		{"nope", "noche", "no"},
	})

	out, err := runCLI(t, app, "import", path)

	require.NoError(t, err)
	assert.Contains(t, out, "inserted: 2\nupdated: 0\nskipped: 1\n")
	assert.Contains(t, out, "warning: row 2: shift and vacation specified simultaneously")
	assert.Contains(t, out, "warning: row 3: invalid date format")
	assert.Equal(t, 2, store.Len())
}

func TestImportCommand_RejectsNonWorkbook(t *testing.T) {
	app, _ := newTestApp()

	path := filepath.Join(t.TempDir(), "turnos.csv")
	require.NoError(t, os.WriteFile(path, []byte("date,shift\n"), 0o600))

	_, err := runCLI(t, app, "import", path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "only Excel (.xlsx) files are allowed")
}

func TestPutGetRangeStats(t *testing.T) {
	app, _ := newTestApp()

	_, err := runCLI(t, app, "put", "2025-09-01", "--shift", "noche")
	require.NoError(t, err)

	_, err = runCLI(t, app, "put", "2025-09-02", "--vacation", "--notes", "beach")
	require.NoError(t, err)

	_, err = runCLI(t, app, "put", "2025-09-02", "--shift", "tarde", "--person", "ana")
	require.NoError(t, err)

	out, err := runCLI(t, app, "get", "2025-09-01")
	require.NoError(t, err)
	assert.Contains(t, out, "2025-09-01")
	assert.Contains(t, out, "night")

	out, err = runCLI(t, app, "range", "2025-09-01", "2025-09-30")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4, out)
	assert.True(t, strings.HasPrefix(lines[0], "DATE"))
	assert.Contains(t, out, "beach")

	out, err = runCLI(t, app, "range", "2025-09-01", "2025-09-30", "--person", "ana")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 2)

	out, err = runCLI(t, app, "stats")
	require.NoError(t, err)
	assert.Equal(t, "total: 3\nmorning: 0\nafternoon: 1\nnight: 1\nvacation: 1\n", out)
}

func TestPutCommand_RejectsShiftWithVacation(t *testing.T) {
	app, store := newTestApp()

	_, err := runCLI(t, app, "put", "2025-09-01", "--shift", "noche", "--vacation")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "shift and vacation specified simultaneously")
	assert.Zero(t, store.Len())
}

func TestGetCommand_NotFound(t *testing.T) {
	app, _ := newTestApp()

	_, err := runCLI(t, app, "get", "2025-09-01", "--person", "ana")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no shift record for 2025-09-01_ana")
}

func TestRangeCommand_InvertedRange(t *testing.T) {
	app, _ := newTestApp()

	_, err := runCLI(t, app, "range", "2025-09-30", "2025-09-01")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid range")
}

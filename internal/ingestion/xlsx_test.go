package ingestion

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/turnos-io/turnos/internal/shift"
)

// buildWorkbook writes rows (header first) to an in-memory .xlsx file.
func buildWorkbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()

	defer func() {
		_ = f.Close()
	}()

	sheet := f.GetSheetName(0)

	for r, row := range rows {
		for c, value := range row {
			if value == nil {
				continue
			}

			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, value))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	return buf
}

func TestDecodeWorkbook(t *testing.T) {
	buf := buildWorkbook(t, [][]any{
		{"Fecha", "Turno", "Vacaciones", "Notas"},
		{"3/9/2025", "Mañana", "no", "first"},
		{time.Date(2025, 9, 4, 0, 0, 0, 0, time.UTC), "tarde", nil, nil},
		{nil, nil, nil, nil},
		{"2025-09-05", nil, true, "  padded  "},
	})

	rows, err := DecodeWorkbook(buf)

	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, shift.RawRow{"Fecha": "3/9/2025", "Turno": "Mañana", "Vacaciones": "no", "Notas": "first"}, rows[0])
	assert.Equal(t, shift.RawRow{"Fecha": "2025-09-04", "Turno": "tarde"}, rows[1])
	assert.Equal(t, "2025-09-05", rows[2]["Fecha"])
	assert.True(t, shift.NormalizeVacation(rows[2]["Vacaciones"]))
	assert.Equal(t, "padded", rows[2]["Notas"])
}

func TestDecodeWorkbook_RowsFeedThePipeline(t *testing.T) {
	buf := buildWorkbook(t, [][]any{
		{"date", "shift", "vacation"},
		{45903, "noche", 0},
	})

	rows, err := DecodeWorkbook(buf)
	require.NoError(t, err)

	record, err := shift.NewNormalizer(nil).Normalize(rows[0])
	require.NoError(t, err)
	assert.Equal(t, "2025-09-03", record.Date)
	assert.Equal(t, shift.Night, record.Shift)
	assert.False(t, record.IsVacation)
}

func TestDecodeWorkbook_HeaderOnly(t *testing.T) {
	_, err := DecodeWorkbook(buildWorkbook(t, [][]any{{"date", "shift"}}))

	require.ErrorIs(t, err, ErrNoDataRows)
}

func TestDecodeWorkbook_OnlyBlankRows(t *testing.T) {
	_, err := DecodeWorkbook(buildWorkbook(t, [][]any{
		{"date", "shift"},
		{"", "   "},
	}))

	require.ErrorIs(t, err, ErrNoDataRows)
}

func TestDecodeWorkbook_NotAWorkbook(t *testing.T) {
	_, err := DecodeWorkbook(strings.NewReader("date,shift\n2025-09-03,morning\n"))

	require.ErrorIs(t, err, ErrUnreadableFile)
}

func TestSerialToDate(t *testing.T) {
	assert.Equal(t, "2025-09-03", serialToDate("45903"))
	assert.Equal(t, "2025-09-03", serialToDate("45903.75"))
	assert.Equal(t, "3/9/2025", serialToDate("3/9/2025"))
}

func TestCheckUpload(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		size     int64
		want     error
	}{
		{"valid", "turnos.xlsx", 1024, nil},
		{"upper case extension", "TURNOS.XLSX", 1024, nil},
		{"csv", "turnos.csv", 1024, ErrNotXLSX},
		{"legacy xls", "turnos.xls", 1024, ErrNotXLSX},
		{"empty", "turnos.xlsx", 0, ErrEmptyUpload},
		{"exactly the limit", "turnos.xlsx", 5 * bytesPerMB, ErrUploadTooLarge},
		{"just under the limit", "turnos.xlsx", 5*bytesPerMB - 1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckUpload(tt.filename, tt.size, 5)

			if tt.want == nil {
				require.NoError(t, err)

				return
			}

			require.ErrorIs(t, err, tt.want)
		})
	}
}

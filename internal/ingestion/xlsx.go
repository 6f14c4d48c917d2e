package ingestion

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/turnos-io/turnos/internal/shift"
)

const bytesPerMB = 1024 * 1024

// Upload rejections. All map to 400 in the HTTP layer.
var (
	ErrEmptyUpload    = errors.New("uploaded file is empty")
	ErrUploadTooLarge = errors.New("uploaded file is too large")
	ErrNotXLSX        = errors.New("only Excel (.xlsx) files are allowed")
	ErrNoDataRows     = errors.New("workbook has no data rows (the first row is the header)")
	ErrUnreadableFile = errors.New("file is not a readable Excel workbook")
)

// CheckUpload validates an upload before it is decoded: the name must end in .xlsx and
// the size must be non-zero and below maxMB megabytes.
func CheckUpload(filename string, size int64, maxMB int) error {
	if !strings.EqualFold(filepath.Ext(filename), ".xlsx") {
		return fmt.Errorf("%w: %q", ErrNotXLSX, filename)
	}

	if size <= 0 {
		return ErrEmptyUpload
	}

	if size >= int64(maxMB)*bytesPerMB {
		return fmt.Errorf("%w (max %dMB)", ErrUploadTooLarge, maxMB)
	}

	return nil
}

// DecodeWorkbook reads the first sheet of an .xlsx workbook into raw rows.
//
// The first row holds the field names. Each later row becomes one RawRow keyed by those
// names; blank cells are left out and fully blank rows are dropped. Numeric cells under
// a date header are Excel serial dates and are converted to YYYY-MM-DD.
func DecodeWorkbook(r io.Reader) ([]shift.RawRow, error) {
	f, err := excelize.OpenReader(r, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableFile, err)
	}

	defer func() {
		_ = f.Close()
	}()

	sheetName := f.GetSheetName(0)

	sheetRows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheetName, err)
	}

	if len(sheetRows) < 2 { //nolint:mnd // header + at least one data row
		return nil, ErrNoDataRows
	}

	header := make([]string, len(sheetRows[0]))
	for i, name := range sheetRows[0] {
		header[i] = strings.TrimSpace(name)
	}

	rows := make([]shift.RawRow, 0, len(sheetRows)-1)

	for _, cells := range sheetRows[1:] {
		row := decodeRow(header, cells)
		if len(row) == 0 {
			continue
		}

		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, ErrNoDataRows
	}

	return rows, nil
}

func decodeRow(header, cells []string) shift.RawRow {
	row := make(shift.RawRow, len(header))

	for i, name := range header {
		if name == "" || i >= len(cells) {
			continue
		}

		value := strings.TrimSpace(cells[i])
		if value == "" {
			continue
		}

		if shift.IsDateField(name) {
			value = serialToDate(value)
		}

		row[name] = value
	}

	return row
}

// serialToDate converts an Excel serial date ("45903") to "2025-09-03". Non-numeric
// values are returned unchanged.
func serialToDate(value string) string {
	serial, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return value
	}

	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return value
	}

	return t.Format(time.DateOnly)
}

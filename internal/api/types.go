package api

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/turnos-io/turnos/internal/ingestion"
	"github.com/turnos-io/turnos/internal/shift"
)

type (
	// HealthStatus represents the health check response structure.
	HealthStatus struct {
		Status      string `json:"status"`
		ServiceName string `json:"serviceName"`
		Version     string `json:"version"`
		Uptime      string `json:"uptime,omitempty"`
	}

	// UpsertRequest is the body of PUT /api/v1/turnos. Shift accepts any known label
	// ("mañana", "night", ...); the rules are checked by the service.
	UpsertRequest struct {
		Date       string `json:"date"       validate:"required,max=10"`
		Shift      string `json:"shift"      validate:"max=64"`
		IsVacation bool   `json:"isVacation"`
		Notes      string `json:"notes"      validate:"max=2000"`
		PersonID   string `json:"personId"   validate:"max=128"`
	}

	// RecordResponse is the JSON form of one stored record. Shift is null when the
	// record carries no shift.
	RecordResponse struct {
		Date       string    `json:"date"`
		Shift      *string   `json:"shift"`
		IsVacation bool      `json:"isVacation"`
		Notes      string    `json:"notes"`
		PersonID   string    `json:"personId,omitempty"`
		CreatedAt  time.Time `json:"createdAt"`
		UpdatedAt  time.Time `json:"updatedAt"`
	}

	// BatchReportResponse is the result of a batch or spreadsheet import.
	BatchReportResponse struct {
		Inserted int              `json:"inserted"`
		Updated  int              `json:"updated"`
		Skipped  int              `json:"skipped"`
		Warnings []string         `json:"warnings"`
		Items    []RecordResponse `json:"items"`
	}

	// StatsResponse aggregates records; perShift always lists every shift.
	StatsResponse struct {
		Total         int            `json:"total"`
		PerShift      map[string]int `json:"perShift"`
		VacationCount int            `json:"vacationCount"`
	}
)

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}

		return name
	})

	return validate
}

func (req *UpsertRequest) toInput() shift.Input {
	return shift.Input{
		Date:       req.Date,
		Shift:      req.Shift,
		IsVacation: req.IsVacation,
		Notes:      req.Notes,
		PersonID:   req.PersonID,
	}
}

func newRecordResponse(record shift.Record) RecordResponse {
	resp := RecordResponse{
		Date:       record.Date,
		IsVacation: record.IsVacation,
		Notes:      record.Notes,
		PersonID:   record.PersonID,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}

	if record.HasShift() {
		s := record.Shift.String()
		resp.Shift = &s
	}

	return resp
}

func newRecordList(records []shift.Record) []RecordResponse {
	list := make([]RecordResponse, 0, len(records))
	for _, record := range records {
		list = append(list, newRecordResponse(record))
	}

	return list
}

func newBatchReportResponse(report *ingestion.BatchReport) BatchReportResponse {
	warnings := report.Warnings
	if warnings == nil {
		warnings = []string{}
	}

	return BatchReportResponse{
		Inserted: report.Inserted,
		Updated:  report.Updated,
		Skipped:  report.Skipped,
		Warnings: warnings,
		Items:    newRecordList(report.Items),
	}
}

func newStatsResponse(stats shift.Stats) StatsResponse {
	perShift := make(map[string]int, len(shift.Shifts()))
	for _, s := range shift.Shifts() {
		perShift[s.String()] = stats.PerShift[s]
	}

	return StatsResponse{
		Total:         stats.Total,
		PerShift:      perShift,
		VacationCount: stats.VacationCount,
	}
}

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/turnos-io/turnos/internal/api/middleware"
	"github.com/turnos-io/turnos/internal/ingestion"
	"github.com/turnos-io/turnos/internal/shift"
)

// handleGetRange lists records in [from, to], both required.
// GET /api/v1/turnos?from=YYYY-MM-DD&to=YYYY-MM-DD&personId=
func (s *Server) handleGetRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	records, err := s.service.GetByRange(r.Context(), q.Get("from"), q.Get("to"), q.Get("personId"))
	if err != nil {
		s.writeDomainError(w, r, err, true)

		return
	}

	s.writeJSON(w, r, http.StatusOK, newRecordList(records))
}

// handleGetByDate returns one record or 404.
// GET /api/v1/turnos/{date}?personId=
func (s *Server) handleGetByDate(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")

	record, err := s.service.GetByDate(r.Context(), date, r.URL.Query().Get("personId"))
	if err != nil {
		s.writeDomainError(w, r, err, true)

		return
	}

	if record == nil {
		WriteErrorResponse(w, r, s.logger, NotFound(fmt.Sprintf("No shift record for %s", date)))

		return
	}

	s.writeJSON(w, r, http.StatusOK, newRecordResponse(*record))
}

// handleStats aggregates records, optionally bounded by from/to.
// GET /api/v1/turnos/stats?from=&to=&personId=
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	stats, err := s.service.Stats(r.Context(), shift.StatsQuery{
		From:     q.Get("from"),
		To:       q.Get("to"),
		PersonID: q.Get("personId"),
	})
	if err != nil {
		s.writeDomainError(w, r, err, true)

		return
	}

	s.writeJSON(w, r, http.StatusOK, newStatsResponse(stats))
}

// handleUpsert creates or replaces the record for one identity.
// PUT /api/v1/turnos
//
//   - 415: Content-Type is not application/json
//   - 400: body is empty or not a JSON object
//   - 422: the record breaks a field constraint or a business rule
//   - 200: the stored record
func (s *Server) handleUpsert(w http.ResponseWriter, r *http.Request) {
	if !hasJSONContentType(r.Header.Get("Content-Type")) {
		WriteErrorResponse(w, r, s.logger, UnsupportedMediaType("Content-Type must be application/json"))

		return
	}

	var req UpsertRequest
	if problem := s.decodeBody(r, &req); problem != nil {
		WriteErrorResponse(w, r, s.logger, problem)

		return
	}

	if err := s.validate.Struct(&req); err != nil {
		WriteErrorResponse(w, r, s.logger,
			UnprocessableEntity("Record failed validation").WithErrors(fieldErrors(err)))

		return
	}

	record, err := s.service.UpsertOne(r.Context(), req.toInput())
	if err != nil {
		s.writeDomainError(w, r, err, false)

		return
	}

	s.writeJSON(w, r, http.StatusOK, newRecordResponse(record))
}

// handleBatch imports a JSON array of loosely typed rows.
// POST /api/v1/turnos/batch
//
// Row failures are reported in the body; the status is 200 unless storage fails.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if !hasJSONContentType(r.Header.Get("Content-Type")) {
		WriteErrorResponse(w, r, s.logger, UnsupportedMediaType("Content-Type must be application/json"))

		return
	}

	var rows []shift.RawRow
	if problem := s.decodeBody(r, &rows); problem != nil {
		WriteErrorResponse(w, r, s.logger, problem)

		return
	}

	s.ingest(w, r, "batch", rows)
}

// handleExcelUpload imports the first sheet of an .xlsx upload (multipart field "file").
// POST /api/v1/ingest/excel
func (s *Server) handleExcelUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes())

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteErrorResponse(w, r, s.logger,
				BadRequest(fmt.Sprintf("%s (max %dMB)", ingestion.ErrUploadTooLarge, s.config.MaxUploadMB)))

			return
		}

		WriteErrorResponse(w, r, s.logger, BadRequest("A file must be uploaded in the multipart field \"file\""))

		return
	}

	defer func() {
		_ = file.Close()
	}()

	if err := ingestion.CheckUpload(header.Filename, header.Size, s.config.MaxUploadMB); err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest(err.Error()))

		return
	}

	rows, err := ingestion.DecodeWorkbook(file)
	if err != nil {
		s.logger.Warn("Rejected spreadsheet upload",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("filename", header.Filename),
			slog.String("error", err.Error()),
		)

		WriteErrorResponse(w, r, s.logger, BadRequest(err.Error()))

		return
	}

	s.ingest(w, r, "excel", rows)
}

func (s *Server) ingest(w http.ResponseWriter, r *http.Request, source string, rows []shift.RawRow) {
	startTime := time.Now()

	report, err := s.pipeline.Ingest(r.Context(), rows)
	if err != nil {
		s.writeDomainError(w, r, err, false)

		return
	}

	s.logger.Info("Shift rows imported",
		slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
		slog.String("source", source),
		slog.Int("rows", len(rows)),
		slog.Int("inserted", report.Inserted),
		slog.Int("updated", report.Updated),
		slog.Int("skipped", report.Skipped),
		slog.Duration("duration", time.Since(startTime)),
	)

	s.writeJSON(w, r, http.StatusOK, newBatchReportResponse(report))
}

// decodeBody decodes a JSON request body of at most MaxRequestSize bytes into dst.
func (s *Server) decodeBody(r *http.Request, dst any) *ProblemDetail {
	if r.ContentLength > s.config.MaxRequestSize {
		return PayloadTooLarge(fmt.Sprintf("Request body exceeds maximum size of %d bytes", s.config.MaxRequestSize))
	}

	decoder := json.NewDecoder(io.LimitReader(r.Body, s.config.MaxRequestSize))
	decoder.UseNumber()

	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return BadRequest("Request body cannot be empty")
		}

		return BadRequest("Invalid JSON: " + err.Error())
	}

	return nil
}

// writeDomainError logs server-side failures and writes the mapped problem.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error, queryParams bool) {
	problem := problemFor(err, queryParams)

	if problem.Status >= http.StatusInternalServerError {
		s.logger.Error("Request failed",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}

	WriteErrorResponse(w, r, s.logger, problem)
}

// fieldErrors flattens validator errors into "field: constraint" messages.
func fieldErrors(err error) []string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []string{err.Error()}
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		if fe.Param() != "" {
			messages = append(messages, fmt.Sprintf("%s: failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			messages = append(messages, fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag()))
		}
	}

	return messages
}

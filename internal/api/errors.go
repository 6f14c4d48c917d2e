package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/turnos-io/turnos/internal/api/middleware"
	"github.com/turnos-io/turnos/internal/shift"
)

// ProblemDetail represents an RFC 7807 Problem Details structure.
// See https://tools.ietf.org/html/rfc7807 for specification.
type ProblemDetail struct {
	Type          string   `json:"type"`
	Title         string   `json:"title"`
	Status        int      `json:"status"`
	Detail        string   `json:"detail,omitempty"`
	Instance      string   `json:"instance,omitempty"`
	CorrelationID string   `json:"correlationId,omitempty"`
	Errors        []string `json:"errors,omitempty"`
}

// NewProblemDetail creates a new RFC 7807 Problem Detail.
func NewProblemDetail(status int, title, detail string) *ProblemDetail {
	return &ProblemDetail{
		Type:   fmt.Sprintf("https://turnos.dev/problems/%d", status),
		Title:  title,
		Status: status,
		Detail: detail,
	}
}

// WithErrors attaches individual rule violations.
func (p *ProblemDetail) WithErrors(messages []string) *ProblemDetail {
	p.Errors = messages

	return p
}

// WriteErrorResponse writes an RFC 7807 compliant error response.
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, problem *ProblemDetail) {
	correlationID := middleware.GetCorrelationID(r.Context())

	if problem.CorrelationID == "" {
		problem.CorrelationID = correlationID
	}

	if problem.Instance == "" {
		problem.Instance = r.URL.Path
	}

	w.Header().Set("Content-Type", contentTypeProblemJSON)
	w.WriteHeader(problem.Status)

	if err := json.NewEncoder(w).Encode(problem); err != nil {
		logger.Error("Failed to encode error response",
			slog.String("correlation_id", correlationID),
			slog.String("path", r.URL.Path),
			slog.String("method", r.Method),
			slog.Any("encode_error", err),
			slog.Int("status", problem.Status),
		)
	}
}

// problemFor maps a domain error to a problem response.
//
// Normalization and validation failures of a request body are 422; the same failures
// in query or path parameters are 400 (queryParams). Inverted ranges are 400 and
// repository failures 500, with the cause kept out of the response body.
func problemFor(err error, queryParams bool) *ProblemDetail {
	var (
		normErr  *shift.NormalizationError
		valErr   *shift.ValidationError
		rangeErr *shift.InvalidRangeError
		repoErr  *shift.RepositoryError
	)

	switch {
	case errors.As(err, &valErr):
		if queryParams {
			return BadRequest(valErr.Error()).WithErrors(valErr.Messages)
		}

		return UnprocessableEntity("Record failed validation").WithErrors(valErr.Messages)
	case errors.As(err, &normErr):
		if queryParams {
			return BadRequest(normErr.Error())
		}

		return UnprocessableEntity(normErr.Error())
	case errors.As(err, &rangeErr):
		return BadRequest(rangeErr.Error())
	case errors.As(err, &repoErr):
		return InternalServerError("The shift store could not complete the request")
	default:
		return InternalServerError("An unexpected error occurred")
	}
}

// InternalServerError creates a 500 Internal Server Error problem.
func InternalServerError(detail string) *ProblemDetail {
	return NewProblemDetail(http.StatusInternalServerError, "Internal Server Error", detail)
}

// BadRequest creates a 400 Bad Request problem.
func BadRequest(detail string) *ProblemDetail {
	return NewProblemDetail(http.StatusBadRequest, "Bad Request", detail)
}

// NotFound creates a 404 Not Found problem.
func NotFound(detail string) *ProblemDetail {
	return NewProblemDetail(http.StatusNotFound, "Not Found", detail)
}

// PayloadTooLarge creates a 413 Payload Too Large problem.
func PayloadTooLarge(detail string) *ProblemDetail {
	return NewProblemDetail(http.StatusRequestEntityTooLarge, "Payload Too Large", detail)
}

// UnsupportedMediaType creates a 415 Unsupported Media Type problem.
func UnsupportedMediaType(detail string) *ProblemDetail {
	return NewProblemDetail(http.StatusUnsupportedMediaType, "Unsupported Media Type", detail)
}

// UnprocessableEntity creates a 422 Unprocessable Entity problem.
func UnprocessableEntity(detail string) *ProblemDetail {
	return NewProblemDetail(http.StatusUnprocessableEntity, "Unprocessable Entity", detail)
}

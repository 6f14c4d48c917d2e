package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/turnos-io/turnos/internal/api/middleware"
)

const (
	healthCheckTimeout     = 2 * time.Second
	contentTypeJSON        = "application/json"
	contentTypeProblemJSON = "application/problem+json"
	versionHeader          = "X-Turnos-Version"
)

// Route pairs a ServeMux pattern with its handler.
type Route struct {
	Pattern string
	Handler http.HandlerFunc
}

// setupRoutes registers every endpoint. "GET /api/v1/turnos/stats" is more specific
// than "GET /api/v1/turnos/{date}", so ServeMux never routes "stats" as a date.
func (s *Server) setupRoutes(mux *http.ServeMux) {
	s.registerRoutes(mux,
		Route{"GET /ping", s.handlePing},
		Route{"GET /ready", s.handleReady},
		Route{"GET /health", s.handleHealth},
		Route{"/", s.handleNotFound},

		Route{"GET /api/v1/turnos", s.handleGetRange},
		Route{"GET /api/v1/turnos/stats", s.handleStats},
		Route{"GET /api/v1/turnos/{date}", s.handleGetByDate},
		Route{"PUT /api/v1/turnos", s.handleUpsert},
		Route{"POST /api/v1/turnos/batch", s.handleBatch},
		Route{"POST /api/v1/ingest/excel", s.handleExcelUpload},
	)
}

func (s *Server) registerRoutes(mux *http.ServeMux, routes ...Route) {
	for _, route := range routes {
		mux.Handle(route.Pattern, route.Handler)

		s.logger.Debug("Registered route", slog.String("pattern", route.Pattern))
	}
}

// handlePing responds to liveness probes.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set(versionHeader, Version)
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write([]byte("pong")); err != nil {
		s.logWriteError(r, "ping", err)
	}
}

// handleReady responds to readiness probes: 200 when the shift store answers its
// health check within two seconds, 503 otherwise.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status, body := http.StatusOK, "ready"

	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := s.store.HealthCheck(ctx); err != nil {
			s.logger.Error("Storage health check failed",
				slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
				slog.String("error", err.Error()),
			)

			status, body = http.StatusServiceUnavailable, "storage unavailable"
		}
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)

	if _, err := w.Write([]byte(body)); err != nil {
		s.logWriteError(r, "ready", err)
	}
}

// handleHealth returns service status, version and uptime.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var uptime string
	if !s.startTime.IsZero() {
		uptime = time.Since(s.startTime).Round(time.Second).String()
	}

	w.Header().Set(versionHeader, Version)

	s.writeJSON(w, r, http.StatusOK, HealthStatus{
		Status:      "healthy",
		ServiceName: "turnos",
		Version:     Version,
		Uptime:      uptime,
	})
}

// handleNotFound returns RFC 7807 compliant 404 responses for unknown endpoints.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	WriteErrorResponse(w, r, s.logger, NotFound("The requested resource was not found"))
}

// writeJSON marshals body before writing any header so an encoding failure can still
// become a 500.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		s.logger.Error("Failed to encode response",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("error", err.Error()),
		)
		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to encode response"))

		return
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)

	if _, err := w.Write(data); err != nil {
		s.logWriteError(r, r.URL.Path, err)
	}
}

func (s *Server) logWriteError(r *http.Request, what string, err error) {
	s.logger.Error("Failed to write response",
		slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
		slog.String("response", what),
		slog.String("error", err.Error()),
	)
}

// hasJSONContentType checks if Content-Type header starts with "application/json".
// This allows charset parameters (e.g., "application/json; charset=utf-8").
func hasJSONContentType(contentType string) bool {
	return strings.HasPrefix(strings.TrimSpace(contentType), contentTypeJSON)
}

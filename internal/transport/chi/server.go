package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/goose-osm/goose/internal/domain"
	dompreset "github.com/goose-osm/goose/internal/domain/preset"
	"github.com/goose-osm/goose/internal/metrics"
	healthuc "github.com/goose-osm/goose/internal/usecase/health"
	searchuc "github.com/goose-osm/goose/internal/usecase/search"
)

const maxBodyBytes = 64 << 10

// Searcher runs searches and lists the presets they accept.
type Searcher interface {
	Search(ctx context.Context, req searchuc.Request) (*searchuc.Response, error)
	Presets(ctx context.Context) ([]*dompreset.CategoryPreset, error)
}

// HealthChecker reports readiness.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the JSON API.
type Server struct {
	search        Searcher
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(search Searcher, health HealthChecker, logger *zap.Logger) *Server {
	s := &Server{
		search: search,
		health: health,
		logger: logger,
	}
	// ordered: a timeout wrapping an upstream failure reports as timeout
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrTimeout, http.StatusGatewayTimeout, domain.CategoryTimeout),
		sentinelHandler(context.DeadlineExceeded, http.StatusGatewayTimeout, domain.CategoryTimeout),
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, domain.CategoryInvalidInput),
		sentinelHandler(domain.ErrPresetNotFound, http.StatusNotFound, domain.CategoryPresetNotFound),
		sentinelHandler(domain.ErrUnresolvedLocation, http.StatusUnprocessableEntity, domain.CategoryLocationNotFound),
		sentinelHandler(domain.ErrFeatureFetchFailed, http.StatusBadGateway, domain.CategoryMapDataUnavailable),
	}
	return s
}

// Routes mounts the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/presets", s.ListPresets)
		r.Post("/search", s.Search)
	})
}

// ListPresets handles GET /api/v1/presets.
func (s *Server) ListPresets(w http.ResponseWriter, r *http.Request) {
	presets, err := s.search.Presets(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]presetDTO, len(presets))
	for i, p := range presets {
		items[i] = presetToDTO(p)
	}
	writeJSON(w, http.StatusOK, presetListResponse{Presets: items, Count: len(items)})
}

// Search handles POST /api/v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var body searchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, domain.CategoryInvalidInput, "Invalid request body: "+err.Error())
		return
	}

	req, err := body.toRequest()
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp, err := s.search.Search(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponseToDTO(resp))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code domain.Category, message string) {
	w.Header().Set(metrics.ErrorCodeHeader, string(code))
	writeJSON(w, status, errorResponse{
		Code:    string(code),
		Message: message,
	})
}

// safeDomainMessage returns a user-facing message without exposing upstream internals.
// Invalid input messages are built from the request itself and are passed through.
func safeDomainMessage(err error) string {
	switch domain.CategoryOf(err) {
	case domain.CategoryInvalidInput:
		return err.Error()
	case domain.CategoryPresetNotFound:
		return "No such search category"
	case domain.CategoryLocationNotFound:
		return "Could not find your location"
	case domain.CategoryMapDataUnavailable:
		return "Map data is temporarily unavailable, please try again later"
	case domain.CategoryTimeout:
		return "The search took too long, please try again"
	default:
		return "internal error"
	}
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code domain.Category) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			s.logger.Warn("domain error", zap.Error(err))
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, domain.CategoryUnexpected, msg)
}

// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/okian/catalogd/internal/adapters/repository"
	service "github.com/okian/catalogd/internal/app"
	"github.com/okian/catalogd/internal/domain/model"
	"github.com/okian/catalogd/internal/domain/types"
)

const maxBodyBytes = 1 << 20

// IngestDependencies runs synchronous and queued ingests.
type IngestDependencies interface {
	Ingest(ctx context.Context, query string, limit int) model.IngestResult
	Submit(ctx context.Context, query string, limit int) (model.JobStatus, bool, error)
	Job(ctx context.Context, id string) (model.JobStatus, error)
	RecentJobs(ctx context.Context, n int) ([]model.JobStatus, error)
}

// CatalogDependencies serves catalog reads.
type CatalogDependencies interface {
	ListProducts(ctx context.Context, q repository.Query) (types.ProductPage, error)
	Product(ctx context.Context, externalID string) (types.Product, error)
	CatalogStats(ctx context.Context, f repository.Filter) (types.CatalogStats, error)
}

// Dependencies required by HTTP handlers.
type Dependencies interface {
	IngestDependencies
	CatalogDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	ingestHandler   *IngestHandler
	productsHandler *ProductsHandler
	ingestLimiter   *rate.Limiter
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		ingestHandler:   NewIngestHandler(deps),
		productsHandler: NewProductsHandler(deps),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("GET /metrics", s.healthHandler.MetricsHandler())
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /api/products/parse",
		MetricsMiddleware(RateLimitMiddleware(s.ingestLimiter, s.ingestHandler.HandleParse), "products_parse"))
	mux.HandleFunc("GET /api/products", MetricsMiddleware(s.productsHandler.HandleList, "products"))
	mux.HandleFunc("GET /api/products/stats", MetricsMiddleware(s.productsHandler.HandleStats, "products_stats"))
	mux.HandleFunc("GET /api/products/{external_id}", MetricsMiddleware(s.productsHandler.HandleGet, "product"))

	mux.HandleFunc("POST /api/ingest/jobs",
		MetricsMiddleware(RateLimitMiddleware(s.ingestLimiter, s.ingestHandler.HandleSubmit), "jobs_submit"))
	mux.HandleFunc("GET /api/ingest/jobs", MetricsMiddleware(s.ingestHandler.HandleRecent, "jobs"))
	mux.HandleFunc("GET /api/ingest/jobs/{id}", MetricsMiddleware(s.ingestHandler.HandleGetJob, "job"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps service sentinels onto status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrEmptyQuery), errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(ErrBadRequest, err)
	}
	return nil
}

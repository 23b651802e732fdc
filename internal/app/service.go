// Package service wires ingestion, background jobs and catalog reads behind
// the operations the HTTP API and the scheduler call.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	eventqueue "github.com/okian/catalogd/internal/adapters/mq/queue"
	workerpool "github.com/okian/catalogd/internal/adapters/mq/worker"
	"github.com/okian/catalogd/internal/adapters/repository"
	"github.com/okian/catalogd/internal/adapters/results"
	"github.com/okian/catalogd/internal/adapters/source"
	"github.com/okian/catalogd/internal/domain/dedupe"
	"github.com/okian/catalogd/internal/domain/model"
	"github.com/okian/catalogd/internal/domain/types"
	"github.com/okian/catalogd/pkg/logger"
	"github.com/okian/catalogd/pkg/metrics"
)

const (
	defaultWorkerCount = 2
	defaultQueueSize   = 256
	defaultDedupeSize  = 10000
	defaultLimit       = 100
	defaultMaxLimit    = 1000
	defaultStopTimeout = 30 * time.Second
	recentJobsDefault  = 20
)

// Service owns the catalog store and the ingest pipeline.
type Service struct {
	mu sync.RWMutex

	store    repository.Store
	fetcher  Fetcher
	results  results.Recorder
	ingester *Ingester
	deduper  dedupe.Deduper
	queue    *eventqueue.InMemoryQueue
	pool     *workerpool.Pool

	workerCount  int
	queueSize    int
	dedupeSize   int
	defaultLimit int
	maxLimit     int
	strict       bool

	stopTimeout time.Duration
	runCancel   context.CancelFunc

	now     func() time.Time
	started bool
	logger  logger.Logger
}

// New constructs a Service. Nothing runs until Start.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:  defaultWorkerCount,
		queueSize:    defaultQueueSize,
		dedupeSize:   defaultDedupeSize,
		defaultLimit: defaultLimit,
		maxLimit:     defaultMaxLimit,
		stopTimeout:  defaultStopTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds missing components with defaults and starts the workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
		s.logger.Info(ctx, "using in-memory catalog store")
	}
	if s.fetcher == nil {
		s.fetcher = source.New()
	}
	if s.results == nil {
		s.results = results.NewMemoryRecorder(0)
	}

	s.ingester = NewIngester(s.fetcher, repository.NewCatalogStore(s.store), WithIngesterStrict(s.strict))
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.ingester, s.results,
		workerpool.WithOnDone(s.release))

	// Jobs outlive the caller's ctx; Stop decides when they are interrupted.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.runCancel = cancel
	s.pool.Start(runCtx)

	if n, err := s.store.Count(ctx); err == nil {
		metrics.UpdateCatalogEntities(n)
	}

	s.started = true
	s.logger.Info(ctx, "catalog service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Bool("strictSuccess", s.strict),
	)
	return nil
}

// Stop drains queued jobs, then closes the store and the recorder. Jobs
// still running after the stop timeout are interrupted, and whatever is left
// in the queue finishes as interrupted too, so every job ends up done.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.stopTimeout)
	defer cancel()
	s.logger.Info(ctx, "stopping catalog service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool did not drain in time, interrupting jobs", logger.Error(err))
		s.runCancel()
		waitCtx, waitCancel := context.WithTimeout(context.Background(), s.stopTimeout)
		if err := s.pool.Shutdown(waitCtx); err != nil {
			s.logger.Error(ctx, "worker pool did not stop", logger.Error(err))
		}
		waitCancel()
	}
	s.runCancel()
	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "closing store failed", logger.Error(err))
	}
	if err := s.results.Close(); err != nil {
		s.logger.Error(ctx, "closing results failed", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "catalog service stopped")
}

func (s *Service) running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Limit applies the default and the ceiling to a requested limit.
func (s *Service) Limit(requested int) int {
	switch {
	case requested <= 0:
		return s.defaultLimit
	case requested > s.maxLimit:
		return s.maxLimit
	default:
		return requested
	}
}

// Ingest runs one synchronous ingest. Like the pipeline itself it never
// returns an error.
func (s *Service) Ingest(ctx context.Context, query string, limit int) model.IngestResult {
	if !s.running() {
		return model.IngestResult{Query: strings.TrimSpace(query), Message: ErrNotStarted.Error()}
	}
	return s.ingester.Ingest(ctx, query, s.Limit(limit))
}

// Submit queues an ingest job. While a job for the same query is pending or
// running, that job is returned with duplicate set instead of a new one.
func (s *Service) Submit(ctx context.Context, query string, limit int) (st model.JobStatus, duplicate bool, err error) {
	if !s.running() {
		return model.JobStatus{}, false, ErrNotStarted
	}
	q := strings.TrimSpace(query)
	if q == "" {
		return model.JobStatus{}, false, ErrEmptyQuery
	}

	id := uuid.NewString()
	key := dedupe.Key(q)
	holder, claimed, err := s.deduper.Claim(ctx, key, id)
	if err != nil {
		metrics.RecordErrorByComponent("dedupe", "full")
		return model.JobStatus{}, false, fmt.Errorf("%w: %w", ErrBackpressure, err)
	}
	if !claimed {
		metrics.RecordJobDuplicate()
		existing, err := s.results.Get(ctx, holder)
		if err != nil {
			existing = model.JobStatus{ID: holder, Query: q, State: model.JobQueued}
		}
		s.logger.Debug(ctx, "query already pending", logger.String("query", q), logger.String("job_id", holder))
		return existing, true, nil
	}

	job := model.Job{ID: id, Query: q, Limit: s.Limit(limit), EnqueuedAt: s.now()}
	st = model.JobStatus{ID: job.ID, Query: job.Query, Limit: job.Limit, State: model.JobQueued, EnqueuedAt: job.EnqueuedAt}
	if err := s.results.Save(ctx, st); err != nil {
		s.logger.Warn(ctx, "saving queued job failed", logger.String("job_id", id), logger.Error(err))
	}

	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.deduper.Release(ctx, key, id)
		s.abandon(ctx, st, err)
		if errors.Is(err, eventqueue.ErrFull) {
			return model.JobStatus{}, false, fmt.Errorf("%w: %w", ErrBackpressure, err)
		}
		return model.JobStatus{}, false, err
	}

	s.logger.Info(ctx, "job queued", logger.String("job_id", id), logger.String("query", q), logger.Int("limit", job.Limit))
	return st, false, nil
}

// abandon records a job that never reached the queue as finished.
func (s *Service) abandon(ctx context.Context, st model.JobStatus, cause error) {
	finished := s.now()
	st.State = model.JobDone
	st.FinishedAt = &finished
	st.Result = &model.IngestResult{Query: st.Query, Message: "not queued: " + cause.Error()}
	if err := s.results.Save(ctx, st); err != nil {
		s.logger.Warn(ctx, "saving abandoned job failed", logger.String("job_id", st.ID), logger.Error(err))
	}
}

func (s *Service) release(ctx context.Context, job model.Job, _ model.IngestResult) {
	s.deduper.Release(ctx, dedupe.Key(job.Query), job.ID)
}

// Job returns the latest status of a job.
func (s *Service) Job(ctx context.Context, id string) (model.JobStatus, error) {
	if !s.running() {
		return model.JobStatus{}, ErrNotStarted
	}
	st, err := s.results.Get(ctx, id)
	if errors.Is(err, results.ErrNotFound) {
		return model.JobStatus{}, fmt.Errorf("%w: job %s", ErrNotFound, id)
	}
	return st, err
}

// RecentJobs lists the newest jobs first.
func (s *Service) RecentJobs(ctx context.Context, n int) ([]model.JobStatus, error) {
	if !s.running() {
		return nil, ErrNotStarted
	}
	if n <= 0 {
		n = recentJobsDefault
	}
	return s.results.Recent(ctx, n)
}

// ListProducts returns one filtered, sorted page of the catalog.
func (s *Service) ListProducts(ctx context.Context, q repository.Query) (types.ProductPage, error) {
	if !s.running() {
		return types.ProductPage{}, ErrNotStarted
	}
	page, err := s.store.List(ctx, q)
	if err != nil {
		return types.ProductPage{}, translate(err)
	}
	return types.NewProductPage(&page), nil
}

// Product returns one product by external id.
func (s *Service) Product(ctx context.Context, externalID string) (types.Product, error) {
	if !s.running() {
		return types.Product{}, ErrNotStarted
	}
	e, err := s.store.Get(ctx, externalID)
	if err != nil {
		return types.Product{}, translate(err)
	}
	return types.NewProduct(&e), nil
}

// CatalogStats summarizes the products matching f.
func (s *Service) CatalogStats(ctx context.Context, f repository.Filter) (types.CatalogStats, error) {
	if !s.running() {
		return types.CatalogStats{}, ErrNotStarted
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return types.CatalogStats{}, fmt.Errorf("%w: min_price exceeds max_price", ErrInvalidInput)
	}
	st, err := s.store.Stats(ctx, f)
	if err != nil {
		return types.CatalogStats{}, translate(err)
	}
	return types.NewCatalogStats(&st), nil
}

func translate(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, repository.ErrInvalidQuery):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	default:
		return err
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":      s.started,
		"workerCount":  s.workerCount,
		"queueSize":    s.queueSize,
		"dedupeSize":   s.dedupeSize,
		"defaultLimit": s.defaultLimit,
		"maxLimit":     s.maxLimit,
		"strict":       s.strict,
	}
	if s.started {
		ctx := context.Background()
		stats["queueLength"] = s.queue.Len(ctx)
		stats["pendingQueries"] = s.deduper.Size()
		if n, err := s.store.Count(ctx); err == nil {
			stats["totalProducts"] = n
			metrics.UpdateCatalogEntities(n)
		}
	}
	return stats
}

// Package scheduler periodically submits ingest jobs for a fixed list of
// search queries.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/okian/catalogd/internal/domain/model"
	"github.com/okian/catalogd/pkg/logger"
	"github.com/okian/catalogd/pkg/metrics"
)

// Submitter queues one ingest job.
type Submitter interface {
	Submit(ctx context.Context, query string, limit int) (model.JobStatus, bool, error)
}

// Round counts what one tick did.
type Round struct {
	Submitted  int
	Duplicates int
	Failed     int
}

// Scheduler wraps robfig/cron and submits every query on each tick.
type Scheduler struct {
	mu         sync.Mutex
	cron       *cron.Cron
	submitter  Submitter
	spec       string
	queries    []string
	limit      int
	runOnStart bool
	started    bool
	logger     logger.Logger
}

// New creates a Scheduler firing on spec, a standard cron expression or a
// descriptor such as "@every 6h". Blank queries are dropped.
func New(submitter Submitter, spec string, queries []string, opts ...Option) *Scheduler {
	s := &Scheduler{
		submitter: submitter,
		spec:      strings.TrimSpace(spec),
		logger:    logger.Get().Named("scheduler"),
	}
	for _, q := range queries {
		if q = strings.TrimSpace(q); q != "" {
			s.queries = append(s.queries, q)
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cron = cron.New(
		cron.WithLogger(cronLogger{l: s.logger}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{l: s.logger})),
	)
	return s
}

// Start registers the tick and starts the cron loop. ctx is handed to every
// tick, so cancelling it stops submissions without stopping the loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if len(s.queries) == 0 {
		return ErrNoQueries
	}
	schedule, err := cron.ParseStandard(s.spec)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidSpec, s.spec, err)
	}
	s.cron.Schedule(schedule, cron.FuncJob(func() { s.RunOnce(ctx) }))
	s.cron.Start()
	s.started = true

	s.logger.Info(ctx, "scheduler started",
		logger.String("spec", s.spec),
		logger.Int("queries", len(s.queries)),
		logger.Int("limit", s.limit),
	)
	if s.runOnStart {
		go s.RunOnce(ctx)
	}
	return nil
}

// Stop stops the loop and waits for a running tick to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	<-s.cron.Stop().Done()
	s.started = false
	s.logger.Info(context.Background(), "scheduler stopped")
}

// RunOnce submits every query once.
func (s *Scheduler) RunOnce(ctx context.Context) Round {
	metrics.RecordSchedulerTick()
	var r Round
	for _, q := range s.queries {
		if ctx.Err() != nil {
			r.Failed += len(s.queries) - r.Submitted - r.Duplicates - r.Failed
			break
		}
		st, duplicate, err := s.submitter.Submit(ctx, q, s.limit)
		switch {
		case err != nil:
			r.Failed++
			s.logger.Warn(ctx, "scheduled submit failed", logger.String("query", q), logger.Error(err))
		case duplicate:
			r.Duplicates++
			s.logger.Debug(ctx, "scheduled query still pending", logger.String("query", q), logger.String("job_id", st.ID))
		default:
			r.Submitted++
		}
	}
	s.logger.Info(ctx, "scheduler tick",
		logger.Int("submitted", r.Submitted),
		logger.Int("duplicates", r.Duplicates),
		logger.Int("failed", r.Failed),
	)
	return r
}

// cronLogger routes cron's own messages into the service logger.
type cronLogger struct {
	l logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(context.Background(), msg, pairs(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(context.Background(), msg, append(pairs(keysAndValues), logger.Error(err))...)
}

func pairs(kv []interface{}) []logger.Field {
	out := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}

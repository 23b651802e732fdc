// Package worker runs queued ingest jobs.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/catalogd/internal/domain/model"
	"github.com/okian/catalogd/pkg/logger"
	"github.com/okian/catalogd/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// busy counts jobs in flight across all workers.
var busy atomic.Int64 //nolint:gochecknoglobals // mirrors a process-wide gauge

// Ingester performs one ingest run. It never fails; the outcome is in the result.
type Ingester interface {
	Ingest(ctx context.Context, query string, limit int) model.IngestResult
}

// StatusSink receives every state change of a job.
type StatusSink interface {
	Save(ctx context.Context, st model.JobStatus) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Job
}

// DoneFunc is called once a job has finished and its status was recorded.
type DoneFunc func(ctx context.Context, job model.Job, res model.IngestResult)

// Worker processes jobs until its queue closes.
type Worker interface {
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// InMemoryWorker pulls jobs from a Queue and runs them one at a time.
type InMemoryWorker struct {
	queue    Queue
	ingester Ingester
	sink     StatusSink
	onDone   DoneFunc
	now      func() time.Time
	name     string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker.
func NewInMemoryWorker(queue Queue, ingester Ingester, sink StatusSink, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		ingester: ingester,
		sink:     sink,
		now:      func() time.Time { return time.Now().UTC() },
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run processes jobs until the queue closes or Shutdown is called. A
// cancelled ctx does not end the loop: the remaining jobs run against it,
// finish early and are still recorded as done.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(context.WithoutCancel(ctx))
	for {
		select {
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			w.process(ctx, job)
		}
	}
}

// Shutdown stops the worker after its current job.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, job model.Job) {
	start := time.Now()
	metrics.UpdateWorkerActiveCount(int(busy.Add(1)))
	defer func() {
		metrics.UpdateWorkerActiveCount(int(busy.Add(-1)))
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	record := context.WithoutCancel(ctx)
	started := w.now()
	st := model.JobStatus{
		ID:         job.ID,
		Query:      job.Query,
		Limit:      job.Limit,
		State:      model.JobRunning,
		EnqueuedAt: job.EnqueuedAt,
		StartedAt:  &started,
	}
	w.save(record, st)

	res := w.ingester.Ingest(ctx, job.Query, job.Limit)
	if err := ctx.Err(); err != nil && !res.Success {
		res.Message = "interrupted: " + err.Error()
	}

	finished := w.now()
	st.State = model.JobDone
	st.Result = &res
	st.FinishedAt = &finished
	w.save(record, st)

	outcome := "success"
	if !res.Success {
		outcome = "failure"
	}
	metrics.RecordJobProcessed(outcome)
	w.logger.Info(ctx, "job finished",
		logger.String("job_id", job.ID),
		logger.String("query", job.Query),
		logger.Bool("success", res.Success),
		logger.Int("applied", res.AppliedCount),
		logger.Duration("took", time.Since(start)),
	)

	if w.onDone != nil {
		w.onDone(record, job, res)
	}
}

func (w *InMemoryWorker) save(ctx context.Context, st model.JobStatus) {
	if w.sink == nil {
		return
	}
	if err := w.sink.Save(ctx, st); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "status_save")
		w.logger.Error(ctx, "saving job status failed",
			logger.String("job_id", st.ID),
			logger.String("state", string(st.State)),
			logger.Error(err),
		)
	}
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates workerCount workers. A count below one means one per CPU.
func NewPool(workerCount int, queue Queue, ingester Ingester, sink StatusSink, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		p.workers[i] = NewInMemoryWorker(queue, ingester, sink,
			append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)...)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue, lets workers drain what is queued and waits for
// them up to ctx or an internal timeout.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut int
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut++
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	if timedOut > 0 {
		return fmt.Errorf("%d workers still running: %w", timedOut, shutdownCtx.Err())
	}
	return nil
}

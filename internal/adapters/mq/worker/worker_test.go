package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/catalogd/internal/adapters/mq/queue"
	worker "github.com/okian/catalogd/internal/adapters/mq/worker"
	model "github.com/okian/catalogd/internal/domain/model"
	logging "github.com/okian/catalogd/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() { //nolint:gochecknoinits // workers log through the global logger
	_ = logging.Init(logging.WithLevel("error"))
}

type mockIngester struct {
	mu    sync.Mutex
	calls []string
	delay time.Duration
}

func (m *mockIngester) Ingest(ctx context.Context, query string, limit int) model.IngestResult {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	m.calls = append(m.calls, query)
	m.mu.Unlock()
	if query == "zzz" {
		return model.IngestResult{Query: query, Message: "no results"}
	}
	return model.IngestResult{Success: true, Query: query, AppliedCount: limit}
}

// blockingIngester waits for ctx to end and reports the ingest as failed.
type blockingIngester struct {
	started chan struct{}
	once    sync.Once
}

func (b *blockingIngester) Ingest(ctx context.Context, query string, _ int) model.IngestResult {
	b.once.Do(func() { close(b.started) })
	<-ctx.Done()
	return model.IngestResult{Query: query, Message: "no results"}
}

func (m *mockIngester) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type mockSink struct {
	mu     sync.Mutex
	states map[string][]model.JobState
	last   map[string]model.JobStatus
	err    error
}

func newMockSink() *mockSink {
	return &mockSink{states: map[string][]model.JobState{}, last: map[string]model.JobStatus{}}
}

func (s *mockSink) Save(_ context.Context, st model.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[st.ID] = append(s.states[st.ID], st.State)
	s.last[st.ID] = st
	return s.err
}

func (s *mockSink) get(id string) ([]model.JobState, model.JobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.JobState(nil), s.states[id]...), s.last[id]
}

func TestWorker_ProcessesJobs(t *testing.T) {
	convey.Convey("Given a worker reading from a queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(4))
		ing := &mockIngester{}
		sink := newMockSink()
		doneCh := make(chan model.IngestResult, 4)
		w := worker.NewInMemoryWorker(q, ing, sink, worker.WithName("w1"),
			worker.WithOnDone(func(_ context.Context, _ model.Job, res model.IngestResult) { doneCh <- res }))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		defer func() { _ = q.Close() }()
		go w.Run(ctx)

		convey.Convey("When a job is enqueued", func() {
			convey.So(q.Enqueue(ctx, model.Job{ID: "j1", Query: "phone", Limit: 7, EnqueuedAt: time.Now()}), convey.ShouldBeNil)

			var res model.IngestResult
			select {
			case res = <-doneCh:
			case <-time.After(2 * time.Second):
				t.Fatal("job was not processed")
			}

			convey.Convey("Then it runs once and its states are recorded in order", func() {
				convey.So(res.Success, convey.ShouldBeTrue)
				convey.So(res.AppliedCount, convey.ShouldEqual, 7)

				states, last := sink.get("j1")
				convey.So(states, convey.ShouldResemble, []model.JobState{model.JobRunning, model.JobDone})
				convey.So(last.Result, convey.ShouldNotBeNil)
				convey.So(last.StartedAt, convey.ShouldNotBeNil)
				convey.So(last.FinishedAt, convey.ShouldNotBeNil)
				convey.So(last.FinishedAt.Before(*last.StartedAt), convey.ShouldBeFalse)
			})
		})

		convey.Convey("When the ingest reports failure", func() {
			convey.So(q.Enqueue(ctx, model.Job{ID: "j2", Query: "zzz", Limit: 3}), convey.ShouldBeNil)

			select {
			case res := <-doneCh:
				convey.So(res.Success, convey.ShouldBeFalse)
			case <-time.After(2 * time.Second):
				t.Fatal("job was not processed")
			}

			convey.Convey("Then the job is still done", func() {
				states, _ := sink.get("j2")
				convey.So(states[len(states)-1], convey.ShouldEqual, model.JobDone)
			})
		})
	})
}

func TestWorker_SinkErrorsDoNotStopProcessing(t *testing.T) {
	convey.Convey("Given a status sink that always fails", t, func() {
		q := queue.NewInMemoryQueue()
		ing := &mockIngester{}
		sink := newMockSink()
		sink.err = errors.New("redis down")
		w := worker.NewInMemoryWorker(q, ing, sink)

		ctx := context.Background()
		_ = q.Enqueue(ctx, model.Job{ID: "a", Query: "phone", Limit: 1})
		_ = q.Enqueue(ctx, model.Job{ID: "b", Query: "case", Limit: 1})
		_ = q.Close()

		w.Run(ctx)

		convey.Convey("Then every job is still ingested", func() {
			convey.So(ing.count(), convey.ShouldEqual, 2)
		})
	})
}

func TestWorker_Shutdown(t *testing.T) {
	convey.Convey("Given an idle running worker", t, func() {
		q := queue.NewInMemoryQueue()
		w := worker.NewInMemoryWorker(q, &mockIngester{}, nil)
		go w.Run(context.Background())

		convey.Convey("Then shutdown returns promptly and is idempotent", func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			convey.So(w.Shutdown(ctx), convey.ShouldBeNil)
			convey.So(w.Shutdown(ctx), convey.ShouldBeNil)
		})
	})
}

func TestPool_DrainsOnShutdown(t *testing.T) {
	convey.Convey("Given a pool with queued jobs", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		ing := &mockIngester{delay: 5 * time.Millisecond}
		sink := newMockSink()
		p := worker.NewPool(3, q, ing, sink)
		convey.So(p.Size(), convey.ShouldEqual, 3)

		ctx := context.Background()
		for _, id := range []string{"1", "2", "3", "4", "5", "6"} {
			convey.So(q.Enqueue(ctx, model.Job{ID: id, Query: "q" + id, Limit: 1}), convey.ShouldBeNil)
		}
		p.Start(ctx)

		convey.Convey("When the pool shuts down", func() {
			err := p.Shutdown(ctx)

			convey.Convey("Then every queued job was run before workers exit", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(ing.count(), convey.ShouldEqual, 6)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})
}

func TestPool_CancelledContextStillFinishesJobs(t *testing.T) {
	convey.Convey("Given a pool whose running job blocks until its context ends", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		ing := &blockingIngester{started: make(chan struct{})}
		sink := newMockSink()
		p := worker.NewPool(1, q, ing, sink)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		for _, id := range []string{"a", "b", "c"} {
			convey.So(q.Enqueue(ctx, model.Job{ID: id, Query: "q" + id, Limit: 1}), convey.ShouldBeNil)
		}
		p.Start(ctx)
		<-ing.started

		convey.Convey("When the context is cancelled and the pool shuts down", func() {
			cancel()
			err := p.Shutdown(context.Background())

			convey.Convey("Then every queued job is recorded done as interrupted", func() {
				convey.So(err, convey.ShouldBeNil)
				for _, id := range []string{"a", "b", "c"} {
					states, last := sink.get(id)
					convey.So(states, convey.ShouldResemble, []model.JobState{model.JobRunning, model.JobDone})
					convey.So(last.Result, convey.ShouldNotBeNil)
					convey.So(last.Result.Message, convey.ShouldEqual, "interrupted: context canceled")
				}
			})
		})
	})
}

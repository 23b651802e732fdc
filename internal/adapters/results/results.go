// Package results keeps the status history of asynchronous ingest jobs.
package results

import (
	"context"
	"sort"
	"sync"

	"github.com/okian/catalogd/internal/domain/model"
)

const defaultMaxEntries = 1000

// Recorder stores job statuses by id. Save overwrites earlier states of the
// same job.
type Recorder interface {
	Save(ctx context.Context, st model.JobStatus) error
	Get(ctx context.Context, id string) (model.JobStatus, error)
	// Recent returns up to n jobs, newest enqueue first.
	Recent(ctx context.Context, n int) ([]model.JobStatus, error)
	Close() error
}

// MemoryRecorder is a bounded in-process Recorder. The oldest jobs are
// forgotten first.
type MemoryRecorder struct {
	mu         sync.RWMutex
	byID       map[string]model.JobStatus
	order      []string
	maxEntries int
}

// NewMemoryRecorder creates a recorder holding at most maxEntries jobs.
func NewMemoryRecorder(maxEntries int) *MemoryRecorder {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &MemoryRecorder{byID: make(map[string]model.JobStatus), maxEntries: maxEntries}
}

func (r *MemoryRecorder) Save(_ context.Context, st model.JobStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[st.ID]; !ok {
		r.order = append(r.order, st.ID)
		for len(r.order) > r.maxEntries {
			delete(r.byID, r.order[0])
			r.order = r.order[1:]
		}
	}
	r.byID[st.ID] = st
	return nil
}

func (r *MemoryRecorder) Get(_ context.Context, id string) (model.JobStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.byID[id]
	if !ok {
		return model.JobStatus{}, ErrNotFound
	}
	return st, nil
}

func (r *MemoryRecorder) Recent(_ context.Context, n int) ([]model.JobStatus, error) {
	r.mu.RLock()
	out := make([]model.JobStatus, 0, len(r.byID))
	for _, st := range r.byID {
		out = append(out, st)
	}
	r.mu.RUnlock()

	sortNewestFirst(out)
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (r *MemoryRecorder) Close() error { return nil }

func sortNewestFirst(sts []model.JobStatus) {
	sort.SliceStable(sts, func(i, j int) bool {
		if !sts[i].EnqueuedAt.Equal(sts[j].EnqueuedAt) {
			return sts[i].EnqueuedAt.After(sts[j].EnqueuedAt)
		}
		return sts[i].ID > sts[j].ID
	})
}

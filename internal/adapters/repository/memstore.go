package repository

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/okian/catalogd/internal/domain/model"
	"github.com/okian/catalogd/pkg/metrics"
)

// MemoryStore is an in-process Store. Writers serialize on commit; readers
// work on an immutable snapshot published by every successful commit, so
// they never observe a half-applied batch.
type MemoryStore struct {
	mu     sync.Mutex
	byExt  map[string]model.CatalogEntity
	nextID int64

	// snapshot holds entities ordered by ID.
	snapshot atomic.Pointer[[]model.CatalogEntity]
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{byExt: make(map[string]model.CatalogEntity)}
	s.snapshot.Store(&[]model.CatalogEntity{})
	return s
}

type stagedOp struct {
	entity model.CatalogEntity
	insert bool
}

type memTx struct {
	store  *MemoryStore
	staged map[string]stagedOp
	order  []string
	done   bool
}

// Begin opens a batch. Nothing is visible to readers until Commit.
func (s *MemoryStore) Begin(ctx context.Context) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memTx{store: s, staged: make(map[string]stagedOp)}, nil
}

func (t *memTx) FindByExternalID(_ context.Context, externalID string) (model.CatalogEntity, error) {
	if t.done {
		return model.CatalogEntity{}, ErrTxDone
	}
	if op, ok := t.staged[externalID]; ok {
		return op.entity, nil
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if e, ok := t.store.byExt[externalID]; ok {
		return e, nil
	}
	return model.CatalogEntity{}, ErrNotFound
}

func (t *memTx) Insert(_ context.Context, e model.CatalogEntity) error {
	if t.done {
		return ErrTxDone
	}
	if _, ok := t.staged[e.ExternalID]; ok {
		return ErrConflict
	}
	t.store.mu.Lock()
	_, exists := t.store.byExt[e.ExternalID]
	t.store.mu.Unlock()
	if exists {
		return ErrConflict
	}
	t.stage(e, true)
	return nil
}

func (t *memTx) Update(_ context.Context, e model.CatalogEntity) error {
	if t.done {
		return ErrTxDone
	}
	if op, ok := t.staged[e.ExternalID]; ok {
		t.staged[e.ExternalID] = stagedOp{entity: e, insert: op.insert}
		return nil
	}
	t.store.mu.Lock()
	_, exists := t.store.byExt[e.ExternalID]
	t.store.mu.Unlock()
	if !exists {
		return ErrNotFound
	}
	t.stage(e, false)
	return nil
}

func (t *memTx) stage(e model.CatalogEntity, insert bool) {
	t.staged[e.ExternalID] = stagedOp{entity: e, insert: insert}
	t.order = append(t.order, e.ExternalID)
}

// Commit applies every staged change or none. An insert whose id was
// committed by another batch in the meantime fails the whole commit.
func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	if err := ctx.Err(); err != nil {
		return err
	}

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ext := range t.order {
		if op := t.staged[ext]; op.insert {
			if _, exists := s.byExt[ext]; exists {
				return ErrConflict
			}
		}
	}

	for _, ext := range t.order {
		op := t.staged[ext]
		e := op.entity
		if op.insert {
			s.nextID++
			e.ID = s.nextID
		} else {
			prev := s.byExt[ext]
			e.ID = prev.ID
			e.IngestedAt = prev.IngestedAt
		}
		s.byExt[ext] = e
	}
	s.publishLocked()
	return nil
}

func (t *memTx) Rollback(_ context.Context) error {
	if t.done && t.staged == nil {
		return ErrTxDone
	}
	t.done = true
	t.staged = nil
	t.order = nil
	return nil
}

// publishLocked rebuilds the read snapshot. Caller holds s.mu.
func (s *MemoryStore) publishLocked() {
	all := make([]model.CatalogEntity, 0, len(s.byExt))
	for _, e := range s.byExt {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	s.snapshot.Store(&all)
	metrics.UpdateCatalogEntities(len(all))
}

func (s *MemoryStore) view() []model.CatalogEntity {
	return *s.snapshot.Load()
}

// Get returns the committed entity for externalID.
func (s *MemoryStore) Get(_ context.Context, externalID string) (model.CatalogEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byExt[externalID]
	if !ok {
		return model.CatalogEntity{}, ErrNotFound
	}
	return e, nil
}

// List filters, sorts and pages the committed snapshot.
func (s *MemoryStore) List(_ context.Context, q Query) (Page, error) {
	q, err := q.Normalized()
	if err != nil {
		return Page{}, err
	}

	var matched []model.CatalogEntity
	for _, e := range s.view() {
		if q.Match(&e) {
			matched = append(matched, e)
		}
	}
	sortEntities(matched, q)

	page := Page{Total: len(matched), Page: q.Page, PerPage: q.PerPage, Items: []model.CatalogEntity{}}
	if from := q.Offset(); from < len(matched) {
		to := min(from+q.PerPage, len(matched))
		page.Items = append(page.Items, matched[from:to]...)
	}
	return page, nil
}

// Stats aggregates the committed entities matching f.
func (s *MemoryStore) Stats(_ context.Context, f Filter) (Stats, error) {
	var matched []model.CatalogEntity
	for _, e := range s.view() {
		if f.Match(&e) {
			matched = append(matched, e)
		}
	}
	return BuildStats(matched), nil
}

// Count returns the number of committed entities.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	return len(s.view()), nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

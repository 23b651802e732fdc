// Package dedupe coalesces work items that share a key while one of them is pending.
package dedupe

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
)

const defaultMaxSize = 10000

// Deduper tracks which holder currently owns a key.
type Deduper interface {
	// Claim records holder under key unless the key is already claimed.
	// It returns the current holder and whether this call won the claim.
	// A full table refuses new keys with ErrFull; live claims are never dropped.
	Claim(ctx context.Context, key, holder string) (current string, claimed bool, err error)
	// Release frees key so the next Claim succeeds. Releasing with a holder
	// that no longer owns the key is a no-op.
	Release(ctx context.Context, key, holder string)
	Size() int64
}

type inMemoryDeduper struct {
	mu      sync.Mutex
	claims  map[string]string
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a deduper. A max size of zero or less is unbounded.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		claims:  make(map[string]string),
		maxSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Key folds case and surrounding space so "Phone " and "phone" collide.
func Key(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func (d *inMemoryDeduper) Claim(_ context.Context, key, holder string) (string, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if current, ok := d.claims[key]; ok {
		return current, false, nil
	}
	if d.maxSize > 0 && len(d.claims) >= d.maxSize {
		return "", false, ErrFull
	}
	d.claims[key] = holder
	d.size.Add(1)
	return holder, true, nil
}

func (d *inMemoryDeduper) Release(_ context.Context, key, holder string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if current, ok := d.claims[key]; !ok || current != holder {
		return
	}
	delete(d.claims, key)
	d.size.Add(-1)
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/catalogd/internal/domain/model"
	"github.com/okian/catalogd/pkg/logger"
)

func init() { //nolint:gochecknoinits // tests construct stores that log
	_ = logger.Init(logger.WithLevel("error"))
}

func ptr[T any](v T) *T { return &v }

func record(id, name string, price float64) model.CanonicalRecord {
	return model.CanonicalRecord{ExternalID: id, Name: name, ListPrice: price, CategoryTag: "phone"}
}

// stepClock returns successive whole-second instants.
func stepClock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		now := t
		t = t.Add(time.Second)
		return now
	}
}

var errDiskFull = errors.New("disk full")

// faultyBackend wraps a backend with injectable failures.
type faultyBackend struct {
	Backend
	failCommit bool
	failInsert map[string]bool
}

func (b *faultyBackend) Begin(ctx context.Context) (Tx, error) {
	tx, err := b.Backend.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &faultyTx{Tx: tx, b: b}, nil
}

type faultyTx struct {
	Tx
	b *faultyBackend
}

func (t *faultyTx) Insert(ctx context.Context, e model.CatalogEntity) error {
	if t.b.failInsert[e.ExternalID] {
		return errDiskFull
	}
	return t.Tx.Insert(ctx, e)
}

func (t *faultyTx) Commit(ctx context.Context) error {
	if t.b.failCommit {
		return errDiskFull
	}
	return t.Tx.Commit(ctx)
}

// stores returns one fresh instance of every backend that runs without
// external services.
func stores(t *testing.T) map[string]Store {
	t.Helper()
	lite, err := OpenSQL(context.Background(), "sqlite", ":memory:", true)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = lite.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": lite,
	}
}

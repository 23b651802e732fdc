// Package repository persists catalog entities and reconciles ingested
// records against them.
package repository

import (
	"context"

	"github.com/okian/catalogd/internal/domain/model"
)

// Backend is the persistence collaborator: it opens batch transactions.
type Backend interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx stages entity changes until Commit. After Commit or Rollback the Tx is
// done and every method returns ErrTxDone.
type Tx interface {
	// FindByExternalID returns ErrNotFound when no entity, committed or
	// staged in this Tx, carries the id.
	FindByExternalID(ctx context.Context, externalID string) (model.CatalogEntity, error)
	// Insert stages a new entity. ErrConflict if the id already exists.
	Insert(ctx context.Context, e model.CatalogEntity) error
	// Update stages new field values for an existing entity.
	Update(ctx context.Context, e model.CatalogEntity) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Reader serves the read side of the catalog.
type Reader interface {
	Get(ctx context.Context, externalID string) (model.CatalogEntity, error)
	List(ctx context.Context, q Query) (Page, error)
	Stats(ctx context.Context, f Filter) (Stats, error)
	Count(ctx context.Context) (int, error)
}

// Store is a complete backend.
type Store interface {
	Backend
	Reader
	Close() error
}

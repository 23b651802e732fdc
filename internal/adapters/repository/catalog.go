package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/okian/catalogd/internal/domain/model"
	"github.com/okian/catalogd/pkg/logger"
	"github.com/okian/catalogd/pkg/metrics"
)

// CatalogStore reconciles canonical records with persisted entities, one
// transaction per batch.
type CatalogStore struct {
	backend Backend
	now     func() time.Time
	logger  logger.Logger
}

// NewCatalogStore wraps a backend.
func NewCatalogStore(backend Backend, opts ...Option) *CatalogStore {
	s := &CatalogStore{
		backend: backend,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger.Get().Named("store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpsertBatch applies every record that can be applied and commits once. It
// returns how many records were staged before the commit. A record that
// fails on its own is logged and skipped. When the commit fails the whole
// batch is rolled back and the count is 0, with an error wrapping ErrCommit.
func (s *CatalogStore) UpsertBatch(ctx context.Context, records []model.CanonicalRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	start := time.Now()
	elapsed := func() float64 { return float64(time.Since(start).Milliseconds()) }

	tx, err := s.backend.Begin(ctx)
	if err != nil {
		metrics.RecordCommit("failed", elapsed())
		metrics.RecordErrorByComponent("store", "begin")
		s.logger.Error(ctx, "begin batch failed", logger.Error(err))
		return 0, fmt.Errorf("%w: %w", ErrBegin, err)
	}

	now := s.now()
	applied := 0
	for i := range records {
		if err := ctx.Err(); err != nil {
			s.rollback(ctx, tx)
			metrics.RecordCommit("cancelled", elapsed())
			return 0, err
		}

		op, err := s.apply(ctx, tx, &records[i], now)
		if err != nil {
			metrics.RecordStoreRecordError()
			s.logger.Warn(ctx, "record skipped",
				logger.String("stage", "store"),
				logger.String("external_id", records[i].ExternalID),
				logger.Error(err),
			)
			continue
		}
		metrics.RecordStoreApplied(op)
		applied++
	}

	if err := tx.Commit(ctx); err != nil {
		s.rollback(ctx, tx)
		metrics.RecordCommit("failed", elapsed())
		metrics.RecordErrorByComponent("store", "commit")
		s.logger.Error(ctx, "batch commit failed, rolled back",
			logger.String("stage", "store"),
			logger.Int("staged", applied),
			logger.Error(err),
		)
		return 0, fmt.Errorf("%w: %w", ErrCommit, err)
	}

	metrics.RecordCommit("ok", elapsed())
	s.logger.Debug(ctx, "batch committed", logger.Int("applied", applied), logger.Int("records", len(records)))
	return applied, nil
}

func (s *CatalogStore) apply(ctx context.Context, tx Tx, rec *model.CanonicalRecord, now time.Time) (string, error) {
	existing, err := tx.FindByExternalID(ctx, rec.ExternalID)
	switch {
	case errors.Is(err, ErrNotFound):
		if err := tx.Insert(ctx, model.NewEntity(*rec, now)); err != nil {
			return "", fmt.Errorf("insert: %w", err)
		}
		return "insert", nil
	case err != nil:
		return "", fmt.Errorf("lookup: %w", err)
	}

	existing.Merge(*rec, now)
	if err := tx.Update(ctx, existing); err != nil {
		return "", fmt.Errorf("update: %w", err)
	}
	return "update", nil
}

func (s *CatalogStore) rollback(ctx context.Context, tx Tx) {
	err := tx.Rollback(ctx)
	if err != nil && !errors.Is(err, ErrTxDone) && !errors.Is(err, sql.ErrTxDone) {
		s.logger.Error(ctx, "rollback failed", logger.Error(err))
	}
}

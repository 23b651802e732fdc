package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/catalogd/internal/adapters/source"
	"github.com/okian/catalogd/internal/domain/model"
	"github.com/okian/catalogd/internal/domain/normalize"
	"github.com/okian/catalogd/pkg/logger"
	"github.com/okian/catalogd/pkg/metrics"
)

// Fetcher pages through the source catalog.
type Fetcher interface {
	Fetch(ctx context.Context, query string, limit int) source.Result
}

// Normalizer maps one raw record onto the canonical schema.
type Normalizer interface {
	Normalize(raw model.RawRecord, categoryTag string) (model.CanonicalRecord, error)
}

// Upserter persists a batch of canonical records.
type Upserter interface {
	UpsertBatch(ctx context.Context, records []model.CanonicalRecord) (int, error)
}

const (
	msgEmptyQuery = "query must not be empty"
	msgNoResults  = "no products found"
)

// Ingester runs fetch, normalize and store in sequence for one query.
type Ingester struct {
	fetcher    Fetcher
	normalizer Normalizer
	store      Upserter
	strict     bool
	logger     logger.Logger
}

// IngesterOption applies a configuration option to the Ingester.
type IngesterOption func(*Ingester)

// WithIngesterStrict makes success require at least one applied record.
func WithIngesterStrict(strict bool) IngesterOption {
	return func(i *Ingester) { i.strict = strict }
}

// WithIngesterNormalizer replaces the default Wildberries normalizer.
func WithIngesterNormalizer(n Normalizer) IngesterOption {
	return func(i *Ingester) {
		if n != nil {
			i.normalizer = n
		}
	}
}

// WithIngesterLogger sets a custom logger.
func WithIngesterLogger(l logger.Logger) IngesterOption {
	return func(i *Ingester) {
		if l != nil {
			i.logger = l
		}
	}
}

// NewIngester wires the three stages.
func NewIngester(fetcher Fetcher, store Upserter, opts ...IngesterOption) *Ingester {
	i := &Ingester{
		fetcher:    fetcher,
		normalizer: normalize.New(),
		store:      store,
		logger:     logger.Get().Named("ingest"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Ingest never fails: every problem is folded into the result. A run that
// fetched nothing is unsuccessful and never touches the store. Otherwise the
// run succeeds even when the batch could not be committed, unless strict
// success is enabled.
func (i *Ingester) Ingest(ctx context.Context, query string, limit int) model.IngestResult {
	start := time.Now()
	q := strings.TrimSpace(query)
	res := model.IngestResult{Query: q}
	log := i.logger.With(logger.String("query", q), logger.Int("limit", limit))

	finish := func(outcome string) model.IngestResult {
		metrics.RecordIngest(outcome, res.AppliedCount, float64(time.Since(start).Milliseconds()))
		return res
	}

	if q == "" {
		res.Message = msgEmptyQuery
		return finish("rejected")
	}

	fetched := i.fetcher.Fetch(ctx, q, limit)
	res.FetchedCount = len(fetched.Records)
	if fetched.Err != nil {
		log.Warn(ctx, "fetch stopped early",
			logger.String("stage", "fetch"),
			logger.String("stop", string(fetched.Stop)),
			logger.Int("pages", fetched.Pages),
			logger.Error(fetched.Err),
		)
	}
	if len(fetched.Records) == 0 {
		res.Message = msgNoResults
		log.Info(ctx, "nothing to ingest", logger.String("stop", string(fetched.Stop)))
		return finish("no_results")
	}

	records := make([]model.CanonicalRecord, 0, len(fetched.Records))
	for _, raw := range fetched.Records {
		rec, err := i.normalizer.Normalize(raw, q)
		if err != nil {
			res.RejectedCount++
			reason := string(normalize.ReasonMalformedField)
			var rej *normalize.Rejection
			if errors.As(err, &rej) {
				reason = string(rej.Reason)
			}
			metrics.RecordRejected(reason)
			log.Warn(ctx, "record rejected",
				logger.String("stage", "normalize"),
				logger.String("reason", reason),
				logger.Error(err),
			)
			continue
		}
		records = append(records, rec)
	}

	applied, err := i.store.UpsertBatch(ctx, records)
	res.AppliedCount = applied
	res.Success = true
	if i.strict {
		res.Success = applied > 0
	}

	switch {
	case err != nil:
		res.Message = fmt.Sprintf("fetched %d products, none saved: %v", res.FetchedCount, err)
		log.Error(ctx, "batch not persisted", logger.String("stage", "store"), logger.Error(err))
	default:
		res.Message = fmt.Sprintf("saved %d of %d fetched products", applied, res.FetchedCount)
	}

	outcome := "success"
	if !res.Success {
		outcome = "failure"
	}
	log.Info(ctx, "ingest finished",
		logger.Bool("success", res.Success),
		logger.Int("fetched", res.FetchedCount),
		logger.Int("rejected", res.RejectedCount),
		logger.Int("applied", applied),
		logger.Duration("took", time.Since(start)),
	)
	return finish(outcome)
}

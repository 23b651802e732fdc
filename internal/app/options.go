package service

import (
	"time"

	"github.com/okian/catalogd/internal/adapters/repository"
	"github.com/okian/catalogd/internal/adapters/results"
	"github.com/okian/catalogd/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets how many jobs may run at once.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets how many jobs may wait.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithStopTimeout bounds how long Stop waits for queued jobs before
// interrupting them.
func WithStopTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.stopTimeout = d
		}
	}
}

// WithDedupeSize bounds how many pending queries are tracked.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLimits sets the limit used when a caller passes none and the largest
// limit accepted.
func WithLimits(defaultLimit, maxLimit int) Option {
	return func(s *Service) {
		if defaultLimit > 0 {
			s.defaultLimit = defaultLimit
		}
		if maxLimit > 0 {
			s.maxLimit = maxLimit
		}
	}
}

// WithStrictSuccess makes an ingest successful only when something was saved.
func WithStrictSuccess(strict bool) Option {
	return func(s *Service) { s.strict = strict }
}

// WithStore sets the catalog backend. The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithFetcher replaces the Wildberries fetcher.
func WithFetcher(f Fetcher) Option {
	return func(s *Service) {
		if f != nil {
			s.fetcher = f
		}
	}
}

// WithResults sets where job statuses are kept. The service closes it on Stop.
func WithResults(r results.Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.results = r
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

package repository

import (
	"time"

	"github.com/okian/catalogd/pkg/logger"
)

// Option applies a configuration option to the CatalogStore.
type Option func(*CatalogStore)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *CatalogStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *CatalogStore) {
		if l != nil {
			s.logger = l
		}
	}
}

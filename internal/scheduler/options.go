package scheduler

import "github.com/okian/catalogd/pkg/logger"

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithLimit sets the limit submitted with every query. Zero leaves the choice
// to the service.
func WithLimit(limit int) Option {
	return func(s *Scheduler) {
		if limit >= 0 {
			s.limit = limit
		}
	}
}

// WithRunOnStart submits one round as soon as the scheduler starts.
func WithRunOnStart(run bool) Option {
	return func(s *Scheduler) { s.runOnStart = run }
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

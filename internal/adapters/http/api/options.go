package api

import (
	"golang.org/x/time/rate"
)

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithIngestRate caps how often callers may start ingests (parse and job
// submission share one bucket). A non-positive rate leaves them unlimited.
func WithIngestRate(perSecond float64, burst int) Option {
	return func(s *Server) {
		if perSecond <= 0 {
			s.ingestLimiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.ingestLimiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

package config

import (
	"github.com/okian/catalogd/internal/adapters/source"
)

// SourceOptions translates the source_* settings into fetcher options.
func (c *Config) SourceOptions() []source.Option {
	return []source.Option{
		source.WithBaseURL(c.SourceURL),
		source.WithTimeout(c.SourceTimeout),
		source.WithPageDelay(c.SourcePageDelay),
		source.WithMaxPages(c.SourceMaxPages),
		source.WithCurrency(c.SourceCurrency),
		source.WithDestination(c.SourceDest),
		source.WithSort(c.SourceSort),
	}
}

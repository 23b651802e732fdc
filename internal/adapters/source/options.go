package source

import (
	"net/http"
	"time"

	"github.com/okian/catalogd/pkg/logger"
)

// Option applies a configuration option to the Fetcher.
type Option func(*Fetcher)

// WithBaseURL points the fetcher at a different search endpoint.
func WithBaseURL(u string) Option {
	return func(f *Fetcher) {
		if u != "" {
			f.baseURL = u
		}
	}
}

// WithHTTPClient replaces the default client. Its Timeout bounds each page
// and WithTimeout leaves it untouched.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithPageDelay sets the pause between consuming one page and requesting the
// next. Zero or negative disables it.
func WithPageDelay(d time.Duration) Option {
	return func(f *Fetcher) { f.pageDelay = d }
}

// WithCurrency sets the curr parameter.
func WithCurrency(c string) Option {
	return func(f *Fetcher) {
		if c != "" {
			f.params.Set("curr", c)
		}
	}
}

// WithDestination sets the dest (region) parameter.
func WithDestination(d string) Option {
	return func(f *Fetcher) {
		if d != "" {
			f.params.Set("dest", d)
		}
	}
}

// WithSort sets the sort parameter.
func WithSort(s string) Option {
	return func(f *Fetcher) {
		if s != "" {
			f.params.Set("sort", s)
		}
	}
}

// WithParam sets an arbitrary fixed query parameter.
func WithParam(key, value string) Option {
	return func(f *Fetcher) { f.params.Set(key, value) }
}

// WithHeader sets a request header sent with every page.
func WithHeader(key, value string) Option {
	return func(f *Fetcher) { f.headers.Set(key, value) }
}

// WithEnvelopePath sets the object path to the product list, "data.products" by default.
func WithEnvelopePath(path ...string) Option {
	return func(f *Fetcher) {
		if len(path) > 0 {
			f.envelopePath = path
		}
	}
}

// WithMaxPages caps how many pages one fetch may request. Zero means no cap.
func WithMaxPages(n int) Option {
	return func(f *Fetcher) {
		if n >= 0 {
			f.maxPages = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

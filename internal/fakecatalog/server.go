// Package fakecatalog serves a synthetic catalog search endpoint shaped like
// the Wildberries search API. It backs local runs and integration tests.
package fakecatalog

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"sync"
)

const defaultPageSize = 100

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithPageSize sets how many products one page holds.
func WithPageSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithGenerator answers unknown queries with Generate(query, n, rejectEvery).
func WithGenerator(n, rejectEvery int) Option {
	return func(s *Server) {
		s.generate = func(q string) []any { return Generate(q, n, rejectEvery) }
	}
}

// Server is an http.Handler. Catalogs and failures can be changed while it runs.
type Server struct {
	mu        sync.Mutex
	pageSize  int
	catalogs  map[string][]any
	generate  func(query string) []any
	failures  map[int]int
	malformed map[int]string
	requests  []url.Values
}

// New creates an empty simulator.
func New(opts ...Option) *Server {
	s := &Server{
		pageSize:  defaultPageSize,
		catalogs:  make(map[string][]any),
		failures:  make(map[int]int),
		malformed: make(map[int]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetCatalog replaces the products returned for query. Items may be any JSON
// value so tests can serve deliberately broken products.
func (s *Server) SetCatalog(query string, products ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalogs[query] = products
}

// FailPage makes every request for page answer with status.
func (s *Server) FailPage(page, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[page] = status
}

// MalformPage makes page answer 200 with body instead of an envelope.
func (s *Server) MalformPage(page int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.malformed[page] = body
}

// Requests returns the query strings received so far.
func (s *Server) Requests() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]url.Values, len(s.requests))
	copy(out, s.requests)
	return out
}

// Pages returns the page numbers requested so far, in order.
func (s *Server) Pages() []int {
	reqs := s.Requests()
	pages := make([]int, 0, len(reqs))
	for _, q := range reqs {
		p, _ := strconv.Atoi(q.Get("page"))
		pages = append(pages, p)
	}
	return pages
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	query := q.Get("query")

	s.mu.Lock()
	s.requests = append(s.requests, q)
	status, failing := s.failures[page]
	body, malformed := s.malformed[page]
	products, known := s.catalogs[query]
	if !known && s.generate != nil {
		products = s.generate(query)
		s.catalogs[query] = products
	}
	pageSize := s.pageSize
	s.mu.Unlock()

	switch {
	case failing:
		http.Error(w, http.StatusText(status), status)
		return
	case malformed:
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
		return
	}

	from := (page - 1) * pageSize
	if from > len(products) {
		from = len(products)
	}
	to := min(from+pageSize, len(products))
	items := append(make([]any, 0, to-from), products[from:to]...)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"state": 0,
		"data": map[string]any{
			"products": items,
		},
	})
}

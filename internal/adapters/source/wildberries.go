// Package source pages through the Wildberries catalog search API.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/okian/catalogd/internal/domain/model"
	"github.com/okian/catalogd/pkg/logger"
	"github.com/okian/catalogd/pkg/metrics"
)

const (
	DefaultBaseURL   = "https://search.wb.ru/exactmatch/ru/common/v4/search"
	defaultTimeout   = 15 * time.Second
	defaultPageDelay = 500 * time.Millisecond
	defaultMaxPages  = 100
	maxBodyBytes     = 16 << 20
	userAgent        = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// StopReason says why pagination ended.
type StopReason string

const (
	StopLimit     StopReason = "limit"
	StopExhausted StopReason = "exhausted"
	StopMalformed StopReason = "malformed"
	StopMaxPages  StopReason = "max_pages"
	StopTransport StopReason = "transport"
	StopStatus    StopReason = "status"
	StopCancelled StopReason = "cancelled"
)

// Clean reports whether the stop reflects the source running out rather than a failure.
func (s StopReason) Clean() bool {
	switch s {
	case StopLimit, StopExhausted, StopMalformed, StopMaxPages:
		return true
	default:
		return false
	}
}

// Result is the outcome of one fetch. Err is set only for unclean stops and
// Records then holds whatever was collected before the failure.
type Result struct {
	Records []model.RawRecord
	Pages   int
	Stop    StopReason
	Err     error
}

// Fetcher issues page requests against the search endpoint. It holds no
// per-fetch state, so one Fetcher can serve concurrent ingests.
type Fetcher struct {
	baseURL      string
	client       *http.Client
	timeout      time.Duration
	pageDelay    time.Duration
	params       url.Values
	headers      http.Header
	envelopePath []string
	maxPages     int
	logger       logger.Logger
}

// New creates a Fetcher with Wildberries defaults.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		baseURL:   DefaultBaseURL,
		timeout:   defaultTimeout,
		pageDelay: defaultPageDelay,
		params: url.Values{
			"appType":            {"1"},
			"curr":               {"rub"},
			"dest":               {"-1257786"},
			"resultset":          {"catalog"},
			"sort":               {"popular"},
			"spp":                {"0"},
			"suppressSpellcheck": {"false"},
		},
		headers: http.Header{
			"User-Agent":      {userAgent},
			"Accept":          {"application/json"},
			"Accept-Language": {"ru-RU,ru;q=0.9,en;q=0.8"},
		},
		envelopePath: []string{"data", "products"},
		maxPages:     defaultMaxPages,
		logger:       logger.Get().Named("fetch"),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = &http.Client{Timeout: f.timeout}
	}
	return f
}

// Fetch collects at most limit raw records for query, starting at page 1.
// It never returns more than limit records and never retries.
func (f *Fetcher) Fetch(ctx context.Context, query string, limit int) Result {
	var res Result
	if limit <= 0 {
		res.Stop = StopLimit
		return res
	}

	for page := 1; ; page++ {
		if f.maxPages > 0 && page > f.maxPages {
			res.Stop = StopMaxPages
			break
		}
		delay := f.pageDelay
		if page == 1 {
			delay = 0
		}
		if err := pause(ctx, delay); err != nil {
			res.Stop, res.Err = StopCancelled, fmt.Errorf("%w: %w", ErrCancelled, err)
			break
		}

		products, stop, err := f.fetchPage(ctx, query, page)
		res.Pages++
		if stop != "" {
			res.Stop, res.Err = stop, err
			break
		}

		before := len(res.Records)
		for _, p := range products {
			res.Records = append(res.Records, p)
			if len(res.Records) >= limit {
				break
			}
		}
		metrics.RecordFetchedRecords(len(res.Records) - before)
		if len(res.Records) >= limit {
			res.Stop = StopLimit
			break
		}
	}

	metrics.RecordFetchStop(string(res.Stop))
	fields := []logger.Field{
		logger.String("query", query),
		logger.Int("pages", res.Pages),
		logger.Int("records", len(res.Records)),
		logger.String("stop", string(res.Stop)),
	}
	if res.Err != nil {
		f.logger.Warn(ctx, "pagination stopped early", append(fields, logger.Error(res.Err))...)
	} else {
		f.logger.Debug(ctx, "pagination finished", fields...)
	}
	return res
}

// pause waits d after the previous page was consumed, or until ctx ends.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fetchPage returns a non-empty stop reason when pagination must end.
func (f *Fetcher) fetchPage(ctx context.Context, query string, page int) ([]model.RawRecord, StopReason, error) {
	start := time.Now()
	observe := func(outcome string) {
		metrics.RecordFetchPage(outcome, float64(time.Since(start).Milliseconds()))
	}

	req, err := f.newRequest(ctx, query, page)
	if err != nil {
		observe("transport_error")
		return nil, StopTransport, fmt.Errorf("%w: build request: %w", ErrTransport, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			observe("cancelled")
			return nil, StopCancelled, fmt.Errorf("%w: page %d: %w", ErrCancelled, page, ctx.Err())
		}
		observe("transport_error")
		return nil, StopTransport, fmt.Errorf("%w: page %d: %w", ErrTransport, page, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		observe("status_error")
		return nil, StopStatus, fmt.Errorf("%w: page %d: %d", ErrUnexpectedStatus, page, resp.StatusCode)
	}

	products, ok := f.decode(ctx, io.LimitReader(resp.Body, maxBodyBytes))
	if !ok {
		observe("decode_error")
		return nil, StopMalformed, nil
	}
	observe("ok")
	if len(products) == 0 {
		return nil, StopExhausted, nil
	}
	return products, "", nil
}

func (f *Fetcher) newRequest(ctx context.Context, query string, page int) (*http.Request, error) {
	u, err := url.Parse(f.baseURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	for k, vs := range f.params {
		q[k] = append([]string(nil), vs...)
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("query", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header = f.headers.Clone()
	return req, nil
}

// decode walks the envelope path. ok is false when the body is not the
// expected shape, which callers treat as the end of data.
func (f *Fetcher) decode(ctx context.Context, body io.Reader) ([]model.RawRecord, bool) {
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var node any
	if err := dec.Decode(&node); err != nil {
		if !errors.Is(err, io.EOF) {
			f.logger.Debug(ctx, "undecodable page body", logger.Error(err))
		}
		return nil, false
	}

	for _, key := range f.envelopePath {
		obj, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		if node, ok = obj[key]; !ok || node == nil {
			return nil, false
		}
	}

	list, ok := node.([]any)
	if !ok {
		return nil, false
	}

	records := make([]model.RawRecord, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			f.logger.Debug(ctx, "skipping non-object product", logger.Int("index", i))
			continue
		}
		records = append(records, model.RawRecord(obj))
	}
	return records, true
}

package repository

import (
	"fmt"
	"sort"
	"strings"

	"github.com/okian/catalogd/internal/domain/model"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Filter narrows reads. Nil bounds are ignored.
type Filter struct {
	MinPrice   *float64
	MaxPrice   *float64
	MinRating  *float64
	MinReviews *int
	Category   string
	// Search is a case-insensitive substring of the name.
	Search string
}

// Query is a filtered, sorted, paginated listing request.
type Query struct {
	Filter
	SortBy  string
	Desc    bool
	Page    int
	PerPage int
}

// Page is one slice of a listing.
type Page struct {
	Items   []model.CatalogEntity
	Total   int
	Page    int
	PerPage int
}

// sortColumns maps public sort keys to columns.
var sortColumns = map[string]string{ //nolint:gochecknoglobals // read-only lookup
	"id":            "id",
	"name":          "name",
	"price":         "list_price",
	"rating":        "rating",
	"reviews_count": "review_count",
	"ingested_at":   "ingested_at",
}

// Normalized fills defaults and validates the sort key and bounds.
func (q Query) Normalized() (Query, error) {
	q.SortBy = strings.ToLower(strings.TrimSpace(q.SortBy))
	if q.SortBy == "" {
		q.SortBy = "id"
	}
	if _, ok := sortColumns[q.SortBy]; !ok {
		return q, fmt.Errorf("%w: unknown sort key %q", ErrInvalidQuery, q.SortBy)
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = DefaultPerPage
	}
	if q.PerPage > MaxPerPage {
		q.PerPage = MaxPerPage
	}
	if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice {
		return q, fmt.Errorf("%w: min_price exceeds max_price", ErrInvalidQuery)
	}
	q.Category = strings.TrimSpace(q.Category)
	q.Search = strings.TrimSpace(q.Search)
	return q, nil
}

// Offset is the number of rows skipped before the page.
func (q Query) Offset() int {
	return (q.Page - 1) * q.PerPage
}

// Pages returns how many pages total rows span.
func (p Page) Pages() int {
	if p.PerPage <= 0 {
		return 0
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

// Match applies f to one entity. SQL backends express the same predicate in SQL.
func (f Filter) Match(e *model.CatalogEntity) bool {
	if f.MinPrice != nil && e.ListPrice < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && e.ListPrice > *f.MaxPrice {
		return false
	}
	if f.MinRating != nil && (e.Rating == nil || *e.Rating < *f.MinRating) {
		return false
	}
	if f.MinReviews != nil && e.ReviewCount < *f.MinReviews {
		return false
	}
	if f.Category != "" && !strings.EqualFold(e.CategoryTag, f.Category) {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(e.Name), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

// sortEntities orders in place by the query's key with id as tie-breaker.
// Missing ratings sort first ascending, as NULLs do in SQLite.
func sortEntities(items []model.CatalogEntity, q Query) {
	cmp := func(a, b *model.CatalogEntity) int {
		switch q.SortBy {
		case "name":
			return strings.Compare(a.Name, b.Name)
		case "price":
			return compareFloat(a.ListPrice, b.ListPrice)
		case "rating":
			switch {
			case a.Rating == nil && b.Rating == nil:
				return 0
			case a.Rating == nil:
				return -1
			case b.Rating == nil:
				return 1
			}
			return compareFloat(*a.Rating, *b.Rating)
		case "reviews_count":
			return a.ReviewCount - b.ReviewCount
		case "ingested_at":
			return a.IngestedAt.Compare(b.IngestedAt)
		}
		return 0
	}
	sort.SliceStable(items, func(i, j int) bool {
		c := cmp(&items[i], &items[j])
		if c == 0 {
			c = int(items[i].ID - items[j].ID)
		}
		if q.Desc {
			return c > 0
		}
		return c < 0
	})
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

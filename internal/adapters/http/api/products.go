package api

import (
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/okian/catalogd/internal/adapters/repository"
)

// ProductsHandler serves catalog reads.
type ProductsHandler struct {
	deps CatalogDependencies
}

// NewProductsHandler creates a new products handler.
func NewProductsHandler(deps CatalogDependencies) *ProductsHandler {
	return &ProductsHandler{deps: deps}
}

// HandleList handles GET /api/products.
func (h *ProductsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	page, err := h.deps.ListProducts(r.Context(), q)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HandleGet handles GET /api/products/{external_id}.
func (h *ProductsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("external_id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", errMissing("external_id"))
		return
	}
	p, err := h.deps.Product(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleStats handles GET /api/products/stats. It accepts the list filters.
func (h *ProductsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	st, err := h.deps.CatalogStats(r.Context(), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func parseQuery(v url.Values) (repository.Query, error) {
	f, err := parseFilter(v)
	if err != nil {
		return repository.Query{}, err
	}
	q := repository.Query{Filter: f, SortBy: v.Get("sort_by")}

	switch strings.ToLower(v.Get("sort_order")) {
	case "", "asc":
	case "desc":
		q.Desc = true
	default:
		return q, errInvalid("sort_order")
	}
	if q.Page, err = intParam(v, "page"); err != nil {
		return q, err
	}
	if q.PerPage, err = intParam(v, "per_page"); err != nil {
		return q, err
	}
	return q, nil
}

func parseFilter(v url.Values) (repository.Filter, error) {
	var (
		f   repository.Filter
		err error
	)
	if f.MinPrice, err = floatParam(v, "min_price"); err != nil {
		return f, err
	}
	if f.MaxPrice, err = floatParam(v, "max_price"); err != nil {
		return f, err
	}
	if f.MinRating, err = floatParam(v, "min_rating"); err != nil {
		return f, err
	}
	if raw := v.Get("min_reviews"); raw != "" {
		n, convErr := strconv.Atoi(raw)
		if convErr != nil || n < 0 {
			return f, errInvalid("min_reviews")
		}
		f.MinReviews = &n
	}
	f.Category = v.Get("category")
	f.Search = v.Get("search")
	return f, nil
}

func floatParam(v url.Values, name string) (*float64, error) {
	raw := v.Get(name)
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, errInvalid(name)
	}
	return &f, nil
}

func intParam(v url.Values, name string) (int, error) {
	raw := v.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errInvalid(name)
	}
	return n, nil
}

func errMissing(name string) error { return fmt.Errorf("%w: missing %s", ErrBadRequest, name) }
func errInvalid(name string) error { return fmt.Errorf("%w: invalid %s", ErrBadRequest, name) }

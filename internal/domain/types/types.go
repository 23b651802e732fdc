// Package types contains the JSON views served by the API.
package types

import (
	"time"

	"github.com/okian/catalogd/internal/adapters/repository"
	"github.com/okian/catalogd/internal/domain/model"
)

// Product is the public view of a catalog entity.
type Product struct {
	ExternalID         string    `json:"external_id"`
	Name               string    `json:"name"`
	ListPrice          float64   `json:"list_price"`
	DiscountedPrice    *float64  `json:"discounted_price"`
	Rating             *float64  `json:"rating"`
	ReviewCount        int       `json:"review_count"`
	CategoryTag        string    `json:"category_tag"`
	DiscountPercentage float64   `json:"discount_percentage"`
	IngestedAt         time.Time `json:"ingested_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// NewProduct derives the view, including the discount, from e.
func NewProduct(e *model.CatalogEntity) Product {
	return Product{
		ExternalID:         e.ExternalID,
		Name:               e.Name,
		ListPrice:          e.ListPrice,
		DiscountedPrice:    e.DiscountedPrice,
		Rating:             e.Rating,
		ReviewCount:        e.ReviewCount,
		CategoryTag:        e.CategoryTag,
		DiscountPercentage: e.DiscountPercentage(),
		IngestedAt:         e.IngestedAt,
		UpdatedAt:          e.UpdatedAt,
	}
}

// Pagination describes where a page sits in a listing.
type Pagination struct {
	Page    int  `json:"page"`
	PerPage int  `json:"per_page"`
	Total   int  `json:"total"`
	Pages   int  `json:"pages"`
	HasNext bool `json:"has_next"`
	HasPrev bool `json:"has_prev"`
}

// ProductPage is one page of a product listing.
type ProductPage struct {
	Products   []Product  `json:"products"`
	Pagination Pagination `json:"pagination"`
}

// NewProductPage converts a repository page.
func NewProductPage(p *repository.Page) ProductPage {
	out := ProductPage{
		Products: make([]Product, 0, len(p.Items)),
		Pagination: Pagination{
			Page:    p.Page,
			PerPage: p.PerPage,
			Total:   p.Total,
			Pages:   p.Pages(),
			HasNext: p.Page < p.Pages(),
			HasPrev: p.Page > 1,
		},
	}
	for i := range p.Items {
		out.Products = append(out.Products, NewProduct(&p.Items[i]))
	}
	return out
}

// PriceBucket counts products in one price range.
type PriceBucket struct {
	Range string `json:"range"`
	Count int    `json:"count"`
}

// DiscountPoint is one point of the discount versus rating series.
type DiscountPoint struct {
	ExternalID string  `json:"external_id"`
	Name       string  `json:"name"`
	Rating     float64 `json:"rating"`
	Discount   float64 `json:"discount"`
}

// CatalogStats summarizes a selection of products.
type CatalogStats struct {
	TotalProducts     int             `json:"total_products"`
	AvgPrice          float64         `json:"avg_price"`
	AvgRating         float64         `json:"avg_rating"`
	PriceDistribution []PriceBucket   `json:"price_distribution"`
	DiscountVsRating  []DiscountPoint `json:"discount_vs_rating"`
}

// NewCatalogStats converts repository stats.
func NewCatalogStats(st *repository.Stats) CatalogStats {
	out := CatalogStats{
		TotalProducts:     st.TotalProducts,
		AvgPrice:          st.AvgPrice,
		AvgRating:         st.AvgRating,
		PriceDistribution: make([]PriceBucket, 0, len(st.PriceDistribution)),
		DiscountVsRating:  make([]DiscountPoint, 0, len(st.DiscountVsRating)),
	}
	for _, b := range st.PriceDistribution {
		out.PriceDistribution = append(out.PriceDistribution, PriceBucket{Range: b.Range, Count: b.Count})
	}
	for _, p := range st.DiscountVsRating {
		out.DiscountVsRating = append(out.DiscountVsRating, DiscountPoint{
			ExternalID: p.ExternalID,
			Name:       p.Name,
			Rating:     p.Rating,
			Discount:   p.DiscountPercentage,
		})
	}
	return out
}

// IngestRequest is the body of synchronous and asynchronous ingest calls.
type IngestRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// Package model contains domain models passed between layers.
package model

import (
	"math"
	"time"
)

// RawRecord is one product object as decoded from a source page. Numbers are
// kept as json.Number; nothing about its shape is trusted.
type RawRecord map[string]any

// CanonicalRecord is a validated listing ready to be merged into the catalog.
type CanonicalRecord struct {
	ExternalID      string
	Name            string
	ListPrice       float64
	DiscountedPrice *float64
	Rating          *float64
	ReviewCount     int
	CategoryTag     string
}

// CatalogEntity is the persisted form of a listing, one per ExternalID.
type CatalogEntity struct {
	ID              int64     `db:"id"`
	ExternalID      string    `db:"external_id"`
	Name            string    `db:"name"`
	ListPrice       float64   `db:"list_price"`
	DiscountedPrice *float64  `db:"discounted_price"`
	Rating          *float64  `db:"rating"`
	ReviewCount     int       `db:"review_count"`
	CategoryTag     string    `db:"category_tag"`
	IngestedAt      time.Time `db:"ingested_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// NewEntity builds a fresh entity from rec, stamped with now.
func NewEntity(rec CanonicalRecord, now time.Time) CatalogEntity {
	e := CatalogEntity{ExternalID: rec.ExternalID, IngestedAt: now}
	e.Merge(rec, now)
	return e
}

// Merge overwrites every mutable field with rec. ExternalID, ID and
// IngestedAt are left alone.
func (e *CatalogEntity) Merge(rec CanonicalRecord, now time.Time) {
	e.Name = rec.Name
	e.ListPrice = rec.ListPrice
	e.DiscountedPrice = copyFloat(rec.DiscountedPrice)
	e.Rating = copyFloat(rec.Rating)
	e.ReviewCount = rec.ReviewCount
	e.CategoryTag = rec.CategoryTag
	e.UpdatedAt = now
}

// EffectivePrice is the price a buyer pays.
func (e CatalogEntity) EffectivePrice() float64 {
	return EffectivePrice(e.ListPrice, e.DiscountedPrice)
}

// DiscountPercentage is derived at read time and never stored.
func (e CatalogEntity) DiscountPercentage() float64 {
	return DiscountPercentage(e.ListPrice, e.DiscountedPrice)
}

// EffectivePrice returns discounted when set, list otherwise.
func EffectivePrice(list float64, discounted *float64) float64 {
	if discounted != nil {
		return *discounted
	}
	return list
}

// DiscountPercentage returns round(100*(list-effective)/list, 2), or 0 when
// list is not positive.
func DiscountPercentage(list float64, discounted *float64) float64 {
	if list <= 0 {
		return 0
	}
	pct := 100 * (list - EffectivePrice(list, discounted)) / list
	return math.Round(pct*100) / 100
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

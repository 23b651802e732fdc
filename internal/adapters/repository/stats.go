package repository

import (
	"math"

	"github.com/okian/catalogd/internal/domain/model"
)

// PriceBucket counts entities whose effective price falls in [Min, Max).
// Max is zero for the open-ended top bucket.
type PriceBucket struct {
	Range string
	Min   float64
	Max   float64
	Count int
}

// DiscountPoint pairs a rated entity's discount with its rating.
type DiscountPoint struct {
	ExternalID         string
	Name               string
	Rating             float64
	DiscountPercentage float64
}

// Stats summarizes the catalog, or a filtered part of it.
type Stats struct {
	TotalProducts     int
	AvgPrice          float64
	AvgRating         float64
	PriceDistribution []PriceBucket
	DiscountVsRating  []DiscountPoint
}

// maxDiscountPoints bounds the scatter series.
const maxDiscountPoints = 500

func priceBuckets() []PriceBucket {
	return []PriceBucket{
		{Range: "0-1000", Min: 0, Max: 1000},
		{Range: "1000-5000", Min: 1000, Max: 5000},
		{Range: "5000-10000", Min: 5000, Max: 10000},
		{Range: "10000-25000", Min: 10000, Max: 25000},
		{Range: "25000-50000", Min: 25000, Max: 50000},
		{Range: "50000+", Min: 50000},
	}
}

// BuildStats aggregates entities in memory.
func BuildStats(entities []model.CatalogEntity) Stats {
	st := Stats{PriceDistribution: priceBuckets(), DiscountVsRating: []DiscountPoint{}}

	var priceSum, ratingSum float64
	var rated int
	for i := range entities {
		e := &entities[i]
		st.TotalProducts++
		price := e.EffectivePrice()
		priceSum += price

		for b := range st.PriceDistribution {
			bk := &st.PriceDistribution[b]
			if price >= bk.Min && (bk.Max == 0 || price < bk.Max) {
				bk.Count++
				break
			}
		}

		if e.Rating != nil {
			rated++
			ratingSum += *e.Rating
			if len(st.DiscountVsRating) < maxDiscountPoints {
				st.DiscountVsRating = append(st.DiscountVsRating, DiscountPoint{
					ExternalID:         e.ExternalID,
					Name:               e.Name,
					Rating:             *e.Rating,
					DiscountPercentage: e.DiscountPercentage(),
				})
			}
		}
	}

	if st.TotalProducts > 0 {
		st.AvgPrice = round2(priceSum / float64(st.TotalProducts))
	}
	if rated > 0 {
		st.AvgRating = round2(ratingSum / float64(rated))
	}
	return st
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

package fakecatalog

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// Product is the subset of a Wildberries search product the service reads.
type Product struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Brand      string  `json:"brand,omitempty"`
	PriceU     int64   `json:"priceU"`
	SalePriceU int64   `json:"salePriceU,omitempty"`
	Rating     float64 `json:"rating"`
	Feedbacks  int     `json:"feedbacks"`
}

var brands = []string{"Xiaomi", "Samsung", "Apple", "Realme", "Honor", "Tecno"} //nolint:gochecknoglobals // fixture data

// Generate returns n deterministic products for query. When rejectEvery > 0,
// every rejectEvery-th product is emitted without a name so that the
// normalizer refuses it.
func Generate(query string, n, rejectEvery int) []any {
	h := fnv.New64a()
	_, _ = h.Write([]byte(query))
	seed := int64(h.Sum64() >> 1)
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic fixtures

	out := make([]any, 0, n)
	for i := 1; i <= n; i++ {
		price := int64(50_000 + rng.Intn(5_000_000))
		p := Product{
			ID:        seed%1_000_000*1_000 + int64(i),
			Name:      fmt.Sprintf("%s %s #%d", brands[rng.Intn(len(brands))], query, i),
			PriceU:    price,
			Rating:    float64(rng.Intn(51)) / 10,
			Feedbacks: rng.Intn(5_000),
		}
		if rng.Intn(3) > 0 {
			p.SalePriceU = price * int64(50+rng.Intn(50)) / 100
		}
		if rejectEvery > 0 && i%rejectEvery == 0 {
			p.Name = ""
		}
		out = append(out, p)
	}
	return out
}

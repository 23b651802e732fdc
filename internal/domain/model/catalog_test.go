package model_test

import (
	"encoding/json"
	"testing"
	"time"

	model "github.com/okian/catalogd/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func ptr(v float64) *float64 { return &v }

func TestDiscountPercentage(t *testing.T) {
	convey.Convey("Given list and sale prices", t, func() {
		convey.Convey("When a sale price is present", func() {
			convey.So(model.DiscountPercentage(2500, ptr(1800)), convey.ShouldEqual, 28.0)
			convey.So(model.DiscountPercentage(999, ptr(333)), convey.ShouldEqual, 66.67)
		})

		convey.Convey("When no sale price is present", func() {
			convey.So(model.DiscountPercentage(2500, nil), convey.ShouldEqual, 0)
		})

		convey.Convey("When the list price is not positive", func() {
			convey.So(model.DiscountPercentage(0, ptr(10)), convey.ShouldEqual, 0)
			convey.So(model.DiscountPercentage(-5, nil), convey.ShouldEqual, 0)
		})

		convey.Convey("When the sale price exceeds the list price", func() {
			convey.So(model.DiscountPercentage(100, ptr(120)), convey.ShouldEqual, -20.0)
		})
	})
}

func TestCatalogEntityMerge(t *testing.T) {
	convey.Convey("Given an entity created from a record", t, func() {
		first := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
		rec := model.CanonicalRecord{
			ExternalID:      "1001",
			Name:            "Phone",
			ListPrice:       2500,
			DiscountedPrice: ptr(1800),
			Rating:          ptr(4.7),
			ReviewCount:     12,
			CategoryTag:     "phone",
		}
		e := model.NewEntity(rec, first)

		convey.So(e.IngestedAt, convey.ShouldEqual, first)
		convey.So(e.UpdatedAt, convey.ShouldEqual, first)
		convey.So(e.EffectivePrice(), convey.ShouldEqual, 1800)

		convey.Convey("When merging a later record", func() {
			later := first.Add(time.Hour)
			e.Merge(model.CanonicalRecord{
				ExternalID:  "1001",
				Name:        "Phone X",
				ListPrice:   2600,
				ReviewCount: 13,
				CategoryTag: "smartphone",
			}, later)

			convey.Convey("Then mutable fields follow the latest record", func() {
				convey.So(e.Name, convey.ShouldEqual, "Phone X")
				convey.So(e.ListPrice, convey.ShouldEqual, 2600)
				convey.So(e.DiscountedPrice, convey.ShouldBeNil)
				convey.So(e.Rating, convey.ShouldBeNil)
				convey.So(e.ReviewCount, convey.ShouldEqual, 13)
				convey.So(e.CategoryTag, convey.ShouldEqual, "smartphone")
				convey.So(e.UpdatedAt, convey.ShouldEqual, later)
			})

			convey.Convey("Then ingested_at is untouched", func() {
				convey.So(e.IngestedAt, convey.ShouldEqual, first)
			})
		})

		convey.Convey("When the source record is mutated after the merge", func() {
			*rec.DiscountedPrice = 1
			convey.So(*e.DiscountedPrice, convey.ShouldEqual, 1800)
		})
	})
}

func TestIngestResultJSON(t *testing.T) {
	convey.Convey("Given an ingest result", t, func() {
		b, err := json.Marshal(model.IngestResult{Success: true, Message: "ok", AppliedCount: 3, Query: "phone"})
		convey.So(err, convey.ShouldBeNil)

		var m map[string]any
		convey.So(json.Unmarshal(b, &m), convey.ShouldBeNil)
		convey.So(m, convey.ShouldContainKey, "success")
		convey.So(m, convey.ShouldContainKey, "message")
		convey.So(m["applied_count"], convey.ShouldEqual, 3)
		convey.So(m["query"], convey.ShouldEqual, "phone")
	})
}

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/catalogd/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) //nolint:gochecknoglobals // test fixture

func TestCatalogStore_Upsert(t *testing.T) {
	ctx := context.Background()

	for name, backend := range stores(t) {
		Convey("Given an empty "+name+" catalog", t, func() {
			cs := NewCatalogStore(backend, WithClock(stepClock(epoch)))

			Convey("When an empty batch is upserted", func() {
				n, err := cs.UpsertBatch(ctx, nil)

				Convey("Then nothing happens", func() {
					So(err, ShouldBeNil)
					So(n, ShouldEqual, 0)
				})
			})

			Convey("When the same batch is upserted twice", func() {
				batch := []model.CanonicalRecord{
					record(name+"-1", "Phone A", 1000),
					record(name+"-2", "Phone B", 2000),
					record(name+"-3", "Phone C", 3000),
				}
				first, err1 := cs.UpsertBatch(ctx, batch)
				second, err2 := cs.UpsertBatch(ctx, batch)

				Convey("Then both runs apply every record and the entity count stays put", func() {
					So(err1, ShouldBeNil)
					So(err2, ShouldBeNil)
					So(first, ShouldEqual, 3)
					So(second, ShouldEqual, 3)

					e, err := backend.Get(ctx, name+"-2")
					So(err, ShouldBeNil)
					So(e.Name, ShouldEqual, "Phone B")
					So(e.ListPrice, ShouldEqual, 2000.0)
				})
			})
		})
	}
}

func TestCatalogStore_MergeKeepsFirstIngest(t *testing.T) {
	ctx := context.Background()

	for name, backend := range stores(t) {
		Convey("Given a "+name+" entity ingested once", t, func() {
			cs := NewCatalogStore(backend, WithClock(stepClock(epoch)))
			_, err := cs.UpsertBatch(ctx, []model.CanonicalRecord{{
				ExternalID: "42", Name: "Old", ListPrice: 100, Rating: ptr(4.0), ReviewCount: 5, CategoryTag: "phone",
			}})
			So(err, ShouldBeNil)

			Convey("When a changed record with the same id arrives", func() {
				n, err := cs.UpsertBatch(ctx, []model.CanonicalRecord{{
					ExternalID: "42", Name: "New", ListPrice: 150, DiscountedPrice: ptr(120.0), ReviewCount: 9, CategoryTag: "smartphone",
				}})

				Convey("Then mutable fields are overwritten and the first ingest time is kept", func() {
					So(err, ShouldBeNil)
					So(n, ShouldEqual, 1)

					e, err := backend.Get(ctx, "42")
					So(err, ShouldBeNil)
					So(e.Name, ShouldEqual, "New")
					So(e.ListPrice, ShouldEqual, 150.0)
					So(*e.DiscountedPrice, ShouldEqual, 120.0)
					So(e.Rating, ShouldBeNil)
					So(e.ReviewCount, ShouldEqual, 9)
					So(e.CategoryTag, ShouldEqual, "smartphone")
					So(e.IngestedAt.Equal(epoch), ShouldBeTrue)
					So(e.UpdatedAt.Equal(epoch.Add(time.Second)), ShouldBeTrue)

					total, err := backend.Count(ctx)
					So(err, ShouldBeNil)
					So(total, ShouldEqual, 1)
				})
			})
		})
	}
}

func TestCatalogStore_DuplicateIDsInOneBatch(t *testing.T) {
	ctx := context.Background()

	for name, backend := range stores(t) {
		Convey("Given a "+name+" batch that repeats an id", t, func() {
			cs := NewCatalogStore(backend)
			n, err := cs.UpsertBatch(ctx, []model.CanonicalRecord{
				record("7", "First", 10),
				record("7", "Second", 20),
			})

			Convey("Then the later record wins and one entity exists", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)
				e, err := backend.Get(ctx, "7")
				So(err, ShouldBeNil)
				So(e.Name, ShouldEqual, "Second")
				total, _ := backend.Count(ctx)
				So(total, ShouldEqual, 1)
			})
		})
	}
}

func TestCatalogStore_Failures(t *testing.T) {
	ctx := context.Background()

	Convey("Given a backend whose commit fails", t, func() {
		mem := NewMemoryStore()
		cs := NewCatalogStore(&faultyBackend{Backend: mem, failCommit: true})

		n, err := cs.UpsertBatch(ctx, []model.CanonicalRecord{
			record("1", "A", 10), record("2", "B", 20), record("3", "C", 30), record("4", "D", 40),
		})

		Convey("Then no record becomes visible and the count is zero", func() {
			So(n, ShouldEqual, 0)
			So(errors.Is(err, ErrCommit), ShouldBeTrue)
			So(errors.Is(err, errDiskFull), ShouldBeTrue)
			total, _ := mem.Count(ctx)
			So(total, ShouldEqual, 0)
		})
	})

	Convey("Given a backend that rejects one insert", t, func() {
		mem := NewMemoryStore()
		cs := NewCatalogStore(&faultyBackend{Backend: mem, failInsert: map[string]bool{"2": true}})

		n, err := cs.UpsertBatch(ctx, []model.CanonicalRecord{
			record("1", "A", 10), record("2", "B", 20), record("3", "C", 30),
		})

		Convey("Then the failing record is skipped and the rest commit", func() {
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 2)
			_, err := mem.Get(ctx, "2")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			total, _ := mem.Count(ctx)
			So(total, ShouldEqual, 2)
		})
	})

	Convey("Given a cancelled context", t, func() {
		mem := NewMemoryStore()
		cs := NewCatalogStore(mem)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		n, err := cs.UpsertBatch(cctx, []model.CanonicalRecord{record("1", "A", 10)})

		Convey("Then the batch is abandoned", func() {
			So(n, ShouldEqual, 0)
			So(err, ShouldNotBeNil)
			total, _ := mem.Count(ctx)
			So(total, ShouldEqual, 0)
		})
	})
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	Convey("Open picks a backend by driver name", t, func() {
		s, err := Open(ctx, "memory", "", false)
		So(err, ShouldBeNil)
		So(s, ShouldHaveSameTypeAs, &MemoryStore{})

		s, err = Open(ctx, "sqlite", ":memory:", true)
		So(err, ShouldBeNil)
		So(s, ShouldHaveSameTypeAs, &SQLStore{})
		So(s.Close(), ShouldBeNil)

		_, err = Open(ctx, "oracle", "x", false)
		So(errors.Is(err, ErrUnknownDriver), ShouldBeTrue)

		_, err = Open(ctx, "postgres", "", false)
		So(errors.Is(err, ErrUnknownDriver), ShouldBeTrue)
	})
}

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/catalogd/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func entity(id, name string, price float64) model.CatalogEntity {
	return model.NewEntity(record(id, name, price), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
}

func TestMemoryStore_Isolation(t *testing.T) {
	ctx := context.Background()

	Convey("Given an open batch on a memory store", t, func() {
		s := NewMemoryStore()
		tx, err := s.Begin(ctx)
		So(err, ShouldBeNil)
		So(tx.Insert(ctx, entity("a", "A", 1)), ShouldBeNil)

		Convey("Then staged entities are visible inside the batch only", func() {
			e, err := tx.FindByExternalID(ctx, "a")
			So(err, ShouldBeNil)
			So(e.Name, ShouldEqual, "A")

			_, err = s.Get(ctx, "a")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			n, _ := s.Count(ctx)
			So(n, ShouldEqual, 0)
		})

		Convey("When the batch is rolled back", func() {
			So(tx.Rollback(ctx), ShouldBeNil)

			Convey("Then nothing is published and the batch is finished", func() {
				n, _ := s.Count(ctx)
				So(n, ShouldEqual, 0)
				So(errors.Is(tx.Insert(ctx, entity("b", "B", 1)), ErrTxDone), ShouldBeTrue)
				So(errors.Is(tx.Commit(ctx), ErrTxDone), ShouldBeTrue)
			})
		})

		Convey("When the batch commits", func() {
			So(tx.Commit(ctx), ShouldBeNil)

			Convey("Then the entity gets an id and is readable", func() {
				e, err := s.Get(ctx, "a")
				So(err, ShouldBeNil)
				So(e.ID, ShouldEqual, 1)
				So(errors.Is(tx.Commit(ctx), ErrTxDone), ShouldBeTrue)
			})
		})
	})
}

func TestMemoryStore_Conflicts(t *testing.T) {
	ctx := context.Background()

	Convey("Given a staged insert", t, func() {
		s := NewMemoryStore()
		tx, _ := s.Begin(ctx)
		So(tx.Insert(ctx, entity("a", "A", 1)), ShouldBeNil)

		Convey("Then a second insert of the same id in the batch conflicts", func() {
			So(errors.Is(tx.Insert(ctx, entity("a", "A2", 1)), ErrConflict), ShouldBeTrue)
		})

		Convey("Then an update of the staged id keeps it an insert", func() {
			So(tx.Update(ctx, entity("a", "A2", 2)), ShouldBeNil)
			So(tx.Commit(ctx), ShouldBeNil)
			e, _ := s.Get(ctx, "a")
			So(e.Name, ShouldEqual, "A2")
			So(e.ID, ShouldEqual, 1)
		})

		Convey("Then an update of an unknown id is not found", func() {
			So(errors.Is(tx.Update(ctx, entity("zz", "Z", 1)), ErrNotFound), ShouldBeTrue)
		})
	})

	Convey("Given two batches racing to insert the same id", t, func() {
		s := NewMemoryStore()
		first, _ := s.Begin(ctx)
		second, _ := s.Begin(ctx)
		So(first.Insert(ctx, entity("a", "First", 1)), ShouldBeNil)
		So(second.Insert(ctx, entity("a", "Second", 1)), ShouldBeNil)
		So(second.Insert(ctx, entity("b", "B", 1)), ShouldBeNil)

		Convey("When both commit", func() {
			errFirst := first.Commit(ctx)
			errSecond := second.Commit(ctx)

			Convey("Then the loser fails as a whole", func() {
				So(errFirst, ShouldBeNil)
				So(errors.Is(errSecond, ErrConflict), ShouldBeTrue)

				e, _ := s.Get(ctx, "a")
				So(e.Name, ShouldEqual, "First")
				_, err := s.Get(ctx, "b")
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestMemoryStore_CommitRespectsContext(t *testing.T) {
	Convey("A commit with a cancelled context publishes nothing", t, func() {
		s := NewMemoryStore()
		tx, _ := s.Begin(context.Background())
		So(tx.Insert(context.Background(), entity("a", "A", 1)), ShouldBeNil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		So(errors.Is(tx.Commit(ctx), context.Canceled), ShouldBeTrue)

		n, _ := s.Count(context.Background())
		So(n, ShouldEqual, 0)

		_, err := s.Begin(ctx)
		So(err, ShouldNotBeNil)
	})
}

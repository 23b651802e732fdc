package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	. "github.com/smartystreets/goconvey/convey"
)

func memdb(t *testing.T) *SQLStore {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	s := NewSQLStore(db, DialectSQLite)
	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return s
}

func TestSQLStore_Schema(t *testing.T) {
	Convey("EnsureSchema can run repeatedly", t, func() {
		s := memdb(t)
		So(s.EnsureSchema(context.Background()), ShouldBeNil)
		n, err := s.Count(context.Background())
		So(err, ShouldBeNil)
		So(n, ShouldEqual, 0)
	})
}

func TestSQLStore_Savepoints(t *testing.T) {
	ctx := context.Background()

	Convey("Given a batch on sqlite with one committed row", t, func() {
		s := memdb(t)
		tx, err := s.Begin(ctx)
		So(err, ShouldBeNil)
		So(tx.Insert(ctx, entity("a", "A", 10)), ShouldBeNil)
		So(tx.Commit(ctx), ShouldBeNil)

		tx, err = s.Begin(ctx)
		So(err, ShouldBeNil)

		Convey("When a duplicate insert fails inside the batch", func() {
			err := tx.Insert(ctx, entity("a", "Dup", 10))

			Convey("Then it is a conflict and the batch keeps working", func() {
				So(errors.Is(err, ErrConflict), ShouldBeTrue)
				So(tx.Insert(ctx, entity("b", "B", 20)), ShouldBeNil)
				So(tx.Commit(ctx), ShouldBeNil)

				a, err := s.Get(ctx, "a")
				So(err, ShouldBeNil)
				So(a.Name, ShouldEqual, "A")
				n, _ := s.Count(ctx)
				So(n, ShouldEqual, 2)
			})
		})

		Convey("When a row violates a check inside the batch", func() {
			err := tx.Insert(ctx, entity("bad", "Free", 0))

			Convey("Then only that row is undone", func() {
				So(err, ShouldNotBeNil)
				So(tx.Insert(ctx, entity("c", "C", 5)), ShouldBeNil)
				So(tx.Commit(ctx), ShouldBeNil)

				_, err := s.Get(ctx, "bad")
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
				_, err = s.Get(ctx, "c")
				So(err, ShouldBeNil)
			})
		})

		Convey("When the batch is rolled back", func() {
			So(tx.Insert(ctx, entity("d", "D", 5)), ShouldBeNil)
			So(tx.Rollback(ctx), ShouldBeNil)

			Convey("Then the batch is finished and nothing was written", func() {
				So(errors.Is(tx.Insert(ctx, entity("e", "E", 5)), ErrTxDone), ShouldBeTrue)
				_, err := s.Get(ctx, "d")
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("Updating a missing id is not found", func() {
			So(errors.Is(tx.Update(ctx, entity("zz", "Z", 5)), ErrNotFound), ShouldBeTrue)
			So(tx.Rollback(ctx), ShouldBeNil)
		})
	})
}

func TestClassify(t *testing.T) {
	Convey("Driver unique violations become conflicts", t, func() {
		So(classify(nil), ShouldBeNil)

		pg := &pgconn.PgError{Code: "23505", ConstraintName: "catalog_entities_external_id_key"}
		So(errors.Is(classify(pg), ErrConflict), ShouldBeTrue)

		other := &pgconn.PgError{Code: "23514"}
		So(errors.Is(classify(other), ErrConflict), ShouldBeFalse)
		So(errors.Is(classify(errDiskFull), ErrConflict), ShouldBeFalse)
	})
}

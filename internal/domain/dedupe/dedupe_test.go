package dedupe_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	dedupe "github.com/okian/catalogd/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("When a key is claimed", func() {
			holder, ok, _ := d.Claim(ctx, "phone", "job-1")

			Convey("Then the caller owns it", func() {
				So(ok, ShouldBeTrue)
				So(holder, ShouldEqual, "job-1")
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And claimed again by someone else", func() {
				holder, ok, _ := d.Claim(ctx, "phone", "job-2")

				Convey("Then the first holder is reported", func() {
					So(ok, ShouldBeFalse)
					So(holder, ShouldEqual, "job-1")
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And released by a stale holder", func() {
				d.Release(ctx, "phone", "job-0")

				Convey("Then the claim stays", func() {
					_, ok, _ := d.Claim(ctx, "phone", "job-2")
					So(ok, ShouldBeFalse)
				})
			})

			Convey("And released by its holder", func() {
				d.Release(ctx, "phone", "job-1")

				Convey("Then the key is free again", func() {
					So(d.Size(), ShouldEqual, 0)
					holder, ok, _ := d.Claim(ctx, "phone", "job-2")
					So(ok, ShouldBeTrue)
					So(holder, ShouldEqual, "job-2")
				})
			})
		})

		Convey("Releasing an unknown key does nothing", func() {
			d.Release(ctx, "nothing", "job-1")
			So(d.Size(), ShouldEqual, 0)
		})
	})

	Convey("Given a bounded deduper at capacity", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(2))
		_, _, _ = d.Claim(ctx, "a", "1")
		_, _, _ = d.Claim(ctx, "b", "2")

		Convey("When a third key is claimed", func() {
			_, ok, err := d.Claim(ctx, "c", "3")

			Convey("Then it is refused and the live claims stay", func() {
				So(ok, ShouldBeFalse)
				So(errors.Is(err, dedupe.ErrFull), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 2)
				holder, ok, err := d.Claim(ctx, "a", "x")
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
				So(holder, ShouldEqual, "1")
			})
		})

		Convey("When a claim is released", func() {
			d.Release(ctx, "a", "1")

			Convey("Then a new key fits again", func() {
				_, ok, err := d.Claim(ctx, "c", "3")
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
			})
		})

		Convey("When a claimed key is asked for again", func() {
			holder, ok, err := d.Claim(ctx, "b", "y")

			Convey("Then the holder is still reported", func() {
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
				So(holder, ShouldEqual, "2")
			})
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		for i := 0; i < 1000; i++ {
			_, _, _ = d.Claim(ctx, fmt.Sprintf("q-%d", i), "h")
		}
		So(d.Size(), ShouldEqual, 1000)
	})
}

func TestKey(t *testing.T) {
	Convey("Keys fold case and whitespace", t, func() {
		So(dedupe.Key("  Phone  Case "), ShouldEqual, "phone case")
		So(dedupe.Key("ТЕЛЕФОН"), ShouldEqual, "телефон")
		So(dedupe.Key(""), ShouldEqual, "")
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given many goroutines racing for one key", t, func() {
		d := dedupe.NewInMemoryDeduper()
		var (
			wg  sync.WaitGroup
			won atomic.Int32
		)
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if _, ok, _ := d.Claim(context.Background(), "same", fmt.Sprint(i)); ok {
					won.Add(1)
				}
			}(i)
		}
		wg.Wait()

		Convey("Then exactly one wins", func() {
			So(won.Load(), ShouldEqual, 1)
			So(d.Size(), ShouldEqual, 1)
		})
	})
}

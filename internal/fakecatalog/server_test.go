package fakecatalog_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/okian/catalogd/internal/fakecatalog"
	. "github.com/smartystreets/goconvey/convey"
)

type envelope struct {
	Data struct {
		Products []fakecatalog.Product `json:"products"`
	} `json:"data"`
}

func get(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var env envelope
	if rec.Code == http.StatusOK {
		_ = json.Unmarshal(rec.Body.Bytes(), &env)
	}
	return rec, env
}

func TestServer(t *testing.T) {
	Convey("Given a simulator with a generated catalog", t, func() {
		s := fakecatalog.New(fakecatalog.WithPageSize(4), fakecatalog.WithGenerator(10, 0))

		Convey("When paging through it", func() {
			_, p1 := get(t, s, "/search?query=phone&page=1")
			_, p3 := get(t, s, "/search?query=phone&page=3")
			_, p4 := get(t, s, "/search?query=phone&page=4")

			Convey("Then pages are sliced by page size and the tail is empty", func() {
				So(p1.Data.Products, ShouldHaveLength, 4)
				So(p3.Data.Products, ShouldHaveLength, 2)
				So(p4.Data.Products, ShouldHaveLength, 0)
				So(s.Pages(), ShouldResemble, []int{1, 3, 4})
			})
		})

		Convey("When a page is set to fail", func() {
			s.FailPage(2, http.StatusBadGateway)
			rec, _ := get(t, s, "/search?query=phone&page=2")
			So(rec.Code, ShouldEqual, http.StatusBadGateway)
		})

		Convey("When a page is malformed", func() {
			s.MalformPage(1, `<html>`)
			rec, _ := get(t, s, "/search?query=phone&page=1")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldEqual, "<html>")
		})
	})

	Convey("Generated catalogs are deterministic per query", t, func() {
		a := fakecatalog.Generate("kettle", 5, 2)
		b := fakecatalog.Generate("kettle", 5, 2)
		So(a, ShouldResemble, b)
		So(a[1].(fakecatalog.Product).Name, ShouldBeEmpty)
		So(a[0].(fakecatalog.Product).Name, ShouldNotBeEmpty)
	})
}

package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/catalogd/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.DefaultLimit, convey.ShouldEqual, 100)
			convey.So(cfg.MaxLimit, convey.ShouldEqual, 1000)
			convey.So(cfg.StoreDriver, convey.ShouldEqual, "memory")
			convey.So(cfg.ResultsBackend, convey.ShouldEqual, "memory")
			convey.So(cfg.SourcePageDelay, convey.ShouldEqual, 500*time.Millisecond)
			convey.So(cfg.StrictSuccess, convey.ShouldBeFalse)
			convey.So(cfg.ScheduleSpec, convey.ShouldBeEmpty)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given invalid settings", t, func() {
		cases := []struct {
			name   string
			mutate func(*config.Config)
		}{
			{"empty addr", func(c *config.Config) { c.Addr = "" }},
			{"unknown log format", func(c *config.Config) { c.LogFormat = "xml" }},
			{"zero timeout", func(c *config.Config) { c.SourceTimeout = 0 }},
			{"negative page delay", func(c *config.Config) { c.SourcePageDelay = -time.Second }},
			{"zero default limit", func(c *config.Config) { c.DefaultLimit = 0 }},
			{"max below default", func(c *config.Config) { c.MaxLimit = 10 }},
			{"zero workers", func(c *config.Config) { c.WorkerCount = 0 }},
			{"zero queue", func(c *config.Config) { c.QueueSize = 0 }},
			{"negative ingest rate", func(c *config.Config) { c.IngestRate = -1 }},
			{"ingest rate without burst", func(c *config.Config) {
				c.IngestRate = 2
				c.IngestBurst = 0
			}},
			{"unknown driver", func(c *config.Config) { c.StoreDriver = "mongo" }},
			{"sqlite without dsn", func(c *config.Config) { c.StoreDriver = "sqlite" }},
			{"redis without url", func(c *config.Config) { c.ResultsBackend = "redis" }},
			{"unknown results backend", func(c *config.Config) { c.ResultsBackend = "kafka" }},
			{"schedule without queries", func(c *config.Config) {
				c.ScheduleSpec = "@every 1h"
				c.ScheduleQueries = []string{" "}
			}},
			{"schedule limit above max", func(c *config.Config) {
				c.ScheduleSpec = "@every 1h"
				c.ScheduleQueries = []string{"phone"}
				c.ScheduleLimit = 5000
			}},
		}

		for _, tc := range cases {
			convey.Convey("Then "+tc.name+" is rejected", func() {
				cfg := config.New()
				tc.mutate(cfg)
				err := cfg.Validate()
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})

	convey.Convey("Given settings that only need tidying", t, func() {
		cfg := config.New()
		cfg.StoreDriver = " SQLite "
		cfg.StoreDSN = "file:catalog.db"
		cfg.LogFormat = "JSON"
		cfg.ScheduleSpec = "@every 6h"
		cfg.ScheduleQueries = []string{" phone", "", "laptop "}

		convey.So(cfg.Validate(), convey.ShouldBeNil)
		convey.So(cfg.StoreDriver, convey.ShouldEqual, "sqlite")
		convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
		convey.So(cfg.ScheduleQueries, convey.ShouldResemble, []string{"phone", "laptop"})
	})
}

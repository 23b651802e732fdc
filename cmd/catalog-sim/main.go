// Command catalog-sim serves a synthetic Wildberries-shaped search endpoint
// for local runs.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/catalogd/internal/fakecatalog"
	"github.com/okian/catalogd/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

func main() {
	addr := flag.String("addr", ":9090", "listen address")
	products := flag.Int("products", 250, "products generated per query")
	pageSize := flag.Int("page-size", 100, "products per page")
	rejectEvery := flag.Int("reject-every", 0, "emit every Nth product without a name (0 disables)")
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Get().Named("catalog-sim")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sim := fakecatalog.New(
		fakecatalog.WithPageSize(*pageSize),
		fakecatalog.WithGenerator(*products, *rejectEvery),
	)
	srv := &http.Server{Addr: *addr, Handler: sim, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info(ctx, "serving simulated catalog",
		logger.String("addr", *addr),
		logger.Int("products", *products),
		logger.Int("pageSize", *pageSize),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error(ctx, "catalog simulator failed", logger.Error(err))
		os.Exit(1)
	}
}

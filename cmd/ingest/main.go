// Command ingest runs one ingest for a query and prints the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/catalogd/internal/adapters/repository"
	"github.com/okian/catalogd/internal/adapters/source"
	app "github.com/okian/catalogd/internal/app"
	"github.com/okian/catalogd/internal/config"
	"github.com/okian/catalogd/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit code: 0 on a successful ingest, 1 when the
// ingest reported failure, 2 on usage or setup errors.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(stderr)
	query := fs.String("query", "", "search query to ingest (required)")
	limit := fs.Int("limit", 0, "maximum records to fetch (default from config)")
	strict := fs.Bool("strict", false, "fail when nothing was saved")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *query == "" && fs.NArg() > 0 {
		*query = fs.Arg(0)
	}
	if *query == "" {
		fmt.Fprintln(stderr, "ingest: -query is required")
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintln(stderr, "ingest:", err)
		return 2
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithLevel(cfg.LogLevel), logger.WithWriter(stderr)); err != nil {
		fmt.Fprintln(stderr, "ingest:", err)
		return 2
	}

	store, err := repository.Open(ctx, cfg.StoreDriver, cfg.StoreDSN, cfg.StoreAutoSchema)
	if err != nil {
		fmt.Fprintln(stderr, "ingest:", err)
		return 2
	}
	defer func() { _ = store.Close() }()

	fetcher := source.New(cfg.SourceOptions()...)

	n := *limit
	if n <= 0 {
		n = cfg.DefaultLimit
	}
	ing := app.NewIngester(fetcher, repository.NewCatalogStore(store),
		app.WithIngesterStrict(*strict || cfg.StrictSuccess))
	res := ing.Ingest(ctx, *query, min(n, cfg.MaxLimit))

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(res)
	if !res.Success {
		return 1
	}
	return 0
}

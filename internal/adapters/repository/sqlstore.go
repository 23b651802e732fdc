package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/okian/catalogd/internal/domain/model"
	"github.com/okian/catalogd/pkg/metrics"
)

// Dialect selects SQL flavour and driver.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

const pgUniqueViolation = "23505"

var sqliteSchema = []string{ //nolint:gochecknoglobals // DDL
	`CREATE TABLE IF NOT EXISTS catalog_entities (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		external_id      TEXT NOT NULL UNIQUE,
		name             TEXT NOT NULL,
		list_price       REAL NOT NULL CHECK (list_price > 0),
		discounted_price REAL,
		rating           REAL,
		review_count     INTEGER NOT NULL DEFAULT 0,
		category_tag     TEXT NOT NULL DEFAULT '',
		ingested_at      TIMESTAMP NOT NULL,
		updated_at       TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_catalog_entities_category ON catalog_entities(category_tag)`,
}

var postgresSchema = []string{ //nolint:gochecknoglobals // DDL
	`CREATE TABLE IF NOT EXISTS catalog_entities (
		id               BIGSERIAL PRIMARY KEY,
		external_id      VARCHAR(50) NOT NULL UNIQUE,
		name             VARCHAR(500) NOT NULL,
		list_price       DOUBLE PRECISION NOT NULL CHECK (list_price > 0),
		discounted_price DOUBLE PRECISION,
		rating           DOUBLE PRECISION,
		review_count     INTEGER NOT NULL DEFAULT 0,
		category_tag     VARCHAR(200) NOT NULL DEFAULT '',
		ingested_at      TIMESTAMPTZ NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_catalog_entities_category ON catalog_entities(category_tag)`,
}

func init() { //nolint:gochecknoinits // sqlite functions are registered per driver
	// sqlite's LOWER folds ASCII only
	sqlite.MustRegisterDeterministicScalarFunction("unicode_lower", 1, unicodeLower)
}

func unicodeLower(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

const entityColumns = `id, external_id, name, list_price, discounted_price, rating, review_count, category_tag, ingested_at, updated_at`

// SQLStore is a Store over database/sql through sqlx.
type SQLStore struct {
	db      *sqlx.DB
	dialect Dialect
}

// OpenSQL opens and pings a database for dialect. driver accepts "sqlite",
// "postgres" or "pgx".
func OpenSQL(ctx context.Context, driver, dsn string, ensureSchema bool) (*SQLStore, error) {
	var (
		dialect    Dialect
		driverName string
	)
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		dialect, driverName = DialectSQLite, "sqlite"
	case "postgres", "postgresql", "pgx":
		dialect, driverName = DialectPostgres, "pgx"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// one writer at a time; also keeps :memory: databases on a single connection
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}

	s := NewSQLStore(db, dialect)
	if ensureSchema {
		if err := s.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewSQLStore wraps an open database.
func NewSQLStore(db *sqlx.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// EnsureSchema creates the table and indexes when missing.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	stmts := sqliteSchema
	if s.dialect == DialectPostgres {
		stmts = postgresSchema
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

type sqlTx struct {
	tx   *sqlx.Tx
	seq  atomic.Int64
	done bool
}

// Begin opens a database transaction for one batch.
func (s *SQLStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx}, nil
}

// savepoint runs fn so that a failure undoes only fn's statements and keeps
// the surrounding transaction usable.
func (t *sqlTx) savepoint(ctx context.Context, fn func() error) error {
	if t.done {
		return ErrTxDone
	}
	name := fmt.Sprintf("rec_%d", t.seq.Add(1))
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return err
	}
	if err := fn(); err != nil {
		if _, rbErr := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	_, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
	return err
}

func (t *sqlTx) FindByExternalID(ctx context.Context, externalID string) (model.CatalogEntity, error) {
	var e model.CatalogEntity
	err := t.savepoint(ctx, func() error {
		return t.tx.GetContext(ctx, &e, t.tx.Rebind(`SELECT `+entityColumns+` FROM catalog_entities WHERE external_id = ?`), externalID)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return model.CatalogEntity{}, ErrNotFound
	}
	return e, err
}

func (t *sqlTx) Insert(ctx context.Context, e model.CatalogEntity) error {
	return t.savepoint(ctx, func() error {
		_, err := t.tx.ExecContext(ctx, t.tx.Rebind(`INSERT INTO catalog_entities
			(external_id, name, list_price, discounted_price, rating, review_count, category_tag, ingested_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			e.ExternalID, e.Name, e.ListPrice, e.DiscountedPrice, e.Rating, e.ReviewCount, e.CategoryTag, e.IngestedAt, e.UpdatedAt)
		return classify(err)
	})
}

func (t *sqlTx) Update(ctx context.Context, e model.CatalogEntity) error {
	return t.savepoint(ctx, func() error {
		res, err := t.tx.ExecContext(ctx, t.tx.Rebind(`UPDATE catalog_entities SET
			name = ?, list_price = ?, discounted_price = ?, rating = ?, review_count = ?, category_tag = ?, updated_at = ?
			WHERE external_id = ?`),
			e.Name, e.ListPrice, e.DiscountedPrice, e.Rating, e.ReviewCount, e.CategoryTag, e.UpdatedAt, e.ExternalID)
		if err != nil {
			return classify(err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (t *sqlTx) Commit(_ context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	return t.tx.Commit()
}

func (t *sqlTx) Rollback(_ context.Context) error {
	t.done = true
	return t.tx.Rollback()
}

// classify maps driver unique violations onto ErrConflict.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %w", ErrConflict, err)
		}
	}
	return err
}

// where renders f as a SQL predicate with ? placeholders.
func (s *SQLStore) where(f Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.MinPrice != nil {
		conds, args = append(conds, "list_price >= ?"), append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		conds, args = append(conds, "list_price <= ?"), append(args, *f.MaxPrice)
	}
	if f.MinRating != nil {
		conds, args = append(conds, "rating >= ?"), append(args, *f.MinRating)
	}
	if f.MinReviews != nil {
		conds, args = append(conds, "review_count >= ?"), append(args, *f.MinReviews)
	}
	lower, contains := "unicode_lower", "instr"
	if s.dialect == DialectPostgres {
		lower, contains = "LOWER", "strpos"
	}
	if c := strings.TrimSpace(f.Category); c != "" {
		conds, args = append(conds, lower+"(category_tag) = ?"), append(args, strings.ToLower(c))
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		conds, args = append(conds, contains+"("+lower+"(name), ?) > 0"), append(args, strings.ToLower(q))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Get returns the committed entity for externalID.
func (s *SQLStore) Get(ctx context.Context, externalID string) (model.CatalogEntity, error) {
	var e model.CatalogEntity
	err := s.db.GetContext(ctx, &e, s.db.Rebind(`SELECT `+entityColumns+` FROM catalog_entities WHERE external_id = ?`), externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CatalogEntity{}, ErrNotFound
	}
	return e, err
}

// List filters, sorts and pages in SQL.
func (s *SQLStore) List(ctx context.Context, q Query) (Page, error) {
	q, err := q.Normalized()
	if err != nil {
		return Page{}, err
	}
	where, args := s.where(q.Filter)

	page := Page{Page: q.Page, PerPage: q.PerPage, Items: []model.CatalogEntity{}}
	if err := s.db.GetContext(ctx, &page.Total, s.db.Rebind(`SELECT COUNT(*) FROM catalog_entities`+where), args...); err != nil {
		return Page{}, fmt.Errorf("count: %w", err)
	}

	dir, nulls := "ASC", "NULLS FIRST"
	if q.Desc {
		dir, nulls = "DESC", "NULLS LAST"
	}
	order := fmt.Sprintf(" ORDER BY %s %s", sortColumns[q.SortBy], dir)
	if q.SortBy == "rating" {
		order += " " + nulls
	}
	order += ", id " + dir

	listArgs := append(append([]any{}, args...), q.PerPage, q.Offset())
	query := s.db.Rebind(`SELECT ` + entityColumns + ` FROM catalog_entities` + where + order + ` LIMIT ? OFFSET ?`)
	if err := s.db.SelectContext(ctx, &page.Items, query, listArgs...); err != nil {
		return Page{}, fmt.Errorf("list: %w", err)
	}
	return page, nil
}

// Stats aggregates the matching rows.
func (s *SQLStore) Stats(ctx context.Context, f Filter) (Stats, error) {
	where, args := s.where(f)
	var rows []model.CatalogEntity
	query := s.db.Rebind(`SELECT ` + entityColumns + ` FROM catalog_entities` + where + ` ORDER BY id`)
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return BuildStats(rows), nil
}

// Count returns the number of stored entities.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM catalog_entities`); err != nil {
		return 0, err
	}
	metrics.UpdateCatalogEntities(n)
	return n, nil
}

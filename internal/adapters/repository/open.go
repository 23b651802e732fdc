package repository

import (
	"context"
	"fmt"
	"strings"
)

// Open builds the Store named by driver: "memory", "sqlite" or "postgres".
func Open(ctx context.Context, driver, dsn string, ensureSchema bool) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite", "sqlite3", "postgres", "postgresql", "pgx":
		if dsn == "" {
			return nil, fmt.Errorf("%w: %s requires a dsn", ErrUnknownDriver, driver)
		}
		return OpenSQL(ctx, driver, dsn, ensureSchema)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

package database

import (
	"context"
	"fmt"

	"github.com/protocolzero/codepolice/internal/config"
)

// DB is the generic storage interface used for the shared analysis cache and
// auto-fix run records. Implementations exist for SQLite (default) and MySQL.
type DB interface {
	// Select executes a query and scans rows into dest (slice pointer).
	Select(ctx context.Context, dest any, query string, args ...any) error

	// Get executes a query expected to return a single row and scans into dest.
	Get(ctx context.Context, dest any, query string, args ...any) error

	// Exec executes a statement that returns no rows.
	Exec(ctx context.Context, query string, args ...any) error

	// Delete removes rows from table matching where and returns how many went.
	Delete(ctx context.Context, table, where string, args ...any) (int64, error)

	// Upsert inserts or updates based on conflictCols.
	Upsert(ctx context.Context, table string, record any, conflictCols []string) error

	// Migrate applies pending schema migrations in order.
	Migrate(ctx context.Context) error

	// Ping verifies the database connection is alive.
	Ping(ctx context.Context) error

	// Close releases the database connection.
	Close() error

	// Driver returns the backend name: "sqlite" or "mysql".
	Driver() string
}

// New returns a DB implementation matching cfg.Driver.
// SQLite is the default when driver is empty.
func New(cfg config.DatabaseConfig) (DB, error) {
	switch cfg.Driver {
	case "mysql":
		return NewMySQL(cfg)
	case "sqlite", "sqlite3", "":
		return NewSQLite(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q (supported: sqlite, mysql)", cfg.Driver)
	}
}

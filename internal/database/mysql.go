package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"github.com/protocolzero/codepolice/internal/config"
)

// MySQLDB implements DB using MySQL via go-sql-driver/mysql. It lets several
// gateway instances share the second cache tier.
type MySQLDB struct {
	db  *sql.DB
	dsn string
}

// NewMySQL opens a MySQL connection using cfg.DSN.
func NewMySQL(cfg config.DatabaseConfig) (*MySQLDB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("mysql DSN is required when driver is mysql")
	}

	// Append parseTime=true if not already set.
	dsn := cfg.DSN
	if !strings.Contains(dsn, "parseTime") {
		if strings.Contains(dsn, "?") {
			dsn += "&parseTime=true"
		} else {
			dsn += "?parseTime=true"
		}
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening mysql connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	m := &MySQLDB{db: db, dsn: dsn}
	if err := m.Ping(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging mysql: %w", err)
	}
	return m, nil
}

func (m *MySQLDB) Driver() string { return "mysql" }

func (m *MySQLDB) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *MySQLDB) Close() error {
	return m.db.Close()
}

// Migrate applies pending SQL migrations adapted for MySQL syntax.
func (m *MySQLDB) Migrate(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		id         INT          NOT NULL AUTO_INCREMENT PRIMARY KEY,
		filename   VARCHAR(255) NOT NULL UNIQUE,
		applied_at VARCHAR(64)  NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}
	return applyMigrations(ctx, m.db, m.Driver(), mysqlAdapt)
}

// Select executes query and scans all rows into dest.
func (m *MySQLDB) Select(ctx context.Context, dest any, query string, args ...any) error {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return scanRows(rows, dest)
}

// Get executes query and scans a single row into dest.
func (m *MySQLDB) Get(ctx context.Context, dest any, query string, args ...any) error {
	row := m.db.QueryRowContext(ctx, query, args...)
	return scanRow(row, dest)
}

// Exec executes a statement that returns no rows.
func (m *MySQLDB) Exec(ctx context.Context, query string, args ...any) error {
	_, err := m.db.ExecContext(ctx, query, args...)
	return err
}

// Delete removes rows matching where.
func (m *MySQLDB) Delete(ctx context.Context, table, where string, args ...any) (int64, error) {
	return deleteRows(ctx, m.db, table, where, args...)
}

// Upsert uses INSERT ... ON DUPLICATE KEY UPDATE for MySQL.
func (m *MySQLDB) Upsert(ctx context.Context, table string, record any, conflictCols []string) error {
	cols, placeholders, vals := structToInsert(record)

	updatePairs := make([]string, 0, len(cols))
	for _, c := range nonConflictCols(cols, conflictCols) {
		updatePairs = append(updatePairs, fmt.Sprintf("%s = VALUES(%s)", c, c))
	}

	// Internal DB helper: SQL identifiers are constructed from trusted struct tags/inputs; values are parameterized.
	// nosemgrep: go.lang.security.audit.database.string-formatted-query.string-formatted-query
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
		table,
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updatePairs, ", "),
	)
	if _, err := m.db.ExecContext(ctx, query, vals...); err != nil {
		return fmt.Errorf("upsert into %s: %w", table, err)
	}
	return nil
}

// mysqlAdapt converts SQLite-flavoured migration SQL to MySQL.
func mysqlAdapt(stmt string) string {
	stmt = strings.ReplaceAll(stmt, "AUTOINCREMENT", "AUTO_INCREMENT")
	stmt = strings.ReplaceAll(stmt, "INTEGER PRIMARY KEY AUTO_INCREMENT",
		"INT NOT NULL AUTO_INCREMENT PRIMARY KEY")
	stmt = strings.ReplaceAll(stmt, " REAL ", " DOUBLE ")
	if strings.HasPrefix(strings.ToUpper(stmt), "CREATE TABLE") {
		stmt += " ENGINE=InnoDB DEFAULT CHARSET=utf8mb4"
	}
	return stmt
}

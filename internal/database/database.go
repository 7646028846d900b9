// Package database opens SQL connections for the storage backends and applies
// their schema migrations.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// SQLDriverName maps a storage driver to the database/sql driver registered
// for it.
func SQLDriverName(driver string) (string, error) {
	switch driver {
	case DriverPostgres:
		return "pgx", nil
	case DriverSQLite:
		return "sqlite", nil
	}
	return "", fmt.Errorf("unsupported SQL driver %q", driver)
}

// SQLiteDSN appends the pragmas every SQLite connection needs unless the
// caller already supplied query parameters.
func SQLiteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
}

// Open opens and pings a connection pool for driver.
func Open(ctx context.Context, driver, dsn string, maxOpenConns int) (*sql.DB, error) {
	name, err := SQLDriverName(driver)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		dsn = SQLiteDSN(dsn)
		// SQLite serialises writers; a single connection avoids SQLITE_BUSY.
		maxOpenConns = 1
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}

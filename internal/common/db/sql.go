package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/stdlib"
	_ "modernc.org/sqlite"

	"github.com/AlibekovAA/authcore/internal/common/logger"
)

// OpenPostgresSQL returns a database/sql handle over pgx, used where a
// *sql.DB is required (schema migrations).
func OpenPostgresSQL(ctx context.Context, log *logger.Logger, databaseURL string) (*sql.DB, error) {
	connCfg, err := pgx.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}

	conn := stdlib.OpenDB(*connCfg)
	if err := ConnectWithRetry(ctx, log, DefaultConnectRetry, conn.PingContext); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// SQLiteBusyTimeout bounds how long a statement waits on a lock held by
// another process sharing the database file.
const SQLiteBusyTimeout = 5 * time.Second

// OpenSQLite opens a SQLite database through the pure-Go driver. A single
// connection serializes writers within the process; busy_timeout covers
// locks held by other processes.
func OpenSQLite(ctx context.Context, dsn string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", SQLiteBusyTimeout.Milliseconds()),
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to configure sqlite: %w", err)
		}
	}
	return conn, nil
}

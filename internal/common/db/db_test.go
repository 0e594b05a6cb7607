package db

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlibekovAA/authcore/internal/common/logger"
)

var fastRetry = RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func TestConnectWithRetry_SucceedsAfterFailures(t *testing.T) {
	log := logger.NewWithWriter(&bytes.Buffer{}, "test", "debug")
	calls := 0

	err := ConnectWithRetry(context.Background(), log, fastRetry, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestConnectWithRetry_GivesUp(t *testing.T) {
	log := logger.NewWithWriter(&bytes.Buffer{}, "test", "debug")
	calls := 0
	cause := errors.New("connection refused")

	err := ConnectWithRetry(context.Background(), log, fastRetry, func(ctx context.Context) error {
		calls++
		return cause
	})

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 3, calls)
}

func TestConnectWithRetry_BadCredentialsAreFinal(t *testing.T) {
	log := logger.NewWithWriter(&bytes.Buffer{}, "test", "debug")
	calls := 0

	err := ConnectWithRetry(context.Background(), log, fastRetry, func(ctx context.Context) error {
		calls++
		return &pgconn.PgError{Code: "28P01", Message: "password authentication failed"}
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestOpenSQLite_InMemory(t *testing.T) {
	conn, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	var one int
	require.NoError(t, conn.QueryRow("SELECT 1").Scan(&one))
	assert.Equal(t, 1, one)
}

func TestOpenSQLite_ConfiguresBusyTimeout(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "auth.db")
	conn, err := OpenSQLite(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	var timeout int64
	require.NoError(t, conn.QueryRow("PRAGMA busy_timeout").Scan(&timeout))
	assert.Equal(t, SQLiteBusyTimeout.Milliseconds(), timeout)

	var foreignKeys int
	require.NoError(t, conn.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 1, foreignKeys)
}

func TestHandleQueryError(t *testing.T) {
	notFound := errors.New("not found")
	start := time.Now()

	assert.NoError(t, HandleQueryError(nil, notFound, "sqlite", "find account", start))
	assert.Equal(t, notFound, HandleQueryError(fmt.Errorf("scan: %w", sql.ErrNoRows), notFound, "sqlite", "find account", start))

	err := HandleQueryError(errors.New("boom"), notFound, "sqlite", "find account", start)
	assert.EqualError(t, err, "failed to find account: boom")
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/AlibekovAA/authcore/internal/account/domain"
	"github.com/AlibekovAA/authcore/internal/common/db"
	commonerrors "github.com/AlibekovAA/authcore/internal/common/errors"
)

const (
	sqliteUniqueFailed = "UNIQUE constraint failed"
	storeNameSQLite    = "sqlite"
)

// SQLDB is the subset of *sql.DB (or *sql.Tx) the SQLite store needs.
type SQLDB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type SQLiteStore struct {
	db SQLDB
}

func NewSQLiteStore(conn SQLDB) *SQLiteStore {
	return &SQLiteStore{db: conn}
}

func (s *SQLiteStore) Create(ctx context.Context, draft domain.Draft) (domain.Account, error) {
	start := time.Now()
	account := draft.Account()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = start.UTC()
	}
	account.UpdatedAt = account.CreatedAt

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO accounts (id, username, email, password_hash, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(account.ID),
		account.Username,
		account.Email,
		account.PasswordHash,
		account.IsActive,
		account.CreatedAt,
		account.UpdatedAt,
	)
	db.RecordQueryError(err, storeNameSQLite, "create account", start)
	if err == nil {
		return account, nil
	}

	if column, ok := sqliteUniqueColumn(err); ok {
		switch column {
		case "username":
			return domain.Account{}, ErrDuplicateUsername
		case "email":
			if _, err := s.FindByUsername(ctx, account.Username); err == nil {
				return domain.Account{}, ErrDuplicateUsername
			}
			return domain.Account{}, ErrDuplicateEmail
		}
	}
	return domain.Account{}, storageError("create account", err)
}

func (s *SQLiteStore) FindByUsername(ctx context.Context, username string) (domain.Account, error) {
	return s.findOne(ctx, "find account by username", selectAccountColumns+` WHERE username = ?`, username)
}

func (s *SQLiteStore) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	return s.findOne(ctx, "find account by email", selectAccountColumns+` WHERE email = ?`, email)
}

func (s *SQLiteStore) FindByID(ctx context.Context, id domain.ID) (domain.Account, error) {
	return s.findOne(ctx, "find account by id", selectAccountColumns+` WHERE id = ?`, string(id))
}

func (s *SQLiteStore) SetActive(ctx context.Context, id domain.ID, active bool) error {
	start := time.Now()
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE accounts SET is_active = ?, updated_at = ? WHERE id = ?`,
		active,
		start.UTC(),
		string(id),
	)
	db.RecordQueryError(err, storeNameSQLite, "set account active", start)
	if err != nil {
		return storageError("set account active", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageError("set account active", err)
	}
	if n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (s *SQLiteStore) findOne(ctx context.Context, operation, query string, arg any) (domain.Account, error) {
	start := time.Now()

	var account domain.Account
	var id string
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&id,
		&account.Username,
		&account.Email,
		&account.PasswordHash,
		&account.IsActive,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err = db.HandleQueryError(err, ErrAccountNotFound, storeNameSQLite, operation, start); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return domain.Account{}, err
		}
		return domain.Account{}, commonerrors.ErrStorage.WithCause(err)
	}

	account.ID = domain.ID(id)
	return account, nil
}

// sqliteUniqueColumn extracts the column named by a UNIQUE violation,
// e.g. "UNIQUE constraint failed: accounts.email".
func sqliteUniqueColumn(err error) (string, bool) {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return "", false
	}

	msg := err.Error()
	idx := strings.Index(msg, sqliteUniqueFailed)
	if idx < 0 {
		return "", false
	}
	rest := strings.TrimSpace(msg[idx+len(sqliteUniqueFailed):])
	rest = strings.TrimPrefix(rest, ":")
	rest = strings.TrimSpace(rest)
	if end := strings.IndexAny(rest, " ,("); end >= 0 {
		rest = rest[:end]
	}
	_, column, ok := strings.Cut(rest, ".")
	return column, ok
}

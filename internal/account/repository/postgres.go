package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	pgx "github.com/jackc/pgx/v4"

	"github.com/AlibekovAA/authcore/internal/account/domain"
	"github.com/AlibekovAA/authcore/internal/common/db"
	commonerrors "github.com/AlibekovAA/authcore/internal/common/errors"
)

const (
	pgUniqueViolation    = "23505"
	pgUsernameConstraint = "accounts_username_key"
	pgEmailConstraint    = "accounts_email_key"
	storeNamePostgres    = "postgres"
	selectAccountColumns = `SELECT id, username, email, password_hash, is_active, created_at, updated_at FROM accounts`
	pgInsertAccount      = `INSERT INTO accounts (id, username, email, password_hash, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)
		 RETURNING created_at, updated_at`
)

// PgQuerier is the subset of *pgxpool.Pool the store needs.
type PgQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type PgStore struct {
	pool PgQuerier
}

func NewPgStore(pool PgQuerier) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) Create(ctx context.Context, draft domain.Draft) (domain.Account, error) {
	start := time.Now()
	account := draft.Account()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = start.UTC()
	}

	err := s.pool.QueryRow(
		ctx,
		pgInsertAccount,
		string(account.ID),
		account.Username,
		account.Email,
		account.PasswordHash,
		account.IsActive,
		account.CreatedAt,
	).Scan(&account.CreatedAt, &account.UpdatedAt)
	db.RecordQueryError(err, storeNamePostgres, "create account", start)
	if err == nil {
		return account, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		switch pgErr.ConstraintName {
		case pgUsernameConstraint:
			return domain.Account{}, ErrDuplicateUsername
		case pgEmailConstraint:
			return domain.Account{}, s.emailConflict(ctx, account.Username)
		}
	}
	return domain.Account{}, storageError("create account", err)
}

// emailConflict reports the username as the conflict when it is also taken.
func (s *PgStore) emailConflict(ctx context.Context, username string) error {
	if _, err := s.FindByUsername(ctx, username); err == nil {
		return ErrDuplicateUsername
	}
	return ErrDuplicateEmail
}

func (s *PgStore) FindByUsername(ctx context.Context, username string) (domain.Account, error) {
	return s.findOne(ctx, "find account by username", selectAccountColumns+` WHERE username = $1`, username)
}

func (s *PgStore) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	return s.findOne(ctx, "find account by email", selectAccountColumns+` WHERE email = $1`, email)
}

func (s *PgStore) FindByID(ctx context.Context, id domain.ID) (domain.Account, error) {
	return s.findOne(ctx, "find account by id", selectAccountColumns+` WHERE id = $1`, string(id))
}

func (s *PgStore) SetActive(ctx context.Context, id domain.ID, active bool) error {
	start := time.Now()
	tag, err := s.pool.Exec(
		ctx,
		`UPDATE accounts SET is_active = $2, updated_at = NOW() WHERE id = $1`,
		string(id),
		active,
	)
	db.RecordQueryError(err, storeNamePostgres, "set account active", start)
	if err != nil {
		return storageError("set account active", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (s *PgStore) findOne(ctx context.Context, operation, query string, arg interface{}) (domain.Account, error) {
	start := time.Now()

	var account domain.Account
	var id string
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&id,
		&account.Username,
		&account.Email,
		&account.PasswordHash,
		&account.IsActive,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err = db.HandleQueryError(err, ErrAccountNotFound, storeNamePostgres, operation, start); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return domain.Account{}, err
		}
		return domain.Account{}, commonerrors.ErrStorage.WithCause(err)
	}

	account.ID = domain.ID(id)
	return account, nil
}

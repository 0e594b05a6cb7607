package repository

import (
	"context"
	"fmt"

	"github.com/AlibekovAA/authcore/internal/account/domain"
	commonerrors "github.com/AlibekovAA/authcore/internal/common/errors"
)

// Store persists accounts. Implementations enforce username and email
// uniqueness atomically with the insert and report:
//   - ErrAccountNotFound when a lookup has no match
//   - ErrDuplicateUsername / ErrDuplicateEmail on Create conflicts,
//     username first when both collide
//   - an error matching commonerrors.ErrStorage for anything else
type Store interface {
	Create(ctx context.Context, draft domain.Draft) (domain.Account, error)
	FindByUsername(ctx context.Context, username string) (domain.Account, error)
	FindByEmail(ctx context.Context, email string) (domain.Account, error)
	FindByID(ctx context.Context, id domain.ID) (domain.Account, error)
}

// ActivationStore is implemented by stores that can enable or disable an
// account without deleting it.
type ActivationStore interface {
	SetActive(ctx context.Context, id domain.ID, active bool) error
}

var (
	ErrAccountNotFound   = commonerrors.ErrAccountNotFound
	ErrDuplicateUsername = commonerrors.ErrUsernameAlreadyExists
	ErrDuplicateEmail    = commonerrors.ErrEmailAlreadyExists
)

func storageError(op string, err error) error {
	return commonerrors.ErrStorage.WithCause(fmt.Errorf("failed to %s: %w", op, err))
}

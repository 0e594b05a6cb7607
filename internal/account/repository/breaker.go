package repository

import (
	"context"
	"errors"

	"github.com/AlibekovAA/authcore/internal/account/domain"
	commonerrors "github.com/AlibekovAA/authcore/internal/common/errors"
	"github.com/AlibekovAA/authcore/internal/common/resilience"
)

// BreakerStore fails fast with a storage error while the backing store is
// unhealthy. Lookups that miss and uniqueness conflicts are normal outcomes
// and do not trip the breaker. Nothing is retried.
type BreakerStore struct {
	inner Store
	cb    *resilience.CircuitBreaker
}

func NewBreakerStore(inner Store, cfg resilience.CircuitBreakerConfig) *BreakerStore {
	cfg.IsFailure = isInfrastructureFailure
	return &BreakerStore{inner: inner, cb: resilience.NewCircuitBreaker(cfg)}
}

func isInfrastructureFailure(err error) bool {
	switch {
	case errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrDuplicateUsername),
		errors.Is(err, ErrDuplicateEmail),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

func (s *BreakerStore) Create(ctx context.Context, draft domain.Draft) (domain.Account, error) {
	var account domain.Account
	err := s.cb.Call(ctx, func(ctx context.Context) error {
		var err error
		account, err = s.inner.Create(ctx, draft)
		return err
	})
	return account, openCircuitAsStorage(err)
}

func (s *BreakerStore) FindByUsername(ctx context.Context, username string) (domain.Account, error) {
	return s.find(ctx, func(ctx context.Context) (domain.Account, error) {
		return s.inner.FindByUsername(ctx, username)
	})
}

func (s *BreakerStore) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	return s.find(ctx, func(ctx context.Context) (domain.Account, error) {
		return s.inner.FindByEmail(ctx, email)
	})
}

func (s *BreakerStore) FindByID(ctx context.Context, id domain.ID) (domain.Account, error) {
	return s.find(ctx, func(ctx context.Context) (domain.Account, error) {
		return s.inner.FindByID(ctx, id)
	})
}

func (s *BreakerStore) SetActive(ctx context.Context, id domain.ID, active bool) error {
	activation, ok := s.inner.(ActivationStore)
	if !ok {
		return storageError("set account active", errors.New("store does not support activation"))
	}
	return openCircuitAsStorage(s.cb.Call(ctx, func(ctx context.Context) error {
		return activation.SetActive(ctx, id, active)
	}))
}

func (s *BreakerStore) find(ctx context.Context, fn func(context.Context) (domain.Account, error)) (domain.Account, error) {
	var account domain.Account
	err := s.cb.Call(ctx, func(ctx context.Context) error {
		var err error
		account, err = fn(ctx)
		return err
	})
	if err != nil {
		return domain.Account{}, openCircuitAsStorage(err)
	}
	return account, nil
}

func openCircuitAsStorage(err error) error {
	if errors.Is(err, commonerrors.ErrCircuitOpen) {
		return commonerrors.ErrStorage.WithCause(err)
	}
	return err
}

package service_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/AlibekovAA/authcore/internal/account/domain"
	"github.com/AlibekovAA/authcore/internal/account/repository"
	"github.com/AlibekovAA/authcore/internal/auth/service"
	"github.com/AlibekovAA/authcore/internal/auth/token"
	"github.com/AlibekovAA/authcore/internal/common/clock"
	commoncrypto "github.com/AlibekovAA/authcore/internal/common/crypto"
	"github.com/AlibekovAA/authcore/internal/common/logger"
)

type mockStore struct {
	createFunc         func(ctx context.Context, draft domain.Draft) (domain.Account, error)
	findByUsernameFunc func(ctx context.Context, username string) (domain.Account, error)
	findByEmailFunc    func(ctx context.Context, email string) (domain.Account, error)
	findByIDFunc       func(ctx context.Context, id domain.ID) (domain.Account, error)
}

func (m *mockStore) Create(ctx context.Context, draft domain.Draft) (domain.Account, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, draft)
	}
	return draft.Account(), nil
}

func (m *mockStore) FindByUsername(ctx context.Context, username string) (domain.Account, error) {
	if m.findByUsernameFunc != nil {
		return m.findByUsernameFunc(ctx, username)
	}
	return domain.Account{}, repository.ErrAccountNotFound
}

func (m *mockStore) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	if m.findByEmailFunc != nil {
		return m.findByEmailFunc(ctx, email)
	}
	return domain.Account{}, repository.ErrAccountNotFound
}

func (m *mockStore) FindByID(ctx context.Context, id domain.ID) (domain.Account, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return domain.Account{}, repository.ErrAccountNotFound
}

type mockHasher struct {
	hashFunc    func(password string) (string, error)
	compareFunc func(hash, password string) error
	compared    []string
}

func (m *mockHasher) Hash(ctx context.Context, password string) (string, error) {
	if m.hashFunc != nil {
		return m.hashFunc(password)
	}
	return "hashed_" + password, nil
}

func (m *mockHasher) Compare(ctx context.Context, hash, password string) error {
	m.compared = append(m.compared, hash)
	if m.compareFunc != nil {
		return m.compareFunc(hash, password)
	}
	if hash == "hashed_"+password {
		return nil
	}
	return commoncrypto.ErrMismatchedHashAndPassword
}

type mockTokenIssuer struct {
	issueFunc func(subject string) (string, token.Claims, error)
	clock     clock.Clock
}

func (m *mockTokenIssuer) Issue(subject string) (string, token.Claims, error) {
	if m.issueFunc != nil {
		return m.issueFunc(subject)
	}
	now := m.clock.Now()
	return "token-for-" + subject, token.Claims{
		Subject:   subject,
		IssuedAt:  now,
		ExpiresAt: now.Add(24 * time.Hour),
	}, nil
}

type mockIDGenerator struct {
	ids []string
}

func (m *mockIDGenerator) NewID() (string, error) {
	if len(m.ids) == 0 {
		return "generated-id", nil
	}
	id := m.ids[0]
	m.ids = m.ids[1:]
	return id, nil
}

func newTestLogger() *logger.Logger {
	return logger.NewWithWriter(io.Discard, "test", "error")
}

func setupAuthService(t *testing.T) (*service.AuthService, *mockStore, *mockHasher, *mockTokenIssuer, *clock.MockClock) {
	t.Helper()

	mockClock := clock.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	store := &mockStore{}
	hasher := &mockHasher{}
	tokens := &mockTokenIssuer{clock: mockClock}

	svc, err := service.NewAuthService(service.AuthServiceDeps{
		Store:       store,
		Hasher:      hasher,
		Tokens:      tokens,
		IDGenerator: &mockIDGenerator{ids: []string{"dummy-secret"}},
		Clock:       mockClock,
		Log:         newTestLogger(),
	})
	if err != nil {
		t.Fatalf("failed to create auth service: %v", err)
	}

	return svc, store, hasher, tokens, mockClock
}

func isDummyHash(hash string) bool {
	return strings.HasSuffix(hash, "dummy-secret")
}

package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/AlibekovAA/authcore/internal/account/domain"
	"github.com/AlibekovAA/authcore/internal/account/repository"
	"github.com/AlibekovAA/authcore/internal/auth/service"
	commoncrypto "github.com/AlibekovAA/authcore/internal/common/crypto"
	commonerrors "github.com/AlibekovAA/authcore/internal/common/errors"
)

func activeAccount(username, password string) domain.Account {
	return domain.Account{
		ID:           "user-123",
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hashed_" + password,
		IsActive:     true,
	}
}

func TestAuthService_Login_Success(t *testing.T) {
	svc, store, _, _, _ := setupAuthService(t)

	store.findByUsernameFunc = func(ctx context.Context, username string) (domain.Account, error) {
		if username != "alice" {
			t.Errorf("expected username alice, got %s", username)
		}
		return activeAccount("alice", "Str0ng!Pass"), nil
	}

	result, err := svc.Login(context.Background(), service.LoginInput{
		Username: "alice",
		Password: "Str0ng!Pass",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Token != "token-for-user-123" {
		t.Errorf("expected token for user-123, got %q", result.Token)
	}
}

func TestAuthService_Login_TrimsUsername(t *testing.T) {
	svc, store, _, _, _ := setupAuthService(t)

	store.findByUsernameFunc = func(ctx context.Context, username string) (domain.Account, error) {
		if username != "alice" {
			t.Errorf("expected trimmed username alice, got %q", username)
		}
		return activeAccount("alice", "Str0ng!Pass"), nil
	}

	if _, err := svc.Login(context.Background(), service.LoginInput{
		Username: "  alice ",
		Password: "Str0ng!Pass",
	}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestAuthService_Login_WhitespaceOnlyUsername(t *testing.T) {
	svc, _, _, _, _ := setupAuthService(t)

	_, err := svc.Login(context.Background(), service.LoginInput{Username: "   ", Password: "x"})
	if !errors.Is(err, service.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestAuthService_Login_EmptyFields(t *testing.T) {
	svc, _, _, _, _ := setupAuthService(t)

	_, err := svc.Login(context.Background(), service.LoginInput{})
	if !errors.Is(err, service.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestAuthService_Login_IgnoresRegistrationPolicy(t *testing.T) {
	svc, store, _, _, _ := setupAuthService(t)

	store.findByUsernameFunc = func(ctx context.Context, username string) (domain.Account, error) {
		return activeAccount("ab", "weak"), nil
	}

	if _, err := svc.Login(context.Background(), service.LoginInput{Username: "ab", Password: "weak"}); err != nil {
		t.Fatalf("expected legacy credentials to log in, got %v", err)
	}
}

func TestAuthService_Login_UserNotFound(t *testing.T) {
	svc, _, hasher, _, _ := setupAuthService(t)

	_, err := svc.Login(context.Background(), service.LoginInput{
		Username: "ghost",
		Password: "Str0ng!Pass",
	})
	if err != service.ErrInvalidCredentials {
		t.Fatalf("expected the ErrInvalidCredentials value, got %v", err)
	}
	if len(hasher.compared) != 1 || !isDummyHash(hasher.compared[0]) {
		t.Errorf("expected one comparison against the dummy hash, got %v", hasher.compared)
	}
}

func TestAuthService_Login_InvalidPassword(t *testing.T) {
	svc, store, hasher, _, _ := setupAuthService(t)

	store.findByUsernameFunc = func(ctx context.Context, username string) (domain.Account, error) {
		return activeAccount("alice", "Str0ng!Pass"), nil
	}

	_, err := svc.Login(context.Background(), service.LoginInput{
		Username: "alice",
		Password: "Wr0ng!Pass",
	})
	if err != service.ErrInvalidCredentials {
		t.Fatalf("expected the ErrInvalidCredentials value, got %v", err)
	}
	if len(hasher.compared) != 1 {
		t.Errorf("expected one comparison, got %d", len(hasher.compared))
	}
}

func TestAuthService_Login_InactiveAccount(t *testing.T) {
	svc, store, hasher, _, _ := setupAuthService(t)

	store.findByUsernameFunc = func(ctx context.Context, username string) (domain.Account, error) {
		account := activeAccount("alice", "Str0ng!Pass")
		account.IsActive = false
		return account, nil
	}

	_, err := svc.Login(context.Background(), service.LoginInput{
		Username: "alice",
		Password: "Str0ng!Pass",
	})
	if err != service.ErrInvalidCredentials {
		t.Fatalf("expected the ErrInvalidCredentials value, got %v", err)
	}
	if len(hasher.compared) != 1 || !isDummyHash(hasher.compared[0]) {
		t.Errorf("expected one comparison against the dummy hash, got %v", hasher.compared)
	}
}

func TestAuthService_Login_MalformedStoredHash(t *testing.T) {
	svc, store, hasher, _, _ := setupAuthService(t)

	store.findByUsernameFunc = func(ctx context.Context, username string) (domain.Account, error) {
		return activeAccount("alice", "Str0ng!Pass"), nil
	}
	hasher.compareFunc = func(hash, password string) error {
		return commoncrypto.ErrMalformedHash
	}

	_, err := svc.Login(context.Background(), service.LoginInput{
		Username: "alice",
		Password: "Str0ng!Pass",
	})
	if err != service.ErrInvalidCredentials {
		t.Fatalf("expected the ErrInvalidCredentials value, got %v", err)
	}
}

func TestAuthService_Login_StorageError(t *testing.T) {
	svc, store, _, _, _ := setupAuthService(t)

	store.findByUsernameFunc = func(ctx context.Context, username string) (domain.Account, error) {
		return domain.Account{}, commonerrors.ErrStorage.WithCause(errors.New("timeout"))
	}

	_, err := svc.Login(context.Background(), service.LoginInput{
		Username: "alice",
		Password: "Str0ng!Pass",
	})
	if !errors.Is(err, commonerrors.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if errors.Is(err, service.ErrInvalidCredentials) {
		t.Error("a storage failure must not look like bad credentials")
	}
}

func TestAuthService_Login_CircuitBreakerOpen(t *testing.T) {
	svc, store, _, _, _ := setupAuthService(t)

	store.findByUsernameFunc = func(ctx context.Context, username string) (domain.Account, error) {
		return domain.Account{}, commonerrors.ErrStorage.WithCause(commonerrors.ErrCircuitOpen)
	}

	_, err := svc.Login(context.Background(), service.LoginInput{
		Username: "alice",
		Password: "Str0ng!Pass",
	})
	if !errors.Is(err, service.ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
}

func TestAuthService_CurrentAccount(t *testing.T) {
	svc, store, _, _, _ := setupAuthService(t)

	account := activeAccount("alice", "Str0ng!Pass")
	store.findByIDFunc = func(ctx context.Context, id domain.ID) (domain.Account, error) {
		switch id {
		case account.ID:
			return account, nil
		case "inactive":
			inactive := account
			inactive.IsActive = false
			return inactive, nil
		case "broken":
			return domain.Account{}, commonerrors.ErrStorage.WithCause(errors.New("io"))
		}
		return domain.Account{}, repository.ErrAccountNotFound
	}

	profile, err := svc.CurrentAccount(context.Background(), string(account.ID))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if profile.Username != "alice" || profile.Email != "alice@example.com" {
		t.Errorf("unexpected profile %+v", profile)
	}

	for _, id := range []string{"missing", "inactive"} {
		if _, err := svc.CurrentAccount(context.Background(), id); !errors.Is(err, commonerrors.ErrUnauthenticatedInvalid) {
			t.Errorf("%s: expected ErrUnauthenticatedInvalid, got %v", id, err)
		}
	}

	if _, err := svc.CurrentAccount(context.Background(), "broken"); !errors.Is(err, commonerrors.ErrStorage) {
		t.Errorf("expected ErrStorage, got %v", err)
	}
}

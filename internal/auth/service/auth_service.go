package service

import (
	"context"
	"errors"
	"time"

	"github.com/AlibekovAA/authcore/internal/account/domain"
	"github.com/AlibekovAA/authcore/internal/account/repository"
	"github.com/AlibekovAA/authcore/internal/auth/token"
	"github.com/AlibekovAA/authcore/internal/common/clock"
	commoncrypto "github.com/AlibekovAA/authcore/internal/common/crypto"
	commonerrors "github.com/AlibekovAA/authcore/internal/common/errors"
	"github.com/AlibekovAA/authcore/internal/common/logger"
)

type TokenIssuer interface {
	Issue(subject string) (string, token.Claims, error)
}

type AuthServiceDeps struct {
	Store       repository.Store
	Hasher      commoncrypto.PasswordHasher
	Tokens      TokenIssuer
	IDGenerator commoncrypto.IDGenerator
	Clock       clock.Clock
	Log         *logger.Logger
}

type AuthService struct {
	store       repository.Store
	hasher      commoncrypto.PasswordHasher
	tokens      TokenIssuer
	idGenerator commoncrypto.IDGenerator
	clock       clock.Clock
	validator   *CredentialValidator
	log         *logger.Logger
	dummyHash   string
}

func NewAuthService(deps AuthServiceDeps) (*AuthService, error) {
	if deps.Store == nil || deps.Hasher == nil || deps.Tokens == nil || deps.Log == nil {
		return nil, errors.New("auth service requires a store, hasher, token issuer and logger")
	}
	if deps.IDGenerator == nil {
		deps.IDGenerator = commoncrypto.NewUUIDGenerator()
	}
	if deps.Clock == nil {
		deps.Clock = clock.NewRealClock()
	}

	dummyHash, err := newDummyHash(deps.Hasher, deps.IDGenerator)
	if err != nil {
		return nil, err
	}

	return &AuthService{
		store:       deps.Store,
		hasher:      deps.Hasher,
		tokens:      deps.Tokens,
		idGenerator: deps.IDGenerator,
		clock:       deps.Clock,
		validator:   NewCredentialValidator(),
		log:         deps.Log,
		dummyHash:   dummyHash,
	}, nil
}

// newDummyHash produces a hash with the live parameters. Login compares
// against it when there is no usable account so that unknown usernames
// cost the same as wrong passwords.
func newDummyHash(hasher commoncrypto.PasswordHasher, ids commoncrypto.IDGenerator) (string, error) {
	secret, err := ids.NewID()
	if err != nil {
		return "", newInternalError("DUMMY_HASH_FAILED", "failed to prepare login", err)
	}
	hash, err := hasher.Hash(context.Background(), secret)
	if err != nil {
		return "", newInternalError("DUMMY_HASH_FAILED", "failed to prepare login", err)
	}
	return hash, nil
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type LoginInput struct {
	Username string
	Password string
}

type AuthResult struct {
	Token     string
	ExpiresAt time.Time
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	input.Username = normalizeUsername(input.Username)
	email := normalizeEmail(input.Email)

	s.log.WithFields(ctx, logger.Fields{
		"username": input.Username,
		"action":   "register_attempt",
	}).Info("register attempt")

	if err := s.validator.ValidateRegistration(input.Username, email, input.Password); err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"username": input.Username,
			"action":   "register_validation_failed",
		}).Warnf("register validation failed: %v", err)
		recordRegistration("invalid")
		return AuthResult{}, err
	}

	hash, err := s.hasher.Hash(ctx, input.Password)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"username": input.Username,
			"action":   "register_hash_failed",
		}).Errorf("register failed: password hash error: %v", err)
		recordRegistration("error")
		if ctx.Err() != nil {
			return AuthResult{}, storageFailure(err)
		}
		return AuthResult{}, newInternalError("HASH_FAILED", "failed to hash password", err)
	}

	id, err := s.idGenerator.NewID()
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"username": input.Username,
			"action":   "register_id_generation_failed",
		}).Errorf("register failed: id generation error: %v", err)
		recordRegistration("error")
		return AuthResult{}, newInternalError("ID_GENERATION_FAILED", "failed to generate account id", err)
	}

	account, err := s.store.Create(ctx, domain.Draft{
		ID:           domain.ID(id),
		Username:     input.Username,
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    s.clock.Now(),
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateUsername):
			s.log.WithFields(ctx, logger.Fields{
				"username": input.Username,
				"action":   "register_username_exists",
			}).Warn("register failed: username already exists")
			recordRegistration("conflict")
			return AuthResult{}, ErrUsernameTaken
		case errors.Is(err, repository.ErrDuplicateEmail):
			s.log.WithFields(ctx, logger.Fields{
				"username": input.Username,
				"action":   "register_email_exists",
			}).Warn("register failed: email already registered")
			recordRegistration("conflict")
			return AuthResult{}, ErrEmailTaken
		}
		s.log.WithFields(ctx, logger.Fields{
			"username": input.Username,
			"action":   "register_create_failed",
		}).Errorf("register failed: %v", err)
		recordRegistration("error")
		return AuthResult{}, storageFailure(err)
	}

	result, err := s.issue(account)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"username": input.Username,
			"user_id":  string(account.ID),
			"action":   "register_token_issue_failed",
		}).Errorf("register failed: token issue error: %v", err)
		recordRegistration("error")
		return AuthResult{}, err
	}

	s.log.WithFields(ctx, logger.Fields{
		"username": account.Username,
		"user_id":  string(account.ID),
		"action":   "register_success",
	}).Info("register success")
	recordRegistration("success")

	return result, nil
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	input.Username = normalizeUsername(input.Username)
	s.log.WithFields(ctx, logger.Fields{
		"username": input.Username,
		"action":   "login_attempt",
	}).Info("login attempt")

	if err := s.validator.ValidateLogin(input.Username, input.Password); err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"username": input.Username,
			"action":   "login_validation_failed",
		}).Warnf("login validation failed: %v", err)
		recordLogin("invalid")
		return AuthResult{}, err
	}

	account, err := s.store.FindByUsername(ctx, input.Username)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			s.burnCompare(ctx, input.Password)
			s.log.WithFields(ctx, logger.Fields{
				"username": input.Username,
				"action":   "login_user_not_found",
			}).Warn("login failed: not found")
			recordLogin("rejected")
			return AuthResult{}, ErrInvalidCredentials
		}
		s.log.WithFields(ctx, logger.Fields{
			"username": input.Username,
			"action":   "login_fetch_failed",
		}).Errorf("login failed: %v", err)
		recordLogin("error")
		return AuthResult{}, storageFailure(err)
	}

	if !account.IsActive {
		s.burnCompare(ctx, input.Password)
		s.log.WithFields(ctx, logger.Fields{
			"username": input.Username,
			"user_id":  string(account.ID),
			"action":   "login_account_inactive",
		}).Warn("login failed: account inactive")
		recordLogin("rejected")
		return AuthResult{}, ErrInvalidCredentials
	}

	if err := s.hasher.Compare(ctx, account.PasswordHash, input.Password); err != nil {
		if ctx.Err() != nil {
			s.log.WithFields(ctx, logger.Fields{
				"username": input.Username,
				"action":   "login_compare_aborted",
			}).Warnf("login aborted: %v", err)
			recordLogin("error")
			return AuthResult{}, storageFailure(err)
		}
		if !errors.Is(err, commoncrypto.ErrMismatchedHashAndPassword) {
			s.log.WithFields(ctx, logger.Fields{
				"username": input.Username,
				"user_id":  string(account.ID),
				"action":   "login_compare_failed",
			}).Errorf("login failed: stored hash unusable: %v", err)
		} else {
			s.log.WithFields(ctx, logger.Fields{
				"username": input.Username,
				"action":   "login_invalid_password",
			}).Warn("login failed: invalid password")
		}
		recordLogin("rejected")
		return AuthResult{}, ErrInvalidCredentials
	}

	result, err := s.issue(account)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"username": input.Username,
			"user_id":  string(account.ID),
			"action":   "login_token_issue_failed",
		}).Errorf("login failed: token issue error: %v", err)
		recordLogin("error")
		return AuthResult{}, err
	}

	s.log.WithFields(ctx, logger.Fields{
		"username": account.Username,
		"user_id":  string(account.ID),
		"action":   "login_success",
	}).Info("login success")
	recordLogin("success")

	return result, nil
}

// CurrentAccount resolves the account behind an authenticated identity.
// A token for an account that is gone or deactivated no longer
// authenticates anyone.
func (s *AuthService) CurrentAccount(ctx context.Context, id string) (domain.Profile, error) {
	account, err := s.store.FindByID(ctx, domain.ID(id))
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			s.log.WithFields(ctx, logger.Fields{
				"user_id": id,
				"action":  "current_account_not_found",
			}).Warn("current account not found")
			return domain.Profile{}, commonerrors.ErrUnauthenticatedInvalid.WithCause(err)
		}
		s.log.WithFields(ctx, logger.Fields{
			"user_id": id,
			"action":  "current_account_fetch_failed",
		}).Errorf("current account fetch failed: %v", err)
		return domain.Profile{}, storageFailure(err)
	}

	if !account.IsActive {
		s.log.WithFields(ctx, logger.Fields{
			"user_id": id,
			"action":  "current_account_inactive",
		}).Warn("current account inactive")
		return domain.Profile{}, commonerrors.ErrUnauthenticatedInvalid
	}

	return account.Profile(), nil
}

func (s *AuthService) issue(account domain.Account) (AuthResult, error) {
	raw, claims, err := s.tokens.Issue(string(account.ID))
	if err != nil {
		return AuthResult{}, newInternalError("TOKEN_ISSUE_FAILED", "failed to issue token", err)
	}
	return AuthResult{Token: raw, ExpiresAt: claims.ExpiresAt}, nil
}

// burnCompare runs a comparison whose result is discarded.
func (s *AuthService) burnCompare(ctx context.Context, password string) {
	_ = s.hasher.Compare(ctx, s.dummyHash, password)
}

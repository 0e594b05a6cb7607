package jwtverify

import (
	"errors"
	"strings"
	"time"

	"github.com/AlibekovAA/authcore/internal/auth/token"
	commonerrors "github.com/AlibekovAA/authcore/internal/common/errors"
)

const bearerScheme = "bearer"

type TokenValidator interface {
	Validate(raw string) (token.Claims, error)
}

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	AccountID string
	TokenID   string
	ExpiresAt time.Time
}

type Authenticator struct {
	validator TokenValidator
}

func NewAuthenticator(v TokenValidator) *Authenticator {
	return &Authenticator{validator: v}
}

// Authenticate turns an Authorization header value into an identity. It
// never consults account storage.
func (a *Authenticator) Authenticate(header string) (Identity, error) {
	raw, ok := bearerToken(header)
	if !ok {
		return Identity{}, commonerrors.ErrUnauthenticatedMissing
	}

	claims, err := a.validator.Validate(raw)
	if err != nil {
		if errors.Is(err, token.ErrTokenExpired) {
			return Identity{}, commonerrors.ErrUnauthenticatedExpired.WithCause(err)
		}
		return Identity{}, commonerrors.ErrUnauthenticatedInvalid.WithCause(err)
	}

	return Identity{
		AccountID: claims.Subject,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

func bearerToken(header string) (string, bool) {
	scheme, raw, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	return raw, true
}

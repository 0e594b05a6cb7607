package token

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/AlibekovAA/authcore/internal/common/clock"
	"github.com/AlibekovAA/authcore/internal/common/constants"
	commoncrypto "github.com/AlibekovAA/authcore/internal/common/crypto"
	commonerrors "github.com/AlibekovAA/authcore/internal/common/errors"
	"github.com/AlibekovAA/authcore/internal/observability/metrics"
)

var strictBase64 = base64.RawURLEncoding.Strict()

type Config struct {
	Secret   []byte
	Lifetime time.Duration
	Issuer   string
}

// Claims is what a valid token asserts about its bearer.
type Claims struct {
	Subject   string
	ID        string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Service issues and verifies HS256 access tokens. It holds no per-token
// state and is safe for concurrent use.
type Service struct {
	secret   []byte
	lifetime time.Duration
	issuer   string
	ids      commoncrypto.IDGenerator
	clock    clock.Clock
	parser   *jwt.Parser
}

func NewService(cfg Config, ids commoncrypto.IDGenerator, clk clock.Clock) (*Service, error) {
	if len(cfg.Secret) < constants.JWTSecretMinLength {
		return nil, commonerrors.ErrInvalidJWTSecret
	}
	if ids == nil {
		ids = commoncrypto.NewUUIDGenerator()
	}
	if clk == nil {
		clk = clock.NewRealClock()
	}

	lifetime := cfg.Lifetime
	if lifetime <= 0 {
		lifetime = constants.DefaultTokenLifetime
	}
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = constants.DefaultTokenIssuer
	}

	s := &Service{
		secret:   append([]byte(nil), cfg.Secret...),
		lifetime: lifetime,
		issuer:   issuer,
		ids:      ids,
		clock:    clk,
	}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(clk.Now),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
	)
	return s, nil
}

func (s *Service) Lifetime() time.Duration {
	return s.lifetime
}

func (s *Service) Issue(subject string) (string, Claims, error) {
	if subject == "" {
		return "", Claims{}, errors.New("token subject is empty")
	}

	jti, err := s.ids.NewID()
	if err != nil {
		return "", Claims{}, fmt.Errorf("failed to generate token id: %w", err)
	}

	now := s.clock.Now()
	registered := jwt.RegisteredClaims{
		Subject:   subject,
		ID:        jti,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, registered).SignedString(s.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("failed to sign token: %w", err)
	}

	metrics.AccessTokensIssued.Inc()
	return signed, claimsFrom(registered), nil
}

func (s *Service) Validate(raw string) (Claims, error) {
	metrics.JWTValidationsTotal.Inc()

	claims, err := s.validate(raw)
	if err != nil {
		metrics.JWTValidationsFailed.WithLabelValues(failureReason(err)).Inc()
		return Claims{}, err
	}
	return claims, nil
}

func (s *Service) validate(raw string) (Claims, error) {
	if err := checkStructure(raw); err != nil {
		return Claims{}, err
	}

	var registered jwt.RegisteredClaims
	_, err := s.parser.ParseWithClaims(raw, &registered, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return Claims{}, ErrTokenInvalidSignature.WithCause(err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, ErrTokenExpired.WithCause(err)
	default:
		return Claims{}, ErrTokenMalformed.WithCause(err)
	}

	if registered.Subject == "" {
		return Claims{}, ErrTokenMalformed.WithCause(errors.New("token has no subject"))
	}
	return claimsFrom(registered), nil
}

// checkStructure rejects anything that is not an HS256 header and a
// payload in canonical base64url before any signature work is done. The
// signature segment is everything after the second dot; any segment that
// is not exactly one canonical HMAC-SHA256 value is a bad signature.
func checkStructure(raw string) error {
	parts := strings.SplitN(raw, ".", 3)
	if len(parts) != 3 {
		return ErrTokenMalformed.WithCause(fmt.Errorf("token has %d segments", len(parts)))
	}

	var decoded [2][]byte
	for i, part := range parts[:2] {
		if part == "" {
			return ErrTokenMalformed.WithCause(errors.New("token has an empty segment"))
		}
		b, err := strictBase64.DecodeString(part)
		if err != nil {
			return ErrTokenMalformed.WithCause(fmt.Errorf("token segment is not base64url: %w", err))
		}
		decoded[i] = b
	}

	var header struct {
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal(decoded[0], &header); err != nil {
		return ErrTokenMalformed.WithCause(fmt.Errorf("token header is not JSON: %w", err))
	}
	if header.Alg != jwt.SigningMethodHS256.Alg() {
		return ErrTokenMalformed.WithCause(fmt.Errorf("unexpected signing algorithm %q", header.Alg))
	}

	sig, err := strictBase64.DecodeString(parts[2])
	if err != nil {
		return ErrTokenInvalidSignature.WithCause(fmt.Errorf("signature is not canonical base64url: %w", err))
	}
	if len(sig) != sha256.Size {
		return ErrTokenInvalidSignature.WithCause(fmt.Errorf("signature has %d bytes", len(sig)))
	}
	return nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenInvalidSignature):
		return "signature"
	default:
		return "malformed"
	}
}

func claimsFrom(rc jwt.RegisteredClaims) Claims {
	c := Claims{
		Subject: rc.Subject,
		ID:      rc.ID,
		Issuer:  rc.Issuer,
	}
	if rc.IssuedAt != nil {
		c.IssuedAt = rc.IssuedAt.Time.UTC()
	}
	if rc.ExpiresAt != nil {
		c.ExpiresAt = rc.ExpiresAt.Time.UTC()
	}
	return c
}

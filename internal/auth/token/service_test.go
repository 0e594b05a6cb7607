package token

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/AlibekovAA/authcore/internal/common/clock"
	commonerrors "github.com/AlibekovAA/authcore/internal/common/errors"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type sequenceIDGenerator struct {
	n int
}

func (g *sequenceIDGenerator) NewID() (string, error) {
	g.n++
	return fmt.Sprintf("jti-%d", g.n), nil
}

type failingIDGenerator struct{}

func (failingIDGenerator) NewID() (string, error) {
	return "", errors.New("entropy exhausted")
}

func newTestService(t *testing.T, clk clock.Clock) *Service {
	t.Helper()
	s, err := NewService(Config{Secret: []byte(testSecret), Lifetime: time.Hour, Issuer: "authcore"}, &sequenceIDGenerator{}, clk)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return s
}

func newTestClock() *clock.MockClock {
	return clock.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
}

func TestNewService_ShortSecret(t *testing.T) {
	_, err := NewService(Config{Secret: []byte("short")}, nil, nil)
	if !errors.Is(err, commonerrors.ErrInvalidJWTSecret) {
		t.Fatalf("expected ErrInvalidJWTSecret, got %v", err)
	}
}

func TestNewService_Defaults(t *testing.T) {
	s, err := NewService(Config{Secret: []byte(testSecret)}, nil, newTestClock())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if s.Lifetime() != 24*time.Hour {
		t.Errorf("expected default lifetime 24h, got %v", s.Lifetime())
	}

	_, claims, err := s.Issue("acc-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if claims.Issuer != "authcore" {
		t.Errorf("expected default issuer, got %q", claims.Issuer)
	}
}

func TestNewService_CopiesSecret(t *testing.T) {
	secret := []byte(testSecret)
	s, err := NewService(Config{Secret: secret}, &sequenceIDGenerator{}, newTestClock())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	raw, _, err := s.Issue("acc-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	secret[0] ^= 0xff

	if _, err := s.Validate(raw); err != nil {
		t.Fatalf("mutating the caller's slice must not affect the service: %v", err)
	}
}

func TestIssueAndValidate(t *testing.T) {
	clk := newTestClock()
	s := newTestService(t, clk)

	raw, issued, err := s.Issue("acc-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if strings.Count(raw, ".") != 2 {
		t.Fatalf("expected three segments, got %q", raw)
	}
	if !issued.ExpiresAt.Equal(clk.Now().Add(time.Hour)) {
		t.Errorf("expected expiry %v, got %v", clk.Now().Add(time.Hour), issued.ExpiresAt)
	}

	claims, err := s.Validate(raw)
	if err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	if claims.Subject != "acc-1" || claims.ID != issued.ID || claims.Issuer != "authcore" {
		t.Errorf("expected %+v, got %+v", issued, claims)
	}
	if !claims.IssuedAt.Equal(issued.IssuedAt) || !claims.ExpiresAt.Equal(issued.ExpiresAt) {
		t.Errorf("expected times %v/%v, got %v/%v", issued.IssuedAt, issued.ExpiresAt, claims.IssuedAt, claims.ExpiresAt)
	}
}

func TestIssue_DistinctTokens(t *testing.T) {
	s := newTestService(t, newTestClock())

	first, _, err := s.Issue("acc-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, _, err := s.Issue("acc-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if first == second {
		t.Fatal("expected tokens issued in the same second to differ")
	}
}

func TestIssue_Errors(t *testing.T) {
	s := newTestService(t, newTestClock())
	if _, _, err := s.Issue(""); err == nil {
		t.Error("expected error for empty subject")
	}

	s, err := NewService(Config{Secret: []byte(testSecret)}, failingIDGenerator{}, newTestClock())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, _, err := s.Issue("acc-1"); err == nil {
		t.Error("expected error when id generation fails")
	}
}

func TestValidate_Expired(t *testing.T) {
	clk := newTestClock()
	s := newTestService(t, clk)

	raw, _, err := s.Issue("acc-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	clk.Advance(59 * time.Minute)
	if _, err := s.Validate(raw); err != nil {
		t.Fatalf("expected token to be valid before expiry, got %v", err)
	}

	clk.Advance(2 * time.Minute)
	if _, err := s.Validate(raw); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestValidate_TamperedSignature(t *testing.T) {
	s := newTestService(t, newTestClock())
	raw, _, err := s.Issue("acc-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	cut := strings.LastIndex(raw, ".") + 1
	for i := cut; i < len(raw); i++ {
		for bit := 0; bit < 8; bit++ {
			tampered := []byte(raw)
			tampered[i] ^= 1 << bit

			if _, err := s.Validate(string(tampered)); !errors.Is(err, ErrTokenInvalidSignature) {
				t.Fatalf("signature char %d bit %d: expected ErrTokenInvalidSignature, got %v", i-cut, bit, err)
			}
		}
	}
}

func TestValidate_NonCanonicalSignatureEncoding(t *testing.T) {
	s := newTestService(t, newTestClock())
	alphabet := "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

	// 32 bytes encode to 43 characters; the last one carries 2 data bits
	// and 4 bits that must be zero.
	raw, _, err := s.Issue("acc-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	last := strings.IndexByte(alphabet, raw[len(raw)-1])
	for low := 1; low < 16; low++ {
		variant := raw[:len(raw)-1] + string(alphabet[(last&^15)|low])
		if _, err := s.Validate(variant); !errors.Is(err, ErrTokenInvalidSignature) {
			t.Fatalf("low bits %d: expected ErrTokenInvalidSignature, got %v", low, err)
		}
	}
}

func TestValidate_SignatureWrongLength(t *testing.T) {
	s := newTestService(t, newTestClock())
	raw, _, err := s.Issue("acc-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	cut := strings.LastIndex(raw, ".") + 1
	for name, sig := range map[string]string{
		"empty":     "",
		"truncated": raw[cut : len(raw)-4],
		"extended":  raw[cut:] + "AAAA",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Validate(raw[:cut] + sig); !errors.Is(err, ErrTokenInvalidSignature) {
				t.Fatalf("expected ErrTokenInvalidSignature, got %v", err)
			}
		})
	}
}

func TestValidate_TamperedPayload(t *testing.T) {
	s := newTestService(t, newTestClock())
	raw, _, err := s.Issue("acc-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	parts := strings.Split(raw, ".")
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"acc-2","exp":4102444800,"iss":"authcore"}`))
	if _, err := s.Validate(parts[0] + "." + payload + "." + parts[2]); !errors.Is(err, ErrTokenInvalidSignature) {
		t.Fatalf("expected ErrTokenInvalidSignature, got %v", err)
	}
}

func TestValidate_OtherSecret(t *testing.T) {
	clk := newTestClock()
	other, err := NewService(Config{Secret: []byte("ffffffffffffffffffffffffffffffff")}, &sequenceIDGenerator{}, clk)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	raw, _, err := other.Issue("acc-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if _, err := newTestService(t, clk).Validate(raw); !errors.Is(err, ErrTokenInvalidSignature) {
		t.Fatalf("expected ErrTokenInvalidSignature, got %v", err)
	}
}

func TestValidate_Malformed(t *testing.T) {
	s := newTestService(t, newTestClock())
	noneHeader := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"acc-1","exp":4102444800}`))

	cases := map[string]string{
		"empty":           "",
		"one segment":     "abc",
		"two segments":    "abc.def",
		"four segments":   "a.b.c.d",
		"empty segment":   "abc..def",
		"not base64":      "a*b.c$d.e!f",
		"header not json": base64.RawURLEncoding.EncodeToString([]byte("nope")) + "." + payload + ".sig",
		"alg none":        noneHeader + "." + payload + ".c2ln",
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Validate(raw); !errors.Is(err, ErrTokenMalformed) {
				t.Fatalf("expected ErrTokenMalformed, got %v", err)
			}
		})
	}
}

func signed(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	return raw
}

func TestValidate_MissingClaims(t *testing.T) {
	clk := newTestClock()
	s := newTestService(t, clk)
	exp := jwt.NewNumericDate(clk.Now().Add(time.Hour))

	cases := map[string]jwt.RegisteredClaims{
		"missing sub":  {Issuer: "authcore", ExpiresAt: exp},
		"missing exp":  {Issuer: "authcore", Subject: "acc-1"},
		"wrong issuer": {Issuer: "someone-else", Subject: "acc-1", ExpiresAt: exp},
	}

	for name, claims := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Validate(signed(t, claims)); !errors.Is(err, ErrTokenMalformed) {
				t.Fatalf("expected ErrTokenMalformed, got %v", err)
			}
		})
	}
}

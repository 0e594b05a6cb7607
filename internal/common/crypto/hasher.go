package crypto

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/AlibekovAA/authcore/internal/common/constants"
)

var (
	ErrEmptyPassword             = errors.New("password cannot be empty")
	ErrMismatchedHashAndPassword = errors.New("hashed password does not match the given password")
	ErrMalformedHash             = errors.New("malformed password hash")
)

// PasswordHasher turns passwords into self-describing encoded hashes and
// checks candidates against them. Compare returns nil only on a match.
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Compare(ctx context.Context, encodedHash, password string) error
}

type Argon2Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      constants.DefaultHashMemoryKiB,
		Time:        constants.DefaultHashTime,
		Parallelism: constants.DefaultHashParallelism,
		SaltLength:  constants.HashSaltLength,
		KeyLength:   constants.HashKeyLength,
	}
}

func (p Argon2Params) Validate() error {
	switch {
	case p.Time < 1 || p.Time > constants.MaxHashTime:
		return fmt.Errorf("time must be in 1..%d, got %d", constants.MaxHashTime, p.Time)
	case p.Memory < 8*uint32(p.Parallelism) || p.Memory > constants.MaxHashMemoryKiB:
		return fmt.Errorf("memory must be in %d..%d KiB, got %d", 8*uint32(p.Parallelism), constants.MaxHashMemoryKiB, p.Memory)
	case p.Parallelism < 1:
		return errors.New("parallelism must be at least 1")
	case p.SaltLength < 8:
		return fmt.Errorf("salt length must be at least 8, got %d", p.SaltLength)
	case p.KeyLength < constants.MinHashKeyLength || p.KeyLength > constants.MaxHashKeyLength:
		return fmt.Errorf("key length must be in %d..%d, got %d", constants.MinHashKeyLength, constants.MaxHashKeyLength, p.KeyLength)
	}
	return nil
}

type Argon2idHasher struct {
	params Argon2Params
}

func NewArgon2idHasher(params Argon2Params) (*Argon2idHasher, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid argon2 params: %w", err)
	}
	return &Argon2idHasher{params: params}, nil
}

func (h *Argon2idHasher) Params() Argon2Params {
	return h.params
}

// Hash produces $argon2id$v=19$m=<m>,t=<t>,p=<p>$<salt>$<digest>.
func (h *Argon2idHasher) Hash(ctx context.Context, password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	pw := []byte(password)
	digest := argon2.IDKey(pw, salt, h.params.Time, h.params.Memory, h.params.Parallelism, h.params.KeyLength)
	clear(pw)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(digest),
	), nil
}

// Compare recomputes the digest with the parameters stored in encodedHash.
// Unknown or broken encodings are reported as ErrMalformedHash and never
// count as a match.
func (h *Argon2idHasher) Compare(ctx context.Context, encodedHash, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params, salt, expected, err := decodeHash(encodedHash)
	if err != nil {
		return err
	}

	pw := []byte(password)
	computed := argon2.IDKey(pw, salt, params.Time, params.Memory, params.Parallelism, params.KeyLength)
	clear(pw)

	if subtle.ConstantTimeCompare(computed, expected) != 1 {
		return ErrMismatchedHashAndPassword
	}
	return nil
}

func decodeHash(encoded string) (Argon2Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return Argon2Params{}, nil, nil, fmt.Errorf("%w: expected 6 segments", ErrMalformedHash)
	}
	if parts[1] != "argon2id" {
		return Argon2Params{}, nil, nil, fmt.Errorf("%w: unsupported algorithm %q", ErrMalformedHash, parts[1])
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return Argon2Params{}, nil, nil, fmt.Errorf("%w: unsupported version %q", ErrMalformedHash, parts[2])
	}

	params, err := parseParams(parts[3])
	if err != nil {
		return Argon2Params{}, nil, nil, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return Argon2Params{}, nil, nil, fmt.Errorf("%w: salt: %v", ErrMalformedHash, err)
	}
	digest, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return Argon2Params{}, nil, nil, fmt.Errorf("%w: digest: %v", ErrMalformedHash, err)
	}

	params.SaltLength = uint32(len(salt))
	params.KeyLength = uint32(len(digest))
	if err := params.Validate(); err != nil {
		return Argon2Params{}, nil, nil, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}

	return params, salt, digest, nil
}

func parseParams(s string) (Argon2Params, error) {
	fields := strings.Split(s, ",")
	if len(fields) != 3 {
		return Argon2Params{}, fmt.Errorf("expected m,t,p parameters, got %q", s)
	}

	var values [3]uint64
	for i, key := range []string{"m=", "t=", "p="} {
		raw, ok := strings.CutPrefix(fields[i], key)
		if !ok {
			return Argon2Params{}, fmt.Errorf("expected %s parameter, got %q", key, fields[i])
		}
		bits := 32
		if key == "p=" {
			bits = 8
		}
		v, err := strconv.ParseUint(raw, 10, bits)
		if err != nil {
			return Argon2Params{}, fmt.Errorf("parameter %s: %v", key, err)
		}
		values[i] = v
	}

	return Argon2Params{
		Memory:      uint32(values[0]),
		Time:        uint32(values[1]),
		Parallelism: uint8(values[2]),
	}, nil
}

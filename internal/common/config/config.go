package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AlibekovAA/authcore/internal/common/constants"
	commonerrors "github.com/AlibekovAA/authcore/internal/common/errors"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

type AuthConfig struct {
	HTTPPort        string        `yaml:"http_port"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	MaxRequestBytes int64         `yaml:"max_request_bytes"`
	TrustedProxies  []string      `yaml:"trusted_proxies"`
	LogDir          string        `yaml:"log_dir"`
	LogLevel        string        `yaml:"log_level"`

	JWTSecret     string        `yaml:"jwt_secret"`
	TokenLifetime time.Duration `yaml:"token_lifetime"`
	TokenIssuer   string        `yaml:"token_issuer"`

	HashMemoryKiB   uint32 `yaml:"hash_memory_kib"`
	HashTime        uint32 `yaml:"hash_time"`
	HashParallelism uint8  `yaml:"hash_parallelism"`
	HashWorkers     int64  `yaml:"hash_workers"`

	StoreDriver string `yaml:"store_driver"`
	DatabaseURL string `yaml:"database_url"`

	CircuitBreakerThreshold int32         `yaml:"circuit_breaker_threshold"`
	CircuitBreakerTimeout   time.Duration `yaml:"circuit_breaker_timeout"`
	CircuitBreakerReset     time.Duration `yaml:"circuit_breaker_reset"`
}

func Defaults() AuthConfig {
	return AuthConfig{
		HTTPPort:                constants.DefaultAuthHTTPPort,
		RequestTimeout:          constants.DefaultAuthRequestTimeout,
		MaxRequestBytes:         constants.DefaultMaxRequestSize,
		LogLevel:                "info",
		TokenLifetime:           constants.DefaultTokenLifetime,
		TokenIssuer:             constants.DefaultTokenIssuer,
		HashMemoryKiB:           constants.DefaultHashMemoryKiB,
		HashTime:                constants.DefaultHashTime,
		HashParallelism:         constants.DefaultHashParallelism,
		StoreDriver:             StoreMemory,
		CircuitBreakerThreshold: constants.DefaultCircuitBreakerThreshold,
		CircuitBreakerTimeout:   constants.DefaultCircuitBreakerTimeout,
		CircuitBreakerReset:     constants.DefaultCircuitBreakerReset,
	}
}

// LoadAuthConfig reads the optional YAML file at path, then applies
// environment overrides and validates the result.
func LoadAuthConfig(path string) (AuthConfig, error) {
	cfg := Defaults()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return AuthConfig{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return AuthConfig{}, err
	}

	if cfg.JWTSecret == "" {
		return AuthConfig{}, fmt.Errorf("%w: %s", commonerrors.ErrMissingRequiredEnv, "JWT_SECRET")
	}
	if err := cfg.Validate(); err != nil {
		return AuthConfig{}, err
	}

	return cfg, nil
}

func loadFile(path string, cfg *AuthConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return commonerrors.ErrInvalidConfig.WithCause(fmt.Errorf("parse %s: %w", path, err))
	}
	return nil
}

func applyEnv(cfg *AuthConfig) error {
	var errs []error

	cfg.HTTPPort = getEnv("AUTH_HTTP_PORT", cfg.HTTPPort)
	cfg.LogDir = getEnv("LOG_DIR", cfg.LogDir)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.TokenIssuer = getEnv("TOKEN_ISSUER", cfg.TokenIssuer)
	cfg.StoreDriver = getEnv("STORE_DRIVER", cfg.StoreDriver)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.TrustedProxies = getListEnv("TRUSTED_PROXIES", cfg.TrustedProxies)

	var err error
	if cfg.RequestTimeout, err = getDurationEnv("AUTH_REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		errs = append(errs, err)
	}
	if cfg.TokenLifetime, err = getDurationEnv("TOKEN_LIFETIME", cfg.TokenLifetime); err != nil {
		errs = append(errs, err)
	}
	if cfg.CircuitBreakerTimeout, err = getDurationEnv("CIRCUIT_BREAKER_TIMEOUT", cfg.CircuitBreakerTimeout); err != nil {
		errs = append(errs, err)
	}
	if cfg.CircuitBreakerReset, err = getDurationEnv("CIRCUIT_BREAKER_RESET", cfg.CircuitBreakerReset); err != nil {
		errs = append(errs, err)
	}

	var u uint64
	if u, err = getUintEnv("HASH_MEMORY_KIB", uint64(cfg.HashMemoryKiB), 32); err != nil {
		errs = append(errs, err)
	}
	cfg.HashMemoryKiB = uint32(u)
	if u, err = getUintEnv("HASH_TIME", uint64(cfg.HashTime), 32); err != nil {
		errs = append(errs, err)
	}
	cfg.HashTime = uint32(u)
	if u, err = getUintEnv("HASH_PARALLELISM", uint64(cfg.HashParallelism), 8); err != nil {
		errs = append(errs, err)
	}
	cfg.HashParallelism = uint8(u)

	var i int
	if i, err = getIntEnv("HASH_WORKERS", int(cfg.HashWorkers)); err != nil {
		errs = append(errs, err)
	}
	cfg.HashWorkers = int64(i)
	if i, err = getIntEnv("CIRCUIT_BREAKER_THRESHOLD", int(cfg.CircuitBreakerThreshold)); err != nil {
		errs = append(errs, err)
	}
	cfg.CircuitBreakerThreshold = int32(i)
	if i, err = getIntEnv("MAX_REQUEST_BYTES", int(cfg.MaxRequestBytes)); err != nil {
		errs = append(errs, err)
	}
	cfg.MaxRequestBytes = int64(i)

	if len(errs) > 0 {
		return commonerrors.ErrInvalidConfig.WithCause(errors.Join(errs...))
	}
	return nil
}

func (c AuthConfig) Validate() error {
	if err := validateJWTSecret(c.JWTSecret); err != nil {
		return err
	}
	if c.TokenLifetime <= 0 {
		return commonerrors.ErrInvalidConfig.WithCause(fmt.Errorf("token lifetime must be positive, got %s", c.TokenLifetime))
	}
	switch c.StoreDriver {
	case StoreMemory:
	case StorePostgres, StoreSQLite:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: DATABASE_URL is required for store driver %s", commonerrors.ErrMissingRequiredEnv, c.StoreDriver)
		}
	default:
		return commonerrors.ErrInvalidConfig.WithCause(fmt.Errorf("unknown store driver %q", c.StoreDriver))
	}
	if c.RequestTimeout <= 0 {
		return commonerrors.ErrInvalidConfig.WithCause(fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout))
	}
	for _, proxy := range c.TrustedProxies {
		if err := validateTrustedProxy(proxy); err != nil {
			return commonerrors.ErrInvalidConfig.WithCause(err)
		}
	}
	if c.MaxRequestBytes <= 0 {
		return commonerrors.ErrInvalidConfig.WithCause(fmt.Errorf("max request bytes must be positive, got %d", c.MaxRequestBytes))
	}
	return nil
}

func validateJWTSecret(secret string) error {
	if len(secret) < constants.JWTSecretMinLength {
		return fmt.Errorf("%w: got %d bytes", commonerrors.ErrInvalidJWTSecret, len(secret))
	}
	return nil
}

// validateTrustedProxy accepts an address or a CIDR range.
func validateTrustedProxy(entry string) error {
	if strings.Contains(entry, "/") {
		if _, err := netip.ParsePrefix(entry); err != nil {
			return fmt.Errorf("trusted proxy %q: %w", entry, err)
		}
		return nil
	}
	if _, err := netip.ParseAddr(entry); err != nil {
		return fmt.Errorf("trusted proxy %q: %w", entry, err)
	}
	return nil
}

func getListEnv(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var items []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getIntEnv(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return i, nil
}

func getUintEnv(key string, fallback uint64, bits int) (uint64, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	u, err := strconv.ParseUint(v, 10, bits)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return u, nil
}

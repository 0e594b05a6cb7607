package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/sethvargo/go-retry"

	"github.com/AlibekovAA/authcore/internal/common/constants"
	"github.com/AlibekovAA/authcore/internal/common/logger"
)

type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

var DefaultConnectRetry = RetryConfig{
	MaxAttempts:  constants.DBPoolMaxAttempts,
	InitialDelay: constants.DBPoolRetryDelay,
	MaxDelay:     8 * time.Second,
}

// isRetryableConnectError reports whether a failed connection attempt is
// worth repeating. Bad credentials and caller cancellation are final.
func isRetryableConnectError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "28000", "28P01", "3D000":
			return false
		}
	}
	return true
}

// ConnectWithRetry runs connect until it succeeds, fails permanently or the
// attempts run out. It is meant for startup only: queries and writes are
// never retried.
func ConnectWithRetry(ctx context.Context, log *logger.Logger, cfg RetryConfig, connect func(context.Context) error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	backoff := retry.NewExponential(cfg.InitialDelay)
	backoff = retry.WithCappedDuration(cfg.MaxDelay, backoff)
	backoff = retry.WithMaxRetries(uint64(cfg.MaxAttempts-1), backoff)

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := connect(ctx)
		if err == nil {
			if attempt > 1 {
				log.Infof("database connection established after %d attempts", attempt)
			}
			return nil
		}
		if !isRetryableConnectError(err) {
			return err
		}
		log.Warnf("failed to connect to database (attempt %d/%d): %v", attempt, cfg.MaxAttempts, err)
		return retry.RetryableError(err)
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database after %d attempts: %w", attempt, err)
	}
	return nil
}

package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	pgx "github.com/jackc/pgx/v4"

	"github.com/AlibekovAA/authcore/internal/observability/metrics"
)

// HandleQueryError records the query duration and, on failure, the error
// counter. No-row results become notFoundErr and are not counted as errors.
func HandleQueryError(err error, notFoundErr error, store, operation string, startTime time.Time) error {
	metrics.StoreQueryDurationSeconds.WithLabelValues(store, operation).Observe(time.Since(startTime).Seconds())

	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return notFoundErr
	}
	metrics.StoreQueryErrors.WithLabelValues(store, operation, fmt.Sprintf("%T", err)).Inc()
	return fmt.Errorf("failed to %s: %w", operation, err)
}

// RecordQueryError counts a failure that the caller maps itself.
func RecordQueryError(err error, store, operation string, startTime time.Time) {
	metrics.StoreQueryDurationSeconds.WithLabelValues(store, operation).Observe(time.Since(startTime).Seconds())
	if err != nil {
		metrics.StoreQueryErrors.WithLabelValues(store, operation, fmt.Sprintf("%T", err)).Inc()
	}
}

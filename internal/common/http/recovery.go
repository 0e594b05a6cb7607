package http

import (
	"net/http"
	"runtime/debug"

	"github.com/AlibekovAA/authcore/internal/common/httpmetrics"
	"github.com/AlibekovAA/authcore/internal/common/logger"
	"github.com/AlibekovAA/authcore/internal/observability/metrics"
)

// RecoveryMiddleware turns a handler panic into a 500 envelope. The panic
// value and stack only go to the log.
func RecoveryMiddleware(log *logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				path := httpmetrics.NormalizePath(r.URL.Path)
				metrics.PanicsRecovered.WithLabelValues(path).Inc()
				log.WithFields(r.Context(), logger.Fields{
					"path":   path,
					"method": r.Method,
					"action": "panic_recovered",
				}).Criticalf("panic recovered: %v\n%s", rec, debug.Stack())

				WriteErrorEnvelope(w, http.StatusInternalServerError, CodeInternal, "internal server error", nil, getTraceIDFromContext(r.Context()))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

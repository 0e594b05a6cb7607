package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/AlibekovAA/authcore/internal/common/constants"
	commonerrors "github.com/AlibekovAA/authcore/internal/common/errors"
	"github.com/AlibekovAA/authcore/internal/common/httpmetrics"
	"github.com/AlibekovAA/authcore/internal/common/logger"
	"github.com/AlibekovAA/authcore/internal/observability/metrics"
)

type ErrorHandler struct {
	log *logger.Logger
}

func NewErrorHandler(log *logger.Logger) *ErrorHandler {
	return &ErrorHandler{log: log}
}

func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	ctx := r.Context()
	traceID := getTraceIDFromContext(ctx)

	if isUnauthenticated(err) {
		h.handleUnauthenticated(w, r, err, traceID)
		return
	}

	if domainErr, ok := commonerrors.AsDomainError(err); ok {
		h.handleDomainError(w, r, domainErr, traceID)
		return
	}

	h.log.WithFields(ctx, logger.Fields{
		"error":  err.Error(),
		"action": "unhandled_error",
	}).Errorf("unhandled error: %v", err)

	metrics.HTTPErrorsTotal.WithLabelValues(
		strconv.Itoa(http.StatusInternalServerError),
		httpmetrics.NormalizePath(r.URL.Path),
		r.Method,
	).Inc()

	WriteErrorEnvelope(w, http.StatusInternalServerError, CodeInternal, "internal server error", nil, traceID)
}

func (h *ErrorHandler) handleDomainError(w http.ResponseWriter, r *http.Request, domainErr commonerrors.DomainError, traceID string) {
	ctx := r.Context()
	status := domainErr.HTTPStatus()

	logFields := logger.Fields{
		"error_code": domainErr.Code(),
		"category":   string(domainErr.Category()),
		"status":     status,
		"action":     "domain_error",
	}
	if status >= http.StatusInternalServerError {
		h.log.WithFields(ctx, logFields).Errorf("domain error: %s", domainErr.Error())
	} else if h.log.ShouldLog(logger.DEBUG) {
		h.log.WithFields(ctx, logFields).Debugf("domain error: %s", domainErr.Error())
	}

	metrics.DomainErrorsTotal.WithLabelValues(
		string(domainErr.Category()),
		domainErr.Code(),
		strconv.Itoa(status),
	).Inc()

	metrics.HTTPErrorsTotal.WithLabelValues(
		strconv.Itoa(status),
		httpmetrics.NormalizePath(r.URL.Path),
		r.Method,
	).Inc()

	WriteErrorEnvelope(w, status, domainErr.Code(), domainErr.Message(), domainErr.Details(), traceID)
}

// handleUnauthenticated answers every bearer failure identically. The
// specific reason only reaches the log.
func (h *ErrorHandler) handleUnauthenticated(w http.ResponseWriter, r *http.Request, err error, traceID string) {
	h.log.WithFields(r.Context(), logger.Fields{
		"path":   r.URL.Path,
		"action": "unauthenticated",
	}).Warnf("request not authenticated: %v", err)

	metrics.HTTPErrorsTotal.WithLabelValues(
		strconv.Itoa(http.StatusUnauthorized),
		httpmetrics.NormalizePath(r.URL.Path),
		r.Method,
	).Inc()

	WriteUnauthorized(w, traceID)
}

func WriteUnauthorized(w http.ResponseWriter, traceID string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	WriteErrorEnvelope(w, http.StatusUnauthorized, CodeUnauthorized, "unauthorized", nil, traceID)
}

func HandleError(w http.ResponseWriter, r *http.Request, err error, log *logger.Logger) {
	handler := NewErrorHandler(log)
	handler.HandleError(w, r, err)
}

func isUnauthenticated(err error) bool {
	return errors.Is(err, commonerrors.ErrUnauthenticatedMissing) ||
		errors.Is(err, commonerrors.ErrUnauthenticatedInvalid) ||
		errors.Is(err, commonerrors.ErrUnauthenticatedExpired)
}

func getTraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	traceID, _ := ctx.Value(constants.TraceIDKey).(string)
	return traceID
}

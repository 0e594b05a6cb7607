package http

import (
	"net/http"

	"github.com/AlibekovAA/authcore/internal/common/httpmetrics"
	"github.com/AlibekovAA/authcore/internal/common/logger"
)

type BaseHandlerOptions struct {
	MaxRequestBytes int64
	// CSP overrides the default API policy when set.
	CSP string
}

// BuildBaseHandler wraps handler with the middleware every endpoint shares.
// Security headers and the trace id are set before anything can fail, so
// even a recovered panic or an oversized body carries them.
func BuildBaseHandler(appName string, log *logger.Logger, handler http.Handler, opts BaseHandlerOptions) http.Handler {
	collector := httpmetrics.New(appName)
	recovery := RecoveryMiddleware(log)
	maxRequestSize := MaxRequestSizeMiddleware(opts.MaxRequestBytes)
	csp := ContentSecurityPolicyMiddleware(opts.CSP)

	return SecurityHeadersMiddleware(csp(TraceIDMiddleware(recovery(maxRequestSize(collector.Wrap(handler))))))
}

package http

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AlibekovAA/authcore/internal/account/domain"
	"github.com/AlibekovAA/authcore/internal/auth/service"
	"github.com/AlibekovAA/authcore/internal/common/config"
	commonerrors "github.com/AlibekovAA/authcore/internal/common/errors"
	commonhttp "github.com/AlibekovAA/authcore/internal/common/http"
	"github.com/AlibekovAA/authcore/internal/common/jwtverify"
	"github.com/AlibekovAA/authcore/internal/common/logger"
	"github.com/AlibekovAA/authcore/internal/common/mapper"
)

type AuthAPI interface {
	Register(ctx context.Context, input service.RegisterInput) (service.AuthResult, error)
	Login(ctx context.Context, input service.LoginInput) (service.AuthResult, error)
	CurrentAccount(ctx context.Context, id string) (domain.Profile, error)
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type HandlerDeps struct {
	Auth          AuthAPI
	Authenticator *jwtverify.Authenticator
	RateLimiter   *commonhttp.PathRateLimiter
	HealthChecks  map[string]commonhttp.HealthCheck
	Config        config.AuthConfig
	Log           *logger.Logger
}

type Handler struct {
	auth         AuthAPI
	errorHandler *commonhttp.ErrorHandler
	log          *logger.Logger
}

func NewHandler(deps HandlerDeps) http.Handler {
	h := &Handler{
		auth:         deps.Auth,
		errorHandler: commonhttp.NewErrorHandler(deps.Log),
		log:          deps.Log,
	}

	timeout := deps.Config.RequestTimeout
	if timeout <= 0 {
		timeout = config.Defaults().RequestTimeout
	}
	withTimeout := commonhttp.WithTimeout(timeout)

	limit := func(path string, next http.Handler) http.Handler {
		if deps.RateLimiter == nil {
			return next
		}
		return deps.RateLimiter.MiddlewareForPath(path)(next)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", commonhttp.HealthHandler(deps.Log, deps.HealthChecks))
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/api/auth/register", limit("/api/auth/register",
		commonhttp.RequireMethod(http.MethodPost)(withTimeout(h.register))))
	mux.Handle("/api/auth/login", limit("/api/auth/login",
		commonhttp.RequireMethod(http.MethodPost)(withTimeout(h.login))))
	mux.Handle("/api/auth/me", limit("/api/auth/me",
		jwtverify.Middleware(deps.Authenticator, deps.Log)(
			commonhttp.RequireMethod(http.MethodGet)(withTimeout(h.me)))))
	return mux
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req, "register") {
		return
	}

	result, err := h.auth.Register(r.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusCreated, tokenResponse{Token: result.Token, ExpiresAt: result.ExpiresAt})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req, "login") {
		return
	}

	result, err := h.auth.Login(r.Context(), service.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, tokenResponse{Token: result.Token, ExpiresAt: result.ExpiresAt})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	identity, ok := jwtverify.FromContext(r.Context())
	if !ok {
		h.errorHandler.HandleError(w, r, commonerrors.ErrUnauthenticatedMissing)
		return
	}

	profile, err := h.auth.CurrentAccount(r.Context(), identity.AccountID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, mapper.ProfileToDTO(profile))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any, action string) bool {
	err := commonhttp.DecodeJSON(r, v)
	if err == nil {
		return true
	}

	h.log.WithFields(r.Context(), logger.Fields{
		"action": action + "_invalid_json",
	}).Warnf("%s failed: invalid json: %v", action, err)

	if commonhttp.IsBodyTooLarge(err) {
		commonhttp.WriteErrorEnvelope(w, http.StatusRequestEntityTooLarge, commonhttp.CodeRequestTooLarge, "request body too large", nil, "")
		return false
	}
	commonhttp.WriteErrorEnvelope(w, http.StatusBadRequest, commonhttp.CodeInvalidJSON, "invalid json", nil, "")
	return false
}

package jwtverify

import (
	"context"
	"net/http"

	commonhttp "github.com/AlibekovAA/authcore/internal/common/http"
	"github.com/AlibekovAA/authcore/internal/common/logger"
)

type contextKey string

const identityKey contextKey = "auth_identity"

func Middleware(a *Authenticator, log *logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := a.Authenticate(r.Header.Get("Authorization"))
			if err != nil {
				commonhttp.HandleError(w, r, err, log)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

func FromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}

package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Mayuresh-22/NimbusWave/internal/service/identity"
)

type authContextKey string

const contextKeyUser authContextKey = "nimbuswave-auth-user"

type contextSetter interface {
	SetContext(context.Context)
}

// requireAuth resolves the bearer token to an identity before invoking the
// handler.
func (r *Router) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx, _, ok := r.ensureAuth(w, req)
		if !ok {
			return
		}
		if setter, ok := w.(contextSetter); ok {
			setter.SetContext(ctx)
		}
		next(w, req.WithContext(ctx))
	}
}

// ensureAuth validates the Authorization header and enriches the context
// with the authenticated identity.
func (r *Router) ensureAuth(w http.ResponseWriter, req *http.Request) (context.Context, *identity.Identity, bool) {
	token, err := bearerToken(req.Header.Get("Authorization"))
	if err != nil {
		r.logger.Warn("authorization header invalid", "error", err, "path", req.URL.Path)
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return req.Context(), nil, false
	}
	user, err := r.identity.GetUser(req.Context(), token)
	if err != nil {
		if errors.Is(err, identity.ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
		} else {
			r.logger.Error("identity lookup failed", "error", err, "path", req.URL.Path)
			writeError(w, http.StatusInternalServerError, "Internal Server Error, Error Code: AM_01")
		}
		return req.Context(), nil, false
	}
	ctx := context.WithValue(req.Context(), contextKeyUser, user)
	return ctx, user, true
}

// userFromContext extracts the authenticated identity from context.
func userFromContext(ctx context.Context) (*identity.Identity, bool) {
	user, ok := ctx.Value(contextKeyUser).(*identity.Identity)
	return user, ok && user != nil
}

func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header format")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("empty bearer token")
	}
	return token, nil
}

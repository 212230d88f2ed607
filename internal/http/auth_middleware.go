package httpx

import (
	"context"
	"errors"
	"net/http"

	jwtpkg "github.com/mkashifaslam/go-api-template/pkg/jwt"
)

type authContextKey string

const contextKeyAuth authContextKey = "profiles-auth-identity"

type contextSetter interface {
	SetContext(context.Context)
}

// requireAuth runs the session guard before next. Missing, malformed,
// expired and forged tokens all get the same 401 response.
func (r *Router) requireAuth(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		token, _ := r.cookies.Read(req)
		identity, err := r.auth.Authenticate(token)
		if err != nil {
			r.logger.Warn("session rejected", "error", err, "path", req.URL.Path)
			r.recordAuthFailure(route, authFailureReason(err))
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		ctx := context.WithValue(req.Context(), contextKeyAuth, identity)
		if setter, ok := w.(contextSetter); ok {
			setter.SetContext(ctx)
		}
		next(w, req.WithContext(ctx))
	}
}

// identityFromContext extracts the authenticated identity from context.
func identityFromContext(ctx context.Context) (jwtpkg.Identity, bool) {
	value := ctx.Value(contextKeyAuth)
	if value == nil {
		return jwtpkg.Identity{}, false
	}
	identity, ok := value.(jwtpkg.Identity)
	return identity, ok
}

func authFailureReason(err error) string {
	switch {
	case errors.Is(err, jwtpkg.ErrExpired):
		return "expired"
	case errors.Is(err, jwtpkg.ErrMalformedPayload):
		return "malformed_payload"
	case errors.Is(err, jwtpkg.ErrInvalidToken):
		return "invalid"
	default:
		return "missing"
	}
}

package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/traildig/traildig-server/internal/domain"
	domainerrors "github.com/traildig/traildig-server/internal/errors"
	"github.com/traildig/traildig-server/internal/service"
)

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

// userKey is the context key for the authenticated user.
const userKey ctxKey = "user"

const msgAuthRequired = "Authentication credentials were not provided."

// bearerSecurity marks an operation as requiring a Bearer token in the OpenAPI document.
var bearerSecurity = []map[string][]string{{"bearer": {}}}

// GetUserID returns the authenticated user ID from context.
// Returns 401 error if user is not authenticated.
func GetUserID(ctx context.Context) (string, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// currentUser returns the user loaded by authMiddleware.
func currentUser(ctx context.Context) (*domain.User, error) {
	user, ok := ctx.Value(userKey).(*domain.User)
	if !ok || user == nil {
		return nil, domainerrors.Unauthorized(msgAuthRequired)
	}
	return user, nil
}

// authMiddleware returns a middleware that validates Bearer tokens and stores the user in context.
// If no token is present or invalid, continues without user in context.
// Protected operations reject such requests through requireAuth.
func authMiddleware(auth *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, _, err := auth.VerifyAccessToken(r.Context(), token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
		})
	}
}

// requireAuth is an operation middleware rejecting anonymous requests with 401
// before the request body is read.
func (s *Server) requireAuth(ctx huma.Context, next func(huma.Context)) {
	if _, err := currentUser(ctx.Context()); err != nil {
		_ = huma.WriteErr(s.api, ctx, http.StatusUnauthorized, msgAuthRequired, err)
		return
	}
	next(ctx)
}

// RequireUser returns the authenticated user from context.
func (s *Server) RequireUser(ctx context.Context) (*domain.User, error) {
	return currentUser(ctx)
}

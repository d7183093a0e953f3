package middleware

import (
	"context"
	"mountains-server/handlers/auth"
	"net/http"

	"github.com/go-chi/render"
)

type contextKey string

// UserContextKey carries the authenticated username through the request context.
const UserContextKey = contextKey("user")

// RequireSession rejects requests without a valid session cookie. The error
// body is deliberately generic: it never says which part of validation failed.
func RequireSession(gate *auth.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := gate.CurrentUser(r)
			if !ok {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, map[string]string{"error": "Not authenticated"})
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

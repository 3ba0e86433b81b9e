// Package auth provides JWT authentication for the API: token issuance and
// verification, the Bearer-header middleware, and request-context helpers for
// reading the current user in handlers.
package auth

import (
	"context"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// contextKey is a private type for context keys defined in this package.
type contextKey int

const userContextKey contextKey = iota

// RequestUser is the authenticated principal attached to the request context
// by RequireAuth. It carries only what the access token proves; student
// branch/year are fetched from the database where needed.
type RequestUser struct {
	ID   primitive.ObjectID
	Role string
}

// IsStudent returns true if the request user has the student role.
func (u *RequestUser) IsStudent() bool {
	return u.Role == "student"
}

// CurrentUser returns the authenticated user from the request context.
// The second return value is false when the request is unauthenticated.
func CurrentUser(r *http.Request) (*RequestUser, bool) {
	u, ok := r.Context().Value(userContextKey).(*RequestUser)
	return u, ok
}

// WithUser returns a copy of the request with the given user in context.
// Exposed for handler tests; production requests go through RequireAuth.
func WithUser(r *http.Request, u *RequestUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), userContextKey, u))
}

// Middleware bundles the token manager and logger used by the route guards.
type Middleware struct {
	tokens *TokenManager
	logger *zap.Logger
}

// NewMiddleware creates the auth middleware set.
func NewMiddleware(tokens *TokenManager, logger *zap.Logger) *Middleware {
	return &Middleware{tokens: tokens, logger: logger}
}

// RequireAuth validates the Bearer access token and loads the user into the
// request context. Requests without a valid token get 401.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			unauthorized(w, "missing Authorization header")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			unauthorized(w, "invalid Authorization format (expected: Bearer <token>)")
			return
		}

		claims, err := m.tokens.VerifyAccess(parts[1])
		if err != nil {
			m.logger.Debug("access token rejected",
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
			unauthorized(w, "invalid or expired token")
			return
		}

		uid, err := primitive.ObjectIDFromHex(claims.Subject)
		if err != nil {
			unauthorized(w, "invalid token subject")
			return
		}

		next.ServeHTTP(w, WithUser(r, &RequestUser{ID: uid, Role: claims.Role}))
	})
}

// RequireRole returns middleware that rejects authenticated users whose role
// does not match. Mount inside RequireAuth.
func (m *Middleware) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)
			if !ok {
				unauthorized(w, "authentication required")
				return
			}
			if u.Role != role {
				m.logger.Debug("role check failed",
					zap.String("path", r.URL.Path),
					zap.String("have", u.Role),
					zap.String("want", role),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"status":403,"data":null,"message":"insufficient role"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"status":401,"data":null,"message":"` + msg + `"}`))
}

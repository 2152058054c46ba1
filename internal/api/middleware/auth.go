package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/orchestra/internal/api/respond"
	"github.com/hugh/orchestra/internal/auth"
)

type contextKey string

const (
	UserIDKey       contextKey = "user_id"
	EnterpriseIDKey contextKey = "enterprise_id"
	enterpriseKey   contextKey = "enterprise"
	principalKey    contextKey = "principal"
)

// Auth validates the bearer token. Tokens are also accepted from the "token"
// cookie and the X-Auth-Token header.
func Auth(jwtService auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFrom(r)
			if token == "" {
				respond.Message(w, http.StatusUnauthorized, "Unauthenticated.")
				return
			}

			claims, err := jwtService.ValidateToken(token)
			if err != nil {
				respond.Message(w, http.StatusUnauthorized, "Unauthenticated.")
				return
			}

			ctx := r.Context()
			ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, EnterpriseIDKey, claims.EnterpriseID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if cookie, err := r.Cookie("token"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return r.Header.Get("X-Auth-Token")
}

// Helper functions to extract values from context
func GetUserID(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(UserIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// GetTokenEnterpriseID is the tenant named in the token, not the one
// resolved from the Enterprise-Key header.
func GetTokenEnterpriseID(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(EnterpriseIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

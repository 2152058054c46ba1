package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/orchestra/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuth_TokenSources(t *testing.T) {
	jwtService := auth.NewJWTService("test-secret", 24*time.Hour)

	userID := uuid.New()
	enterpriseID := uuid.New()
	email := "test@example.com"

	token, err := jwtService.GenerateToken(userID, enterpriseID, email)
	require.NoError(t, err)

	tests := []struct {
		name  string
		apply func(*http.Request)
	}{
		{"authorization header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "token", Value: token}) }},
		{"x-auth-token header", func(r *http.Request) { r.Header.Set("X-Auth-Token", token) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Auth(jwtService)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, userID, GetUserID(r.Context()))
				assert.Equal(t, enterpriseID, GetTokenEnterpriseID(r.Context()))
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest("GET", "/api/v1/me", nil)
			tt.apply(req)

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestAuth_Rejections(t *testing.T) {
	jwtService := auth.NewJWTService("test-secret", 24*time.Hour)

	expired, err := auth.NewJWTService("test-secret", time.Nanosecond).GenerateToken(uuid.New(), uuid.New(), "a@example.com")
	require.NoError(t, err)
	foreign, err := auth.NewJWTService("secret-2", time.Hour).GenerateToken(uuid.New(), uuid.New(), "a@example.com")
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	tests := []struct {
		name   string
		header string
	}{
		{"no token", ""},
		{"invalid token", "Bearer invalid-token"},
		{"expired token", "Bearer " + expired},
		{"different secret", "Bearer " + foreign},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Auth(jwtService)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("Handler should not be called")
			}))

			req := httptest.NewRequest("GET", "/api/v1/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"message":"Unauthenticated."}`, rec.Body.String())
		})
	}
}

func TestContextGetters_Empty(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, uuid.Nil, GetUserID(ctx))
	assert.Equal(t, uuid.Nil, GetTokenEnterpriseID(ctx))
	assert.Nil(t, GetEnterprise(ctx))
	assert.Nil(t, GetPrincipal(ctx))
}

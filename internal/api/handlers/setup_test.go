package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hugh/orchestra/internal/api"
	"github.com/hugh/orchestra/internal/auth"
	"github.com/hugh/orchestra/internal/testutil"
)

func setupTestRouter(t *testing.T) (*api.Router, *testutil.TestSetup) {
	t.Helper()

	tc := testutil.NewTestContext(t)
	logger := testutil.DiscardLogger()

	router := api.NewRouter(api.RouterConfig{
		DB:          tc.DB,
		Logger:      logger,
		JWTService:  tc.JWTService,
		AuthService: auth.NewService(tc.DB, tc.JWTService, logger),
		TokenMaxAge: 3600,
	})
	return router, tc
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

type errorBody struct {
	Message      string            `json:"message"`
	Errors       map[string]string `json:"errors"`
	CurrentCount *int64            `json:"current_count"`
	Limit        *int              `json:"limit"`
}

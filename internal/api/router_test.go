package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hugh/orchestra/internal/api"
	"github.com/hugh/orchestra/internal/api/handlers"
	"github.com/hugh/orchestra/internal/auth"
	"github.com/hugh/orchestra/internal/events"
	"github.com/hugh/orchestra/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T, publisher events.Publisher) (*api.Router, *testutil.TestSetup) {
	t.Helper()

	tc := testutil.NewTestContext(t)
	logger := testutil.DiscardLogger()
	return api.NewRouter(api.RouterConfig{
		DB:             tc.DB,
		Logger:         logger,
		JWTService:     tc.JWTService,
		AuthService:    auth.NewService(tc.DB, tc.JWTService, logger),
		Publisher:      publisher,
		AllowedOrigins: []string{"https://app.example.com"},
		RateLimitReqs:  1000,
		RateLimitSecs:  60,
	}), tc
}

func TestRouter_Health(t *testing.T) {
	router, tc := newRouter(t, nil)
	defer tc.Cleanup()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var resp handlers.HealthResponse
	testutil.ParseJSONResponse(t, rr, &resp)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "healthy", resp.Services["database"])
	assert.NotContains(t, resp.Services, "redis")

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/ready", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Equal(t, "ok", rr.Body.String())
}

type downBroker struct{}

func (downBroker) Connected() bool { return false }

func TestHealth_DegradedBroker(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()

	h := handlers.NewHealthHandler(tc.DB, nil, downBroker{})
	rr := httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest("GET", "/health", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var resp handlers.HealthResponse
	testutil.ParseJSONResponse(t, rr, &resp)
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "unhealthy", resp.Services["nats"])
}

func TestRouter_Metrics(t *testing.T) {
	router, tc := newRouter(t, nil)
	defer tc.Cleanup()

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Contains(t, rr.Body.String(), "orchestra_http_requests_total")
}

func TestRouter_RateLimitHeaders(t *testing.T) {
	router, tc := newRouter(t, nil)
	defer tc.Cleanup()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/ready", nil))
	assert.Equal(t, "1000", rr.Header().Get("X-RateLimit-Limit"))
}

func TestRouter_CORSAllowsEnterpriseKey(t *testing.T) {
	router, tc := newRouter(t, nil)
	defer tc.Cleanup()

	req := httptest.NewRequest("OPTIONS", "/api/v1/roles", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Enterprise-Key")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_PublishesEvents(t *testing.T) {
	rec := &events.Recorder{}
	router, tc := newRouter(t, rec)
	defer tc.Cleanup()

	body := map[string]interface{}{"name": "Support", "color_hex": "#FF0000", "authority": map[string]interface{}{}}
	req := testutil.TenantRequest(t, "POST", "/api/v1/roles", body, tc.Token, tc.Enterprise.Key)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	testutil.AssertStatus(t, rr, http.StatusCreated)

	require.Equal(t, []string{events.SubjectRoleCreated}, rec.Subjects())
	assert.Equal(t, tc.Enterprise.ID.String(), rec.Events()[0].EnterpriseID)
}

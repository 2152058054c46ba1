package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/hugh/orchestra/internal/api/middleware"
	"github.com/hugh/orchestra/internal/auth"
	"github.com/hugh/orchestra/internal/authority"
	"github.com/hugh/orchestra/internal/database"
	"github.com/hugh/orchestra/internal/database/models"
	"github.com/hugh/orchestra/internal/enterprise"
	"github.com/hugh/orchestra/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver map[string]*models.Enterprise

func (f fakeResolver) FindByKey(_ context.Context, key string) (*models.Enterprise, error) {
	if ent, ok := f[key]; ok {
		return ent, nil
	}
	return nil, enterprise.ErrEnterpriseNotFound
}

type fakeLoader map[uuid.UUID]*models.User

func (f fakeLoader) LoadPrincipal(_ context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, auth.ErrUserNotFound
}

type tenantFixture struct {
	jwt      *auth.JWTService
	ent      *models.Enterprise
	resolver fakeResolver
	loader   fakeLoader
}

func newTenantFixture() *tenantFixture {
	ent := &models.Enterprise{Base: models.Base{ID: uuid.New()}, Name: "Test Corp", Key: "abcdef0123456789"}
	return &tenantFixture{
		jwt:      testutil.CreateTestJWTService(),
		ent:      ent,
		resolver: fakeResolver{ent.Key: ent},
		loader:   fakeLoader{},
	}
}

func (f *tenantFixture) addUser(enterpriseID uuid.UUID, role *models.Role) *models.User {
	u := &models.User{Base: models.Base{ID: uuid.New()}, Email: uuid.NewString() + "@example.com", EnterpriseID: enterpriseID, Role: role}
	f.loader[u.ID] = u
	return u
}

func (f *tenantFixture) serve(t *testing.T, user *models.User, key, module, action string) *httptest.ResponseRecorder {
	t.Helper()

	chain := middleware.Auth(f.jwt)(middleware.Guards(testutil.DiscardLogger(),
		middleware.RequireEnterpriseKey(f.resolver),
		middleware.RequireMembership(f.loader),
		middleware.RequireAuthority(module, action),
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, f.ent.ID, middleware.GetEnterprise(r.Context()).ID)
		assert.Equal(t, user.ID, middleware.GetPrincipal(r.Context()).ID)
		w.WriteHeader(http.StatusNoContent)
	})))

	token := testutil.GenerateTestToken(t, f.jwt, user)
	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, testutil.TenantRequest(t, http.MethodGet, "/api/v1/enterprise", nil, token, key))
	return rec
}

func role(a authority.Authority) *models.Role {
	return &models.Role{Name: "r", Authority: a}
}

func TestTenantGuards(t *testing.T) {
	f := newTenantFixture()

	reader := f.addUser(f.ent.ID, role(authority.FromRaw(map[string]any{
		"personnel": map[string]any{"read": true},
	})))
	super := f.addUser(f.ent.ID, role(authority.Wild()))
	roleless := f.addUser(f.ent.ID, nil)
	emptyRole := f.addUser(f.ent.ID, role(authority.Authority{}))
	outsider := f.addUser(uuid.New(), role(authority.Wild()))
	ghost := &models.User{Base: models.Base{ID: uuid.New()}, EnterpriseID: f.ent.ID}

	tests := []struct {
		name   string
		user   *models.User
		key    string
		module string
		action string
		status int
		msg    string
	}{
		{"granted", reader, f.ent.Key, "personnel", "read", 204, ""},
		{"wildcard grants anything", super, f.ent.Key, "billing", "launch", 204, ""},
		{"missing key", reader, "", "personnel", "read", 401, "Enterprise key is missing from headers"},
		{"unknown key", reader, "ffffffffffffffff", "personnel", "read", 403, "Invalid enterprise key"},
		{"other tenant", outsider, f.ent.Key, "personnel", "read", 403, "You are not a member of this enterprise"},
		{"unknown user", ghost, f.ent.Key, "personnel", "read", 403, "You are not a member of this enterprise"},
		{"no role", roleless, f.ent.Key, "personnel", "read", 403, "User has no role assigned"},
		{"role without authority", emptyRole, f.ent.Key, "personnel", "read", 403, "User has no role assigned"},
		{"undefined pair", reader, f.ent.Key, "billing", "read", 403, "No read permission defined for module billing"},
		{"denied pair", reader, f.ent.Key, "personnel", "delete", 403, "Access denied: Requires personnel.delete permission"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.serve(t, tt.user, tt.key, tt.module, tt.action)

			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.msg != "" {
				assert.JSONEq(t, `{"message":"`+tt.msg+`"}`, rec.Body.String())
			}
		})
	}
}

func TestGuards_StopAtFirstRejection(t *testing.T) {
	var calls []string
	guard := func(name string, err error) middleware.Guard {
		return func(r *http.Request) (*http.Request, error) {
			calls = append(calls, name)
			return r, err
		}
	}

	handler := middleware.Guards(nil,
		guard("a", nil),
		guard("b", errors.New("boom")),
		guard("c", nil),
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"a", "b"}, calls)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"Internal server error"}`, rec.Body.String())
}

func TestTenantGuards_SeededRoles(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	f := newTenantFixture()
	member := f.addUser(f.ent.ID, testutil.SystemRole(t, db, database.MemberRoleName))
	admin := f.addUser(f.ent.ID, testutil.SystemRole(t, db, database.AdminRoleName))

	rec := f.serve(t, member, f.ent.Key, "roles", "create")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"message":"Access denied: Requires roles.create permission"}`, rec.Body.String())

	rec = f.serve(t, member, f.ent.Key, "events", "read")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	for _, module := range authority.Modules() {
		for _, action := range authority.Actions(module) {
			rec := f.serve(t, admin, f.ent.Key, module, action)
			require.Equal(t, http.StatusNoContent, rec.Code, "%s.%s", module, action)
		}
	}
}

func TestRequireMembership_TokenForOtherTenant(t *testing.T) {
	f := newTenantFixture()
	user := f.addUser(f.ent.ID, role(authority.Wild()))

	chain := middleware.Auth(f.jwt)(middleware.Guards(testutil.DiscardLogger(),
		middleware.RequireEnterpriseKey(f.resolver),
		middleware.RequireMembership(f.loader),
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run")
	})))

	token, err := f.jwt.GenerateToken(user.ID, uuid.New(), user.Email)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, testutil.TenantRequest(t, http.MethodGet, "/api/v1/enterprise", nil, token, f.ent.Key))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"message":"You are not a member of this enterprise"}`, rec.Body.String())
}

package handlers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/hugh/orchestra/internal/api/dto"
	"github.com/hugh/orchestra/internal/database"
	"github.com/hugh/orchestra/internal/database/models"
	"github.com/hugh/orchestra/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPersonnelBody(first, email, roleID string) map[string]string {
	return map[string]string{
		"first_name": first,
		"last_name":  "Doe",
		"email":      email,
		"password":   "Secret123",
		"role_uuid":  roleID,
		"joined_at":  "2024-01-15",
	}
}

func TestPersonnelHandler_Create(t *testing.T) {
	router, tc := setupTestRouter(t)
	defer tc.Cleanup()
	member := testutil.SystemRole(t, tc.DB, database.MemberRoleName)

	t.Run("creates a user", func(t *testing.T) {
		body := newPersonnelBody("Jane", "Jane.Doe@Example.com", member.ID.String())

		rr := serve(router, testutil.TenantRequest(t, "POST", "/api/v1/enterprise/new-user", body, tc.Token, tc.Enterprise.Key))
		testutil.AssertStatus(t, rr, http.StatusCreated)

		var resp dto.PersonnelResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "User created successfully", resp.Message)
		assert.Equal(t, "jane.doe@example.com", resp.User.Email)
		assert.Equal(t, "2024-01-15", resp.User.JoinedAt)
		require.NotNil(t, resp.User.Role)
		assert.Equal(t, database.MemberRoleName, resp.User.Role.Name)
	})

	t.Run("validation errors", func(t *testing.T) {
		body := map[string]string{"email": "bad", "joined_at": "15/01/2024"}

		rr := serve(router, testutil.TenantRequest(t, "POST", "/api/v1/enterprise/new-user", body, tc.Token, tc.Enterprise.Key))
		testutil.AssertStatus(t, rr, http.StatusUnprocessableEntity)

		var resp errorBody
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "The joined at does not match the format Y-m-d.", resp.Errors["joined_at"])
		assert.Contains(t, resp.Errors, "role_uuid")
		assert.Contains(t, resp.Errors, "password")
	})

	t.Run("role of another tenant", func(t *testing.T) {
		other := testutil.CreateTestEnterprise(t, tc.DB)
		foreign := testutil.CreateTestRole(t, tc.DB, other, "Foreign", "personnel.read")
		body := newPersonnelBody("Eve", "eve@example.com", foreign.ID.String())

		rr := serve(router, testutil.TenantRequest(t, "POST", "/api/v1/enterprise/new-user", body, tc.Token, tc.Enterprise.Key))
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})

	t.Run("member cannot create", func(t *testing.T) {
		user := testutil.CreateTestUser(t, tc.DB, tc.Enterprise, member)
		token := testutil.GenerateTestToken(t, tc.JWTService, user)
		body := newPersonnelBody("Mallory", "mallory@example.com", member.ID.String())

		rr := serve(router, testutil.TenantRequest(t, "POST", "/api/v1/enterprise/new-user", body, token, tc.Enterprise.Key))
		testutil.AssertStatus(t, rr, http.StatusForbidden)

		var resp errorBody
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "Access denied: Requires personnel.create permission", resp.Message)
	})
}

func TestPersonnelHandler_UserLimit(t *testing.T) {
	router, tc := setupTestRouter(t)
	defer tc.Cleanup()
	member := testutil.SystemRole(t, tc.DB, database.MemberRoleName)

	// the owner is the first of the 30 free seats
	for i := 1; i < 30; i++ {
		testutil.CreateTestUser(t, tc.DB, tc.Enterprise, member)
	}

	body := newPersonnelBody("Extra", "extra@example.com", member.ID.String())
	rr := serve(router, testutil.TenantRequest(t, "POST", "/api/v1/enterprise/new-user", body, tc.Token, tc.Enterprise.Key))
	testutil.AssertStatus(t, rr, http.StatusForbidden)

	var resp errorBody
	testutil.ParseJSONResponse(t, rr, &resp)
	assert.Equal(t, "Users limit reached. Please upgrade your subscription.", resp.Message)
	require.NotNil(t, resp.CurrentCount)
	require.NotNil(t, resp.Limit)
	assert.Equal(t, int64(30), *resp.CurrentCount)
	assert.Equal(t, 30, *resp.Limit)

	// buying the module does not lift the headcount cap
	testutil.PurchaseModule(t, tc.DB, tc.Enterprise, "personnel")

	rr = serve(router, testutil.TenantRequest(t, "POST", "/api/v1/enterprise/new-user", body, tc.Token, tc.Enterprise.Key))
	testutil.AssertStatus(t, rr, http.StatusForbidden)
}

func TestPersonnelHandler_List(t *testing.T) {
	router, tc := setupTestRouter(t)
	defer tc.Cleanup()
	member := testutil.SystemRole(t, tc.DB, database.MemberRoleName)

	for i, name := range []string{"Alice", "Bob", "Alicia"} {
		body := newPersonnelBody(name, fmt.Sprintf("user%d@example.com", i), member.ID.String())
		rr := serve(router, testutil.TenantRequest(t, "POST", "/api/v1/enterprise/new-user", body, tc.Token, tc.Enterprise.Key))
		testutil.AssertStatus(t, rr, http.StatusCreated)
	}
	testutil.CreateTestUser(t, tc.DB, testutil.CreateTestEnterprise(t, tc.DB), member)

	t.Run("lists only the tenant", func(t *testing.T) {
		rr := serve(router, testutil.TenantRequest(t, "GET", "/api/v1/enterprise/get-personnel", nil, tc.Token, tc.Enterprise.Key))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp dto.PersonnelListResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, 4, resp.TotalUsers)
		assert.Len(t, resp.Users, 4)
		assert.Empty(t, resp.FiltersApplied)
	})

	t.Run("filters by name and sorts descending", func(t *testing.T) {
		path := "/api/v1/enterprise/get-personnel?name=ali&sort_by=first_name&sort_direction=desc"
		rr := serve(router, testutil.TenantRequest(t, "GET", path, nil, tc.Token, tc.Enterprise.Key))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp dto.PersonnelListResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		require.Equal(t, 2, resp.TotalUsers)
		assert.Equal(t, "Alicia", resp.Users[0].FirstName)
		assert.Equal(t, "Alice", resp.Users[1].FirstName)
		assert.Equal(t, []string{"name", "sort_by", "sort_direction"}, resp.FiltersApplied)
	})

	t.Run("filters by role", func(t *testing.T) {
		path := "/api/v1/enterprise/get-personnel?role_uuid=" + member.ID.String()
		rr := serve(router, testutil.TenantRequest(t, "GET", path, nil, tc.Token, tc.Enterprise.Key))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp dto.PersonnelListResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, 3, resp.TotalUsers)
	})

	t.Run("invalid sort", func(t *testing.T) {
		path := "/api/v1/enterprise/get-personnel?sort_by=password_hash"
		rr := serve(router, testutil.TenantRequest(t, "GET", path, nil, tc.Token, tc.Enterprise.Key))
		testutil.AssertStatus(t, rr, http.StatusUnprocessableEntity)
	})
}

func TestPersonnelHandler_Delete(t *testing.T) {
	router, tc := setupTestRouter(t)
	defer tc.Cleanup()
	member := testutil.SystemRole(t, tc.DB, database.MemberRoleName)

	t.Run("deletes a user", func(t *testing.T) {
		user := testutil.CreateTestUser(t, tc.DB, tc.Enterprise, member)

		rr := serve(router, testutil.TenantRequest(t, "DELETE", "/api/v1/enterprise/delete-personnel/"+user.ID.String(), nil, tc.Token, tc.Enterprise.Key))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp dto.MessageResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "User deleted successfully", resp.Message)

		var count int64
		require.NoError(t, tc.DB.Unscoped().Model(&models.User{}).Where("id = ?", user.ID).Count(&count).Error)
		assert.Zero(t, count)
	})

	t.Run("owner is protected", func(t *testing.T) {
		rr := serve(router, testutil.TenantRequest(t, "DELETE", "/api/v1/enterprise/delete-personnel/"+tc.Admin.ID.String(), nil, tc.Token, tc.Enterprise.Key))
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})

	t.Run("user of another tenant", func(t *testing.T) {
		outsider := testutil.CreateTestUser(t, tc.DB, testutil.CreateTestEnterprise(t, tc.DB), member)

		rr := serve(router, testutil.TenantRequest(t, "DELETE", "/api/v1/enterprise/delete-personnel/"+outsider.ID.String(), nil, tc.Token, tc.Enterprise.Key))
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})

	t.Run("malformed uuid", func(t *testing.T) {
		rr := serve(router, testutil.TenantRequest(t, "DELETE", "/api/v1/enterprise/delete-personnel/not-a-uuid", nil, tc.Token, tc.Enterprise.Key))
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})
}

func TestPersonnelHandler_Update(t *testing.T) {
	router, tc := setupTestRouter(t)
	defer tc.Cleanup()
	member := testutil.SystemRole(t, tc.DB, database.MemberRoleName)
	user := testutil.CreateTestUser(t, tc.DB, tc.Enterprise, member)
	path := "/api/v1/enterprise/update-personnel/" + user.ID.String()

	t.Run("updates fields", func(t *testing.T) {
		body := map[string]interface{}{"first_name": "Updated", "status": false, "leave_days": 12}

		rr := serve(router, testutil.TenantRequest(t, "PUT", path, body, tc.Token, tc.Enterprise.Key))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp dto.PersonnelResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "User updated successfully", resp.Message)
		assert.Equal(t, "Updated", resp.User.FirstName)
		assert.False(t, resp.User.Status)
		assert.Equal(t, 12, resp.User.LeaveDays)
	})

	t.Run("changes role", func(t *testing.T) {
		role := testutil.CreateTestRole(t, tc.DB, tc.Enterprise, "Manager", "personnel.read")
		body := map[string]string{"role_uuid": role.ID.String()}

		rr := serve(router, testutil.TenantRequest(t, "PUT", path, body, tc.Token, tc.Enterprise.Key))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp dto.PersonnelResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		require.NotNil(t, resp.User.Role)
		assert.Equal(t, "Manager", resp.User.Role.Name)
	})

	t.Run("negative leave days", func(t *testing.T) {
		body := map[string]int{"leave_days": -1}

		rr := serve(router, testutil.TenantRequest(t, "PUT", path, body, tc.Token, tc.Enterprise.Key))
		testutil.AssertStatus(t, rr, http.StatusUnprocessableEntity)

		var resp errorBody
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "The leave days must be at least 0.", resp.Message)
	})

	t.Run("no fields", func(t *testing.T) {
		rr := serve(router, testutil.TenantRequest(t, "PUT", path, map[string]string{}, tc.Token, tc.Enterprise.Key))
		testutil.AssertStatus(t, rr, http.StatusUnprocessableEntity)
	})
}

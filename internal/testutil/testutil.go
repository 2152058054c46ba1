package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/orchestra/internal/auth"
	"github.com/hugh/orchestra/internal/authority"
	"github.com/hugh/orchestra/internal/database"
	"github.com/hugh/orchestra/internal/database/models"
	"github.com/hugh/orchestra/internal/entitlement"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestPassword is the plain password of every user built here.
const TestPassword = "Password123"

// SetupTestDB creates a migrated and seeded in-memory SQLite database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// Every pooled connection would get its own in-memory database.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	if err := database.SeedCatalog(db); err != nil {
		t.Fatalf("failed to seed test database: %v", err)
	}

	return db
}

// CleanupTestDB closes the test database connection
func CleanupTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	if err != nil {
		t.Logf("warning: failed to get sql.DB: %v", err)
		return
	}
	sqlDB.Close()
}

// DiscardLogger drops all output.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// SystemRole loads a seeded template by name.
func SystemRole(t *testing.T, db *gorm.DB, name string) *models.Role {
	t.Helper()

	var role models.Role
	if err := db.Where("owner_kind = ? AND name = ?", models.RoleOwnerSystem, name).First(&role).Error; err != nil {
		t.Fatalf("failed to load system role %s: %v", name, err)
	}
	return &role
}

// CreateTestEnterprise creates a tenant with every catalog module attached.
func CreateTestEnterprise(t *testing.T, db *gorm.DB) *models.Enterprise {
	t.Helper()

	ent := &models.Enterprise{
		Name:   "Test Enterprise",
		Key:    uuid.New().String()[:16],
		Status: true,
	}
	if err := db.Create(ent).Error; err != nil {
		t.Fatalf("failed to create test enterprise: %v", err)
	}
	if _, err := entitlement.NewTracker(db).AssignModules(context.Background(), ent.ID); err != nil {
		t.Fatalf("failed to attach modules: %v", err)
	}
	return ent
}

// PurchaseModule marks a catalog module as bought by ent.
func PurchaseModule(t *testing.T, db *gorm.DB, ent *models.Enterprise, key string) {
	t.Helper()

	if _, err := entitlement.NewTracker(db).RecordPurchase(context.Background(), ent.ID, key); err != nil {
		t.Fatalf("failed to purchase %s: %v", key, err)
	}
}

// CreateTestRole creates a tenant role granting the given "module.action"
// pairs.
func CreateTestRole(t *testing.T, db *gorm.DB, ent *models.Enterprise, name string, grants ...string) *models.Role {
	t.Helper()

	m := authority.Matrix{}
	for _, g := range grants {
		module, action, ok := strings.Cut(g, ".")
		if !ok {
			t.Fatalf("malformed grant %q", g)
		}
		if m[module] == nil {
			m[module] = map[string]bool{}
		}
		m[module][action] = true
	}

	role := models.NewRole(models.EnterpriseOwner(ent.ID), name, "#FF0000", authority.FromMatrix(m))
	if err := db.Create(role).Error; err != nil {
		t.Fatalf("failed to create test role: %v", err)
	}
	return role
}

// CreateTestUser creates an active user of ent holding role.
func CreateTestUser(t *testing.T, db *gorm.DB, ent *models.Enterprise, role *models.Role) *models.User {
	t.Helper()

	hash, err := auth.HashPassword(TestPassword)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	joined := time.Now().UTC().AddDate(0, -1, 0).Truncate(24 * time.Hour)
	user := &models.User{
		FirstName:    "Test",
		LastName:     "User",
		Email:        "test-" + uuid.New().String()[:8] + "@example.com",
		PasswordHash: hash,
		Status:       true,
		JoinedAt:     &joined,
		EnterpriseID: ent.ID,
		RoleID:       role.ID,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	user.Enterprise = ent
	user.Role = role
	return user
}

// SetOwner records user as the owner of ent.
func SetOwner(t *testing.T, db *gorm.DB, ent *models.Enterprise, user *models.User) {
	t.Helper()

	if err := db.Model(ent).Update("owner_id", user.ID).Error; err != nil {
		t.Fatalf("failed to set owner: %v", err)
	}
	ent.OwnerID = &user.ID
}

// CreateTestJWTService creates a JWT service for testing
func CreateTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key-for-testing", 24*time.Hour)
}

// GenerateTestToken generates a valid JWT token for the given user
func GenerateTestToken(t *testing.T, jwtService *auth.JWTService, user *models.User) string {
	t.Helper()

	token, err := jwtService.GenerateToken(user.ID, user.EnterpriseID, user.Email)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}

	return token
}

// AuthenticatedRequest creates an HTTP request with authentication
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// TenantRequest is AuthenticatedRequest with the Enterprise-Key header.
func TenantRequest(t *testing.T, method, path string, body interface{}, token, key string) *http.Request {
	t.Helper()

	req := AuthenticatedRequest(t, method, path, body, token)
	if key != "" {
		req.Header.Set("Enterprise-Key", key)
	}
	return req
}

// UnauthenticatedRequest creates an HTTP request without authentication
func UnauthenticatedRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	return AuthenticatedRequest(t, method, path, body, "")
}

// AssertStatus checks if the response has the expected status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// TestContext creates a context with a timeout for tests
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestSetup holds all the common test dependencies
type TestSetup struct {
	DB         *gorm.DB
	JWTService *auth.JWTService
	Enterprise *models.Enterprise
	Admin      *models.User
	Token      string
}

// NewTestContext creates a tenant whose owner holds the administrator
// template, plus a token for that owner.
func NewTestContext(t *testing.T) *TestSetup {
	t.Helper()

	db := SetupTestDB(t)
	jwtService := CreateTestJWTService()
	ent := CreateTestEnterprise(t, db)
	admin := CreateTestUser(t, db, ent, SystemRole(t, db, database.AdminRoleName))
	SetOwner(t, db, ent, admin)
	token := GenerateTestToken(t, jwtService, admin)

	return &TestSetup{
		DB:         db,
		JWTService: jwtService,
		Enterprise: ent,
		Admin:      admin,
		Token:      token,
	}
}

// Cleanup closes the test database
func (ts *TestSetup) Cleanup() {
	if ts.DB != nil {
		sqlDB, err := ts.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

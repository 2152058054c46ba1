// Package personnel manages the users of a tenant and enforces the
// free-tier headcount cap.
package personnel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hugh/orchestra/internal/api/validation"
	"github.com/hugh/orchestra/internal/apperr"
	"github.com/hugh/orchestra/internal/auth"
	"github.com/hugh/orchestra/internal/database"
	"github.com/hugh/orchestra/internal/database/models"
	"github.com/hugh/orchestra/internal/entitlement"
	"github.com/hugh/orchestra/internal/events"
	"github.com/hugh/orchestra/internal/metrics"
	"gorm.io/gorm"
)

// ModuleKey is the catalog module that carries the maxUsers limit.
const ModuleKey = "personnel"

const (
	msgInvalidRole  = "Invalid role for this enterprise"
	msgUserNotFound = "User not found in this enterprise"
)

type Service struct {
	db        *gorm.DB
	tracker   *entitlement.Tracker
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(db *gorm.DB, tracker *entitlement.Tracker, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{
		db:        db,
		tracker:   tracker,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	RoleID    string
	JoinedAt  string
}

func (s *Service) validateRegister(ctx context.Context, in RegisterInput) (map[string]string, time.Time, error) {
	errs := make(map[string]string)
	var joined time.Time

	requireName(errs, "first_name", "first name", in.FirstName)
	requireName(errs, "last_name", "last name", in.LastName)

	email := normalizeEmail(in.Email)
	switch {
	case email == "":
		errs["email"] = "The email field is required."
	case !validation.IsValidEmail(email):
		errs["email"] = "The email must be a valid email address."
	default:
		taken, err := s.emailTaken(ctx, email, uuid.Nil)
		if err != nil {
			return nil, joined, err
		}
		if taken {
			errs["email"] = "The email has already been taken."
		}
	}

	if in.Password == "" {
		errs["password"] = "The password field is required."
	} else if ok, msg := validation.IsValidPassword(in.Password); !ok {
		errs["password"] = msg
	}

	if strings.TrimSpace(in.RoleID) == "" {
		errs["role_uuid"] = "The role uuid field is required."
	} else if !validation.IsValidUUID(strings.TrimSpace(in.RoleID)) {
		errs["role_uuid"] = "The role uuid must be a valid UUID."
	}

	if strings.TrimSpace(in.JoinedAt) == "" {
		errs["joined_at"] = "The joined at field is required."
	} else if d, ok := validation.ParseDate(strings.TrimSpace(in.JoinedAt)); !ok {
		errs["joined_at"] = "The joined at does not match the format Y-m-d."
	} else if validation.IsFutureDate(d, s.now().UTC()) {
		errs["joined_at"] = "The joined at must be a date before or equal to today."
	} else {
		joined = d
	}

	return errs, joined, nil
}

// Register adds a user to the tenant. Field errors are reported before the
// role and headcount checks.
func (s *Service) Register(ctx context.Context, enterpriseID uuid.UUID, in RegisterInput) (*models.User, error) {
	errs, joined, err := s.validateRegister(ctx, in)
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		return nil, apperr.Validation(errs)
	}

	role, err := s.availableRole(ctx, enterpriseID, uuid.MustParse(strings.TrimSpace(in.RoleID)))
	if err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := models.User{
		FirstName:    validation.SanitizeString(in.FirstName),
		LastName:     validation.SanitizeString(in.LastName),
		Email:        normalizeEmail(in.Email),
		PasswordHash: hash,
		Status:       true,
		LeaveDays:    0,
		JoinedAt:     &joined,
		EnterpriseID: enterpriseID,
		RoleID:       role.ID,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := database.LockEnterprise(tx, enterpriseID); err != nil {
			return err
		}
		if err := s.checkUserLimit(ctx, tx, enterpriseID); err != nil {
			return err
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		if apperr.IsLimitExceeded(err) || apperr.IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	user.Role = role
	s.logger.Info("personnel registered", "enterprise_id", enterpriseID, "user_id", user.ID)
	events.Emit(ctx, s.publisher, s.logger, events.SubjectPersonnelCreated, events.Event{
		EnterpriseID: enterpriseID.String(),
		SubjectID:    user.ID.String(),
		Data:         map[string]interface{}{"email": user.Email, "role": role.Name},
	})

	return &user, nil
}

// checkUserLimit counts active and inactive users alike. The cap holds
// whether or not the personnel module was purchased; only a missing limit
// lifts it.
func (s *Service) checkUserLimit(ctx context.Context, tx *gorm.DB, enterpriseID uuid.UUID) error {
	limit, ok, err := s.tracker.WithTx(tx).IntLimit(ctx, enterpriseID, ModuleKey, entitlement.LimitMaxUsers)
	if err != nil || !ok {
		return err
	}

	var count int64
	if err := tx.Model(&models.User{}).Where("enterprise_id = ?", enterpriseID).Count(&count).Error; err != nil {
		return fmt.Errorf("counting users: %w", err)
	}
	if count >= int64(limit) {
		metrics.LimitExceeded.WithLabelValues(ModuleKey).Inc()
		s.logger.Warn("user limit reached", "enterprise_id", enterpriseID, "count", count, "limit", limit)
		return apperr.NewUserLimitExceeded(count, limit)
	}
	return nil
}

func (s *Service) availableRole(ctx context.Context, enterpriseID, roleID uuid.UUID) (*models.Role, error) {
	var role models.Role
	err := s.db.WithContext(ctx).Where("id = ?", roleID).First(&role).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Forbidden(msgInvalidRole)
		}
		return nil, fmt.Errorf("loading role: %w", err)
	}
	if !role.AvailableTo(enterpriseID) {
		return nil, apperr.Forbidden(msgInvalidRole)
	}
	return &role, nil
}

func (s *Service) emailTaken(ctx context.Context, email string, except uuid.UUID) (bool, error) {
	q := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email)
	if except != uuid.Nil {
		q = q.Where("id <> ?", except)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, fmt.Errorf("checking email: %w", err)
	}
	return count > 0, nil
}

func (s *Service) findInEnterprise(ctx context.Context, db *gorm.DB, enterpriseID, userID uuid.UUID) (*models.User, error) {
	var user models.User
	err := db.WithContext(ctx).
		Where("id = ? AND enterprise_id = ?", userID, enterpriseID).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(msgUserNotFound)
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}
	return &user, nil
}

// Filters are the raw query parameters of a personnel listing.
type Filters struct {
	RoleID        string
	Email         string
	Name          string
	Status        string
	SortBy        string
	SortDirection string
}

var sortColumns = map[string]bool{
	"first_name": true,
	"last_name":  true,
	"email":      true,
	"joined_at":  true,
}

type ListResult struct {
	Total          int
	FiltersApplied []string
	Users          []models.User
}

func (s *Service) List(ctx context.Context, enterpriseID uuid.UUID, f Filters) (*ListResult, error) {
	errs := make(map[string]string)
	var applied []string

	q := s.db.WithContext(ctx).Preload("Role").Where("enterprise_id = ?", enterpriseID)

	if v := strings.TrimSpace(f.RoleID); v != "" {
		if !validation.IsValidUUID(v) {
			errs["role_uuid"] = "The role uuid must be a valid UUID."
		} else {
			q = q.Where("role_id = ?", v)
			applied = append(applied, "role_uuid")
		}
	}
	if v := strings.TrimSpace(f.Email); v != "" {
		q = q.Where(`LOWER(email) LIKE ? ESCAPE '\'`, containsPattern(v))
		applied = append(applied, "email")
	}
	if v := strings.TrimSpace(f.Name); v != "" {
		pattern := containsPattern(v)
		q = q.Where(`(LOWER(first_name) LIKE ? ESCAPE '\' OR LOWER(last_name) LIKE ? ESCAPE '\')`, pattern, pattern)
		applied = append(applied, "name")
	}
	if v := strings.TrimSpace(f.Status); v != "" {
		status, err := strconv.ParseBool(v)
		if err != nil {
			errs["status"] = "The status field must be true or false."
		} else {
			q = q.Where("status = ?", status)
			applied = append(applied, "status")
		}
	}

	sortBy := "first_name"
	if v := strings.TrimSpace(f.SortBy); v != "" {
		if !sortColumns[v] {
			errs["sort_by"] = "The selected sort by is invalid."
		} else {
			sortBy = v
			applied = append(applied, "sort_by")
		}
	}
	direction := "asc"
	if v := strings.ToLower(strings.TrimSpace(f.SortDirection)); v != "" {
		if v != "asc" && v != "desc" {
			errs["sort_direction"] = "The selected sort direction is invalid."
		} else {
			direction = v
			applied = append(applied, "sort_direction")
		}
	}

	if len(errs) > 0 {
		return nil, apperr.Validation(errs)
	}

	var users []models.User
	if err := q.Order(sortBy + " " + direction).Order("id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("listing personnel: %w", err)
	}

	if applied == nil {
		applied = []string{}
	}
	return &ListResult{Total: len(users), FiltersApplied: applied, Users: users}, nil
}

// Delete removes a user from the tenant. The owner and the acting user are
// protected.
func (s *Service) Delete(ctx context.Context, enterpriseID, actorID, userID uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.findInEnterprise(ctx, tx, enterpriseID, userID)
		if err != nil {
			return err
		}

		var ent models.Enterprise
		if err := tx.First(&ent, "id = ?", enterpriseID).Error; err != nil {
			return fmt.Errorf("loading enterprise: %w", err)
		}
		if ent.IsOwnedBy(user.ID) {
			return apperr.Forbidden("Cannot delete the enterprise owner")
		}
		if user.ID == actorID {
			return apperr.Forbidden("Cannot delete your own account")
		}

		return tx.Unscoped().Delete(user).Error
	})
	if err != nil {
		return err
	}

	s.logger.Info("personnel deleted", "enterprise_id", enterpriseID, "user_id", userID, "actor_id", actorID)
	events.Emit(ctx, s.publisher, s.logger, events.SubjectPersonnelDeleted, events.Event{
		EnterpriseID: enterpriseID.String(),
		SubjectID:    userID.String(),
	})
	return nil
}

// UpdateInput is a partial update; nil fields are left untouched.
type UpdateInput struct {
	FirstName *string
	LastName  *string
	Email     *string
	RoleID    *string
	Status    *bool
	LeaveDays *int
}

func (in UpdateInput) empty() bool {
	return in.FirstName == nil && in.LastName == nil && in.Email == nil &&
		in.RoleID == nil && in.Status == nil && in.LeaveDays == nil
}

func (s *Service) Update(ctx context.Context, enterpriseID, userID uuid.UUID, in UpdateInput) (*models.User, error) {
	if in.empty() {
		return nil, apperr.Invalid("fields", "No fields to update")
	}

	user, err := s.findInEnterprise(ctx, s.db, enterpriseID, userID)
	if err != nil {
		return nil, err
	}

	errs := make(map[string]string)
	updates := make(map[string]interface{})

	if in.FirstName != nil {
		if requireName(errs, "first_name", "first name", *in.FirstName) {
			updates["first_name"] = validation.SanitizeString(*in.FirstName)
		}
	}
	if in.LastName != nil {
		if requireName(errs, "last_name", "last name", *in.LastName) {
			updates["last_name"] = validation.SanitizeString(*in.LastName)
		}
	}
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		if !validation.IsValidEmail(email) {
			errs["email"] = "The email must be a valid email address."
		} else if taken, err := s.emailTaken(ctx, email, user.ID); err != nil {
			return nil, err
		} else if taken {
			errs["email"] = "The email has already been taken."
		} else {
			updates["email"] = email
		}
	}
	var roleID *uuid.UUID
	if in.RoleID != nil {
		id, err := uuid.Parse(strings.TrimSpace(*in.RoleID))
		if err != nil {
			errs["role_uuid"] = "The role uuid must be a valid UUID."
		} else {
			roleID = &id
		}
	}
	if in.Status != nil {
		updates["status"] = *in.Status
	}
	if in.LeaveDays != nil {
		if *in.LeaveDays < 0 {
			errs["leave_days"] = "The leave days must be at least 0."
		} else {
			updates["leave_days"] = *in.LeaveDays
		}
	}

	if len(errs) > 0 {
		return nil, apperr.Validation(errs)
	}

	if roleID != nil {
		role, err := s.availableRole(ctx, enterpriseID, *roleID)
		if err != nil {
			return nil, err
		}
		updates["role_id"] = role.ID
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("updating user: %w", err)
	}

	var updated models.User
	if err := s.db.WithContext(ctx).Preload("Role").First(&updated, "id = ?", user.ID).Error; err != nil {
		return nil, fmt.Errorf("reloading user: %w", err)
	}

	events.Emit(ctx, s.publisher, s.logger, events.SubjectPersonnelUpdated, events.Event{
		EnterpriseID: enterpriseID.String(),
		SubjectID:    updated.ID.String(),
	})
	return &updated, nil
}

func requireName(errs map[string]string, field, label, v string) bool {
	v = validation.SanitizeString(v)
	if v == "" {
		errs[field] = "The " + label + " field is required."
		return false
	}
	if utf8.RuneCountInString(v) > 255 {
		errs[field] = "The " + label + " may not be greater than 255 characters."
		return false
	}
	return true
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// containsPattern matches v literally anywhere in a lowercased column.
func containsPattern(v string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(v)) + "%"
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Package enterprise registers tenants and serves their profile.
package enterprise

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

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

var (
	ErrEnterpriseNotFound = errors.New("enterprise not found")
	ErrAdminRoleMissing   = errors.New("default administrator role is not seeded")
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
	EnterpriseName string
	FirstName      string
	LastName       string
	Email          string
	Password       string
}

func (in RegisterInput) validate() map[string]string {
	errs := make(map[string]string)

	if validation.SanitizeString(in.EnterpriseName) == "" {
		errs["enterprise_name"] = "The enterprise name field is required."
	} else if !validation.Length(in.EnterpriseName, 2, 255) {
		errs["enterprise_name"] = "The enterprise name must be between 2 and 255 characters."
	}
	if validation.SanitizeString(in.FirstName) == "" {
		errs["first_name"] = "The first name field is required."
	} else if !validation.Length(in.FirstName, 1, 255) {
		errs["first_name"] = "The first name may not be greater than 255 characters."
	}
	if validation.SanitizeString(in.LastName) == "" {
		errs["last_name"] = "The last name field is required."
	} else if !validation.Length(in.LastName, 1, 255) {
		errs["last_name"] = "The last name may not be greater than 255 characters."
	}
	if strings.TrimSpace(in.Email) == "" {
		errs["email"] = "The email field is required."
	} else if !validation.IsValidEmail(strings.TrimSpace(in.Email)) {
		errs["email"] = "The email must be a valid email address."
	}
	if in.Password == "" {
		errs["password"] = "The password field is required."
	} else if ok, msg := validation.IsValidPassword(in.Password); !ok {
		errs["password"] = msg
	}

	return errs
}

type Registration struct {
	Enterprise *models.Enterprise
	User       *models.User
	Modules    []models.EnterpriseModule
}

// Register creates the tenant, its owner and its module attachments in one
// transaction.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*Registration, error) {
	if errs := input.validate(); len(errs) > 0 {
		return nil, apperr.Validation(errs)
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("checking email: %w", err)
	}
	if existing > 0 {
		return nil, apperr.Invalid("email", "The email has already been taken.")
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	var reg Registration
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		key, err := UniqueKey(ctx, tx, input.EnterpriseName)
		if err != nil {
			return err
		}

		ent := models.Enterprise{
			Name:   validation.SanitizeString(input.EnterpriseName),
			Key:    key,
			Status: true,
		}
		if err := tx.Create(&ent).Error; err != nil {
			return fmt.Errorf("creating enterprise: %w", err)
		}

		var admin models.Role
		if err := tx.Where("owner_kind = ? AND name = ?", models.RoleOwnerSystem, database.AdminRoleName).
			First(&admin).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAdminRoleMissing
			}
			return fmt.Errorf("loading admin role: %w", err)
		}

		joined := s.today()
		user := models.User{
			FirstName:    validation.SanitizeString(input.FirstName),
			LastName:     validation.SanitizeString(input.LastName),
			Email:        email,
			PasswordHash: hash,
			Status:       true,
			JoinedAt:     &joined,
			EnterpriseID: ent.ID,
			RoleID:       admin.ID,
		}
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("creating owner: %w", err)
		}

		ent.OwnerID = &user.ID
		if err := tx.Model(&ent).Update("owner_id", user.ID).Error; err != nil {
			return fmt.Errorf("setting owner: %w", err)
		}

		modules, err := s.tracker.WithTx(tx).AssignModules(ctx, ent.ID)
		if err != nil {
			return err
		}

		user.Role = &admin
		user.Enterprise = &ent
		reg = Registration{Enterprise: &ent, User: &user, Modules: modules}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.EnterprisesRegistered.Inc()
	s.logger.Info("enterprise registered",
		"enterprise_id", reg.Enterprise.ID,
		"owner_id", reg.User.ID,
		"modules", len(reg.Modules),
	)
	events.Emit(ctx, s.publisher, s.logger, events.SubjectEnterpriseRegistered, events.Event{
		EnterpriseID: reg.Enterprise.ID.String(),
		SubjectID:    reg.User.ID.String(),
		Data: map[string]interface{}{
			"name":  reg.Enterprise.Name,
			"email": reg.User.Email,
		},
	})

	return &reg, nil
}

func (s *Service) today() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// FindByKey resolves the tenant named by an Enterprise-Key header.
func (s *Service) FindByKey(ctx context.Context, key string) (*models.Enterprise, error) {
	var ent models.Enterprise
	if err := s.db.WithContext(ctx).Where(map[string]interface{}{"key": key}).First(&ent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEnterpriseNotFound
		}
		return nil, fmt.Errorf("resolving enterprise key: %w", err)
	}
	return &ent, nil
}

type Snapshot struct {
	Enterprise   *models.Enterprise
	Owner        *models.User
	Modules      []entitlement.ModuleStatus
	UsersCount   int64
	Subscription *models.EnterpriseSubscription
}

// HasActiveSubscription reports whether a current subscription was found.
func (s *Snapshot) HasActiveSubscription() bool {
	return s.Subscription != nil
}

func (s *Service) Snapshot(ctx context.Context, enterpriseID uuid.UUID) (*Snapshot, error) {
	db := s.db.WithContext(ctx)

	var ent models.Enterprise
	if err := db.First(&ent, "id = ?", enterpriseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEnterpriseNotFound
		}
		return nil, fmt.Errorf("loading enterprise: %w", err)
	}

	snap := &Snapshot{Enterprise: &ent}

	if ent.OwnerID != nil {
		var owner models.User
		err := db.Preload("Role").First(&owner, "id = ?", *ent.OwnerID).Error
		if err == nil {
			snap.Owner = &owner
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("loading owner: %w", err)
		}
	}

	modules, err := s.tracker.Modules(ctx, enterpriseID)
	if err != nil {
		return nil, err
	}
	snap.Modules = modules

	if err := db.Model(&models.User{}).Where("enterprise_id = ?", enterpriseID).Count(&snap.UsersCount).Error; err != nil {
		return nil, fmt.Errorf("counting users: %w", err)
	}

	var subs []models.EnterpriseSubscription
	if err := db.Where("enterprise_id = ?", enterpriseID).Order("starts_at DESC").Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("loading subscriptions: %w", err)
	}
	now := s.now()
	for i := range subs {
		if subs[i].IsActive(now) {
			snap.Subscription = &subs[i]
			break
		}
	}

	return snap, nil
}

// Rename changes the display name. The key is never reissued.
func (s *Service) Rename(ctx context.Context, enterpriseID uuid.UUID, name string) (*models.Enterprise, error) {
	name = validation.SanitizeString(name)
	if name == "" {
		return nil, apperr.Invalid("name", "The name field is required.")
	}
	if !validation.Length(name, 2, 255) {
		return nil, apperr.Invalid("name", "The name must be between 2 and 255 characters.")
	}

	res := s.db.WithContext(ctx).Model(&models.Enterprise{}).Where("id = ?", enterpriseID).Update("name", name)
	if res.Error != nil {
		return nil, fmt.Errorf("renaming enterprise: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrEnterpriseNotFound
	}

	var ent models.Enterprise
	if err := s.db.WithContext(ctx).First(&ent, "id = ?", enterpriseID).Error; err != nil {
		return nil, fmt.Errorf("reloading enterprise: %w", err)
	}

	events.Emit(ctx, s.publisher, s.logger, events.SubjectEnterpriseUpdated, events.Event{
		EnterpriseID: ent.ID.String(),
		Data:         map[string]interface{}{"name": ent.Name},
	})
	return &ent, nil
}

// PurchaseModule records a purchase and activates the module.
func (s *Service) PurchaseModule(ctx context.Context, enterpriseID uuid.UUID, moduleKey string) (*models.EnterprisePurchasedModule, error) {
	purchase, err := s.tracker.RecordPurchase(ctx, enterpriseID, moduleKey)
	if err != nil {
		return nil, err
	}

	s.logger.Info("module purchased",
		"enterprise_id", enterpriseID,
		"module", moduleKey,
		"amount", purchase.PurchasedAmount.StringFixed(2),
	)
	events.Emit(ctx, s.publisher, s.logger, events.SubjectModulePurchased, events.Event{
		EnterpriseID: enterpriseID.String(),
		SubjectID:    moduleKey,
		Data:         map[string]interface{}{"amount": purchase.PurchasedAmount.StringFixed(2)},
	})
	return purchase, nil
}

// Package roles manages tenant roles and their authority grants.
package roles

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hugh/orchestra/internal/api/validation"
	"github.com/hugh/orchestra/internal/apperr"
	"github.com/hugh/orchestra/internal/authority"
	"github.com/hugh/orchestra/internal/database"
	"github.com/hugh/orchestra/internal/database/models"
	"github.com/hugh/orchestra/internal/entitlement"
	"github.com/hugh/orchestra/internal/events"
	"github.com/hugh/orchestra/internal/metrics"
	"gorm.io/gorm"
)

// ModuleKey is the catalog module that gates role limits.
const ModuleKey = "roles"

const ErrColorNotAvailable = "The selected color is not available in your subscription plan."

type Service struct {
	db        *gorm.DB
	tracker   *entitlement.Tracker
	publisher events.Publisher
	logger    *slog.Logger
}

func NewService(db *gorm.DB, tracker *entitlement.Tracker, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{db: db, tracker: tracker, publisher: publisher, logger: logger}
}

type CreateRoleInput struct {
	Name     string
	ColorHex string
	// Authority is the client grant map; nil means no grants.
	Authority map[string]interface{}
}

// CreateRole validates the input, enforces the free-tier role cap and colour
// palette when the roles module is not purchased, and stores the role with
// its authority merged against the permission schema.
func (s *Service) CreateRole(ctx context.Context, enterpriseID uuid.UUID, in CreateRoleInput) (*models.Role, error) {
	purchased, err := s.tracker.IsPurchased(ctx, enterpriseID, ModuleKey)
	if err != nil {
		return nil, err
	}

	name := validation.SanitizeString(in.Name)
	color := strings.TrimSpace(in.ColorHex)
	errs := make(map[string]string)

	switch {
	case name == "":
		errs["name"] = "The name field is required."
	case utf8.RuneCountInString(name) > 255:
		errs["name"] = "The name may not be greater than 255 characters."
	default:
		var taken int64
		if err := s.db.WithContext(ctx).Model(&models.Role{}).
			Scopes(models.RolesOwnedBy(enterpriseID)).
			Where("name = ?", name).
			Count(&taken).Error; err != nil {
			return nil, fmt.Errorf("checking role name: %w", err)
		}
		if taken > 0 {
			errs["name"] = "The name has already been taken."
		}
	}

	switch {
	case color == "":
		errs["color_hex"] = "The color hex field is required."
	case !validation.IsValidHexColor(color):
		errs["color_hex"] = "The color hex format is invalid."
	case !purchased:
		palette, limited, err := s.tracker.StringsLimit(ctx, enterpriseID, ModuleKey, entitlement.LimitAvailableColors)
		if err != nil {
			return nil, err
		}
		if limited && !containsFold(palette, color) {
			errs["color_hex"] = ErrColorNotAvailable
		}
	}

	if len(errs) > 0 {
		return nil, apperr.Validation(errs)
	}

	role := models.NewRole(models.EnterpriseOwner(enterpriseID), name, color, authority.FromRaw(in.Authority))

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := database.LockEnterprise(tx, enterpriseID); err != nil {
			return err
		}
		if !purchased {
			if err := s.checkRoleLimit(ctx, tx, enterpriseID); err != nil {
				return err
			}
		}
		return tx.Create(role).Error
	})
	if err != nil {
		if apperr.IsLimitExceeded(err) || apperr.IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("creating role: %w", err)
	}

	s.logger.Info("role created", "enterprise_id", enterpriseID, "role_id", role.ID, "name", role.Name)
	events.Emit(ctx, s.publisher, s.logger, events.SubjectRoleCreated, events.Event{
		EnterpriseID: enterpriseID.String(),
		SubjectID:    role.ID.String(),
		Data:         map[string]interface{}{"name": role.Name},
	})

	return role, nil
}

func (s *Service) checkRoleLimit(ctx context.Context, tx *gorm.DB, enterpriseID uuid.UUID) error {
	limit, ok, err := s.tracker.WithTx(tx).IntLimit(ctx, enterpriseID, ModuleKey, entitlement.LimitMaxRoles)
	if err != nil || !ok {
		return err
	}

	var count int64
	if err := tx.Model(&models.Role{}).Scopes(models.RolesOwnedBy(enterpriseID)).Count(&count).Error; err != nil {
		return fmt.Errorf("counting roles: %w", err)
	}
	if count >= int64(limit) {
		metrics.LimitExceeded.WithLabelValues(ModuleKey).Inc()
		s.logger.Warn("role limit reached", "enterprise_id", enterpriseID, "count", count, "limit", limit)
		return apperr.NewRoleLimitExceeded(count, limit)
	}
	return nil
}

// ListRoles returns the tenant's roles followed by the system templates.
func (s *Service) ListRoles(ctx context.Context, enterpriseID uuid.UUID) ([]models.Role, error) {
	var out []models.Role
	if err := s.db.WithContext(ctx).
		Scopes(models.RolesAvailableTo(enterpriseID)).
		Order("owner_kind ASC, name ASC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}
	return out, nil
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}

package database

import (
	"errors"
	"fmt"

	"github.com/hugh/orchestra/internal/authority"
	"github.com/hugh/orchestra/internal/database/models"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	AdminRoleName  = "administrateur"
	MemberRoleName = "membre"
)

type catalogEntry struct {
	Key         string
	Name        string
	Description string
	IsCore      bool
	Price       string
	Limits      map[string]interface{}
}

var catalog = []catalogEntry{
	{
		Key:         "enterprise",
		Name:        "Enterprise",
		Description: "Enterprise profile, modules and subscription",
		IsCore:      true,
	},
	{
		Key:         "personnel",
		Name:        "Personnel",
		Description: "Staff directory and onboarding",
		IsCore:      true,
		Price:       "149.99",
		Limits:      map[string]interface{}{"maxUsers": 30},
	},
	{
		Key:         "roles",
		Name:        "Roles",
		Description: "Custom roles and permission grants",
		IsCore:      true,
		Price:       "99.99",
		Limits: map[string]interface{}{
			"maxRoles":        5,
			"availableColors": []interface{}{"#FF0000", "#00FF00", "#0000FF"},
		},
	},
	{
		Key:         "events",
		Name:        "Events",
		Description: "Events, participants and rooms",
		Price:       "200.00",
	},
	{
		Key:         "absences",
		Name:        "Absences",
		Description: "Leave requests and approvals",
		Price:       "174.99",
	},
}

// SeedCatalog creates the module catalog and the system role templates. It
// is safe to run repeatedly.
func SeedCatalog(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for _, entry := range catalog {
			if err := seedModule(tx, entry); err != nil {
				return err
			}
		}

		member := authority.FromRaw(map[string]interface{}{
			"events":   map[string]interface{}{"read": true},
			"absences": map[string]interface{}{"read": true, "create": true},
			"tasks":    map[string]interface{}{"read": true, "create": true},
		})
		if err := seedSystemRole(tx, AdminRoleName, "#67e8f9", authority.FromMatrix(authority.Full())); err != nil {
			return err
		}
		return seedSystemRole(tx, MemberRoleName, "#9ca3af", member)
	})
}

func seedModule(tx *gorm.DB, entry catalogEntry) error {
	var module models.Module
	err := tx.Where(map[string]interface{}{"key": entry.Key}).First(&module).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("loading module %s: %w", entry.Key, err)
	}

	module.Key = entry.Key
	module.Name = entry.Name
	module.Description = entry.Description
	module.IsCore = entry.IsCore
	module.PurchasePrice = decimal.NullDecimal{}
	if entry.Price != "" {
		module.PurchasePrice = decimal.NewNullDecimal(decimal.RequireFromString(entry.Price))
	}
	if err := tx.Save(&module).Error; err != nil {
		return fmt.Errorf("saving module %s: %w", entry.Key, err)
	}

	if entry.Limits == nil {
		return nil
	}

	var limit models.ModuleLimit
	err = tx.Where("module_id = ?", module.ID).First(&limit).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("loading limits for %s: %w", entry.Key, err)
	}
	limit.ModuleID = module.ID
	limit.FreeLimit = datatypes.JSONMap(entry.Limits)
	if err := tx.Save(&limit).Error; err != nil {
		return fmt.Errorf("saving limits for %s: %w", entry.Key, err)
	}
	return nil
}

func seedSystemRole(tx *gorm.DB, name, color string, auth authority.Authority) error {
	var existing models.Role
	err := tx.Where("owner_kind = ? AND name = ?", models.RoleOwnerSystem, name).First(&existing).Error
	if err == nil {
		existing.ColorHex = color
		existing.Authority = auth
		return tx.Save(&existing).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("loading role %s: %w", name, err)
	}
	return tx.Create(models.NewRole(models.SystemOwner(), name, color, auth)).Error
}

// Package entitlement answers which modules a tenant has activated or
// purchased and what free-tier limits apply to it.
package entitlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/orchestra/internal/apperr"
	"github.com/hugh/orchestra/internal/database/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Limit names read by the registries.
const (
	LimitMaxUsers        = "maxUsers"
	LimitMaxRoles        = "maxRoles"
	LimitAvailableColors = "availableColors"
)

type Tracker struct {
	db  *gorm.DB
	now func() time.Time
}

func NewTracker(db *gorm.DB) *Tracker {
	return &Tracker{db: db, now: time.Now}
}

// WithTx returns a tracker whose queries run inside tx.
func (t *Tracker) WithTx(tx *gorm.DB) *Tracker {
	return &Tracker{db: tx, now: t.now}
}

// ModuleStatus describes one catalog module from a tenant's point of view.
type ModuleStatus struct {
	Key           string                 `json:"key"`
	Name          string                 `json:"name"`
	Description   string                 `json:"description"`
	IsCore        bool                   `json:"is_core"`
	IsActivated   bool                   `json:"is_activated"`
	IsPurchased   bool                   `json:"is_purchased"`
	PurchasePrice decimal.NullDecimal    `json:"purchase_price"`
	Limits        map[string]interface{} `json:"limits,omitempty"`
}

func (t *Tracker) IsPurchased(ctx context.Context, enterpriseID uuid.UUID, moduleKey string) (bool, error) {
	var count int64
	err := t.db.WithContext(ctx).
		Model(&models.EnterprisePurchasedModule{}).
		Joins("JOIN modules ON modules.id = enterprise_purchased_modules.module_id").
		Where("enterprise_purchased_modules.enterprise_id = ? AND modules.key = ?", enterpriseID, moduleKey).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking purchase of %s: %w", moduleKey, err)
	}
	return count > 0, nil
}

// LimitOf looks up limitName in the free-tier bag of a module attached to the
// tenant. ok is false when the module is not attached, has no limits record,
// or the bag lacks the key; callers treat that as unlimited.
func (t *Tracker) LimitOf(ctx context.Context, enterpriseID uuid.UUID, moduleKey, limitName string) (interface{}, bool, error) {
	var limit models.ModuleLimit
	err := t.db.WithContext(ctx).
		Model(&models.ModuleLimit{}).
		Joins("JOIN modules ON modules.id = module_limits.module_id").
		Joins("JOIN enterprise_modules ON enterprise_modules.module_id = modules.id").
		Where("enterprise_modules.enterprise_id = ? AND modules.key = ?", enterpriseID, moduleKey).
		First(&limit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("loading limits of %s: %w", moduleKey, err)
	}

	v, ok := limit.FreeLimit[limitName]
	if !ok || v == nil {
		return nil, false, nil
	}
	return v, true, nil
}

// IntLimit reads a numeric limit. Non-positive or non-numeric values count as
// no limit.
func (t *Tracker) IntLimit(ctx context.Context, enterpriseID uuid.UUID, moduleKey, limitName string) (int, bool, error) {
	v, ok, err := t.LimitOf(ctx, enterpriseID, moduleKey, limitName)
	if err != nil || !ok {
		return 0, false, err
	}
	n, ok := toInt(v)
	if !ok || n <= 0 {
		return 0, false, nil
	}
	return n, true, nil
}

// StringsLimit reads a list limit. An empty list counts as no limit.
func (t *Tracker) StringsLimit(ctx context.Context, enterpriseID uuid.UUID, moduleKey, limitName string) ([]string, bool, error) {
	v, ok, err := t.LimitOf(ctx, enterpriseID, moduleKey, limitName)
	if err != nil || !ok {
		return nil, false, err
	}
	var out []string
	switch list := v.(type) {
	case []interface{}:
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	case []string:
		out = append(out, list...)
	}
	if len(out) == 0 {
		return nil, false, nil
	}
	return out, true, nil
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}

// AssignModules attaches every catalog module to a new tenant. Core modules
// start activated, the rest inactive.
func (t *Tracker) AssignModules(ctx context.Context, enterpriseID uuid.UUID) ([]models.EnterpriseModule, error) {
	var catalog []models.Module
	if err := t.db.WithContext(ctx).Order("name").Find(&catalog).Error; err != nil {
		return nil, fmt.Errorf("loading module catalog: %w", err)
	}

	attached := make([]models.EnterpriseModule, 0, len(catalog))
	for i := range catalog {
		em := models.EnterpriseModule{
			EnterpriseID: enterpriseID,
			ModuleID:     catalog[i].ID,
			IsActivated:  catalog[i].IsCore,
		}
		if err := t.db.WithContext(ctx).Create(&em).Error; err != nil {
			return nil, fmt.Errorf("attaching module %s: %w", catalog[i].Key, err)
		}
		em.Module = &catalog[i]
		attached = append(attached, em)
	}
	return attached, nil
}

// RecordPurchase stores a purchase at the catalog price and activates the
// module for the tenant.
func (t *Tracker) RecordPurchase(ctx context.Context, enterpriseID uuid.UUID, moduleKey string) (*models.EnterprisePurchasedModule, error) {
	var module models.Module
	err := t.db.WithContext(ctx).Where(map[string]interface{}{"key": moduleKey}).First(&module).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Module not found")
		}
		return nil, fmt.Errorf("loading module %s: %w", moduleKey, err)
	}

	var purchase models.EnterprisePurchasedModule
	err = t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.EnterprisePurchasedModule{}).
			Where("enterprise_id = ? AND module_id = ?", enterpriseID, module.ID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperr.Conflict("Module already purchased")
		}

		purchase = models.EnterprisePurchasedModule{
			EnterpriseID:    enterpriseID,
			ModuleID:        module.ID,
			PurchasedAmount: module.PurchasePrice.Decimal,
			PurchasedAt:     t.now().UTC(),
		}
		if err := tx.Create(&purchase).Error; err != nil {
			return err
		}

		var em models.EnterpriseModule
		err := tx.Where("enterprise_id = ? AND module_id = ?", enterpriseID, module.ID).First(&em).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&models.EnterpriseModule{
				EnterpriseID: enterpriseID,
				ModuleID:     module.ID,
				IsActivated:  true,
			}).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&em).Update("is_activated", true).Error
	})
	if err != nil {
		if apperr.IsConflict(err) {
			return nil, err
		}
		return nil, fmt.Errorf("recording purchase of %s: %w", moduleKey, err)
	}

	purchase.Module = &module
	return &purchase, nil
}

// Modules lists the tenant's attached modules with purchase state and
// free-tier limits, ordered by key.
func (t *Tracker) Modules(ctx context.Context, enterpriseID uuid.UUID) ([]ModuleStatus, error) {
	var attached []models.EnterpriseModule
	if err := t.db.WithContext(ctx).
		Preload("Module.Limit").
		Where("enterprise_id = ?", enterpriseID).
		Find(&attached).Error; err != nil {
		return nil, fmt.Errorf("loading enterprise modules: %w", err)
	}

	var purchased []uuid.UUID
	if err := t.db.WithContext(ctx).
		Model(&models.EnterprisePurchasedModule{}).
		Where("enterprise_id = ?", enterpriseID).
		Pluck("module_id", &purchased).Error; err != nil {
		return nil, fmt.Errorf("loading purchased modules: %w", err)
	}
	bought := make(map[uuid.UUID]bool, len(purchased))
	for _, id := range purchased {
		bought[id] = true
	}

	out := make([]ModuleStatus, 0, len(attached))
	for _, em := range attached {
		if em.Module == nil {
			continue
		}
		status := ModuleStatus{
			Key:           em.Module.Key,
			Name:          em.Module.Name,
			Description:   em.Module.Description,
			IsCore:        em.Module.IsCore,
			IsActivated:   em.IsActivated,
			IsPurchased:   bought[em.ModuleID],
			PurchasePrice: em.Module.PurchasePrice,
		}
		if em.Module.Limit != nil && len(em.Module.Limit.FreeLimit) > 0 {
			status.Limits = map[string]interface{}(em.Module.Limit.FreeLimit)
		}
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Module is a catalog entry. Core modules are activated for every tenant at
// registration; the rest stay inactive until purchased.
type Module struct {
	Base
	Key           string              `gorm:"size:64;uniqueIndex;not null" json:"key"`
	Name          string              `gorm:"size:255;not null" json:"name"`
	Description   string              `json:"description"`
	IsCore        bool                `gorm:"not null" json:"is_core"`
	PurchasePrice decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"purchase_price"`

	Limit *ModuleLimit `gorm:"foreignKey:ModuleID" json:"limits,omitempty"`
}

func (Module) TableName() string {
	return "modules"
}

// ModuleLimit is the free-tier bag of a module, e.g. maxUsers or
// availableColors. A missing key means unlimited.
type ModuleLimit struct {
	Base
	ModuleID  uuid.UUID         `gorm:"type:uuid;uniqueIndex;not null" json:"-"`
	FreeLimit datatypes.JSONMap `json:"free_limit"`
}

func (ModuleLimit) TableName() string {
	return "module_limits"
}

// EnterpriseModule attaches a catalog module to a tenant.
type EnterpriseModule struct {
	Base
	EnterpriseID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_enterprise_module;not null" json:"-"`
	ModuleID     uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_enterprise_module;not null" json:"-"`
	IsActivated  bool      `gorm:"not null" json:"is_activated"`

	Module *Module `gorm:"foreignKey:ModuleID" json:"module,omitempty"`
}

func (EnterpriseModule) TableName() string {
	return "enterprise_modules"
}

// EnterprisePurchasedModule records a paid module. It is independent of the
// activation flag on EnterpriseModule.
type EnterprisePurchasedModule struct {
	Base
	EnterpriseID    uuid.UUID       `gorm:"type:uuid;uniqueIndex:idx_enterprise_purchase;not null" json:"-"`
	ModuleID        uuid.UUID       `gorm:"type:uuid;uniqueIndex:idx_enterprise_purchase;not null" json:"-"`
	PurchasedAmount decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"purchased_amount"`
	PurchasedAt     time.Time       `gorm:"not null" json:"purchased_at"`

	Module *Module `gorm:"foreignKey:ModuleID" json:"module,omitempty"`
}

func (EnterprisePurchasedModule) TableName() string {
	return "enterprise_purchased_modules"
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Enterprise is a tenant. Its key is issued once at registration and is the
// value clients send in the Enterprise-Key header.
type Enterprise struct {
	Base
	Name    string     `gorm:"size:255;not null" json:"name"`
	Key     string     `gorm:"size:16;uniqueIndex;not null" json:"key"`
	Status  bool       `gorm:"not null" json:"status"`
	OwnerID *uuid.UUID `gorm:"type:uuid" json:"owner_uuid,omitempty"`

	// Relationships
	Users            []User                      `gorm:"foreignKey:EnterpriseID" json:"-"`
	Roles            []Role                      `gorm:"foreignKey:EnterpriseID" json:"-"`
	Modules          []EnterpriseModule          `gorm:"foreignKey:EnterpriseID" json:"-"`
	PurchasedModules []EnterprisePurchasedModule `gorm:"foreignKey:EnterpriseID" json:"-"`
	Subscriptions    []EnterpriseSubscription    `gorm:"foreignKey:EnterpriseID" json:"-"`
}

func (Enterprise) TableName() string {
	return "enterprises"
}

// IsOwnedBy reports whether userID is the registered owner.
func (e *Enterprise) IsOwnedBy(userID uuid.UUID) bool {
	return e.OwnerID != nil && *e.OwnerID == userID
}

type EnterpriseSubscription struct {
	Base
	EnterpriseID  uuid.UUID       `gorm:"type:uuid;index;not null" json:"-"`
	MonthlyAmount decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"monthly_amount"`
	StartsAt      time.Time       `gorm:"not null" json:"starts_at"`
	ExpiresAt     *time.Time      `json:"expires_at"`
}

func (EnterpriseSubscription) TableName() string {
	return "enterprise_subscriptions"
}

// IsActive: open ended or expiring after now.
func (s *EnterpriseSubscription) IsActive(now time.Time) bool {
	return s.ExpiresAt == nil || s.ExpiresAt.After(now)
}

package models

import (
	"github.com/google/uuid"
	"github.com/hugh/orchestra/internal/authority"
	"gorm.io/gorm"
)

type RoleOwnerKind string

const (
	RoleOwnerEnterprise RoleOwnerKind = "enterprise"
	RoleOwnerSystem     RoleOwnerKind = "system"
)

// RoleOwner is either a tenant or the system, which owns the default
// templates offered to every tenant.
type RoleOwner struct {
	Kind         RoleOwnerKind
	EnterpriseID uuid.UUID
}

func EnterpriseOwner(id uuid.UUID) RoleOwner {
	return RoleOwner{Kind: RoleOwnerEnterprise, EnterpriseID: id}
}

func SystemOwner() RoleOwner {
	return RoleOwner{Kind: RoleOwnerSystem}
}

func (o RoleOwner) IsSystem() bool {
	return o.Kind == RoleOwnerSystem
}

type Role struct {
	Base
	Name         string              `gorm:"size:255;not null;uniqueIndex:idx_role_owner_name" json:"name"`
	ColorHex     string              `gorm:"size:7;not null" json:"color_hex"`
	Authority    authority.Authority `json:"authority"`
	OwnerKind    RoleOwnerKind       `gorm:"size:16;not null;index" json:"-"`
	EnterpriseID *uuid.UUID          `gorm:"type:uuid;index;uniqueIndex:idx_role_owner_name" json:"-"`
}

func (Role) TableName() string {
	return "roles"
}

// NewRole builds a role row for owner. The owner fields are only ever set
// here so the kind and the foreign key cannot disagree.
func NewRole(owner RoleOwner, name, colorHex string, auth authority.Authority) *Role {
	r := &Role{
		Name:      name,
		ColorHex:  colorHex,
		Authority: auth,
		OwnerKind: owner.Kind,
	}
	if !owner.IsSystem() {
		id := owner.EnterpriseID
		r.EnterpriseID = &id
	}
	return r
}

func (r *Role) Owner() RoleOwner {
	if r.OwnerKind == RoleOwnerSystem || r.EnterpriseID == nil {
		return SystemOwner()
	}
	return EnterpriseOwner(*r.EnterpriseID)
}

// AvailableTo reports whether users of enterpriseID may be assigned r.
func (r *Role) AvailableTo(enterpriseID uuid.UUID) bool {
	o := r.Owner()
	return o.IsSystem() || o.EnterpriseID == enterpriseID
}

// RolesOwnedBy scopes a query to the tenant's own roles.
func RolesOwnedBy(enterpriseID uuid.UUID) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("owner_kind = ? AND enterprise_id = ?", RoleOwnerEnterprise, enterpriseID)
	}
}

// RolesAvailableTo scopes a query to the tenant's roles plus the system
// templates.
func RolesAvailableTo(enterpriseID uuid.UUID) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("(owner_kind = ? AND enterprise_id = ?) OR owner_kind = ?",
			RoleOwnerEnterprise, enterpriseID, RoleOwnerSystem)
	}
}

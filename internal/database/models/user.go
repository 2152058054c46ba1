package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	Base
	FirstName    string     `gorm:"size:255;not null" json:"first_name"`
	LastName     string     `gorm:"size:255;not null" json:"last_name"`
	Email        string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"not null" json:"-"`
	Status       bool       `gorm:"not null" json:"status"`
	LeaveDays    int        `gorm:"not null;default:0" json:"leave_days"`
	JoinedAt     *time.Time `json:"joined_at"`
	EnterpriseID uuid.UUID  `gorm:"type:uuid;index;not null" json:"-"`
	RoleID       uuid.UUID  `gorm:"type:uuid;index;not null" json:"-"`

	// Relationships
	Enterprise *Enterprise `gorm:"foreignKey:EnterpriseID" json:"enterprise,omitempty"`
	Role       *Role       `gorm:"foreignKey:RoleID" json:"role,omitempty"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

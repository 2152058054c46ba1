package dto

import (
	"github.com/hugh/orchestra/internal/api/validation"
	"github.com/hugh/orchestra/internal/database/models"
)

type CreatePersonnelRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	RoleUUID  string `json:"role_uuid"`
	JoinedAt  string `json:"joined_at"`
}

type UpdatePersonnelRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Email     *string `json:"email"`
	RoleUUID  *string `json:"role_uuid"`
	Status    *bool   `json:"status"`
	LeaveDays *int    `json:"leave_days"`
}

type RoleBadge struct {
	Name     string `json:"name"`
	ColorHex string `json:"color_hex"`
}

// PersonnelView is the tenant-facing projection of a user.
type PersonnelView struct {
	UUID      string     `json:"uuid"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Email     string     `json:"email"`
	Status    bool       `json:"status"`
	LeaveDays int        `json:"leave_days"`
	JoinedAt  string     `json:"joined_at,omitempty"`
	Role      *RoleBadge `json:"role"`
}

func NewPersonnelView(u *models.User) PersonnelView {
	v := PersonnelView{
		UUID:      u.ID.String(),
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Status:    u.Status,
		LeaveDays: u.LeaveDays,
	}
	if u.JoinedAt != nil {
		v.JoinedAt = u.JoinedAt.Format(validation.DateLayout)
	}
	if u.Role != nil {
		v.Role = &RoleBadge{Name: u.Role.Name, ColorHex: u.Role.ColorHex}
	}
	return v
}

type PersonnelResponse struct {
	Message string        `json:"message"`
	User    PersonnelView `json:"user"`
}

type PersonnelListResponse struct {
	TotalUsers     int             `json:"total_users"`
	FiltersApplied []string        `json:"filters_applied"`
	Users          []PersonnelView `json:"users"`
}

package dto

import (
	"strings"

	"github.com/hugh/orchestra/internal/api/validation"
	"github.com/hugh/orchestra/internal/authority"
	"github.com/hugh/orchestra/internal/database/models"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.Email) == "" {
		errors["email"] = "The email field is required."
	} else if !validation.IsValidEmail(strings.TrimSpace(r.Email)) {
		errors["email"] = "The email must be a valid email address."
	}
	if r.Password == "" {
		errors["password"] = "The password field is required."
	}

	return errors
}

type RoleGrants struct {
	Name      string              `json:"name"`
	Authority authority.Authority `json:"authority"`
}

type EnterpriseRef struct {
	Name string `json:"name"`
	Key  string `json:"key,omitempty"`
}

type LoginUser struct {
	UUID      string      `json:"uuid"`
	Email     string      `json:"email"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Role      *RoleGrants `json:"role"`
}

type LoginResponse struct {
	Token      string         `json:"token"`
	User       LoginUser      `json:"user"`
	Enterprise *EnterpriseRef `json:"enterprise"`
}

func NewLoginResponse(token string, u *models.User) LoginResponse {
	resp := LoginResponse{
		Token: token,
		User: LoginUser{
			UUID:      u.ID.String(),
			Email:     u.Email,
			FirstName: u.FirstName,
			LastName:  u.LastName,
		},
	}
	if u.Role != nil {
		resp.User.Role = &RoleGrants{Name: u.Role.Name, Authority: u.Role.Authority}
	}
	if u.Enterprise != nil {
		resp.Enterprise = &EnterpriseRef{Name: u.Enterprise.Name, Key: u.Enterprise.Key}
	}
	return resp
}

type MeUser struct {
	UUID       string         `json:"uuid"`
	FirstName  string         `json:"first_name"`
	LastName   string         `json:"last_name"`
	Email      string         `json:"email"`
	Role       *RoleGrants    `json:"role"`
	Enterprise *EnterpriseRef `json:"enterprise"`
}

type MeResponse struct {
	User MeUser `json:"user"`
}

func NewMeResponse(u *models.User) MeResponse {
	me := MeUser{
		UUID:      u.ID.String(),
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
	}
	if u.Role != nil {
		me.Role = &RoleGrants{Name: u.Role.Name, Authority: u.Role.Authority}
	}
	if u.Enterprise != nil {
		me.Enterprise = &EnterpriseRef{Name: u.Enterprise.Name}
	}
	return MeResponse{User: me}
}

// UpdateProfileRequest uses pointers so absent fields stay untouched.
type UpdateProfileRequest struct {
	FirstName            *string `json:"first_name"`
	LastName             *string `json:"last_name"`
	Email                *string `json:"email"`
	Password             *string `json:"password"`
	PasswordConfirmation *string `json:"password_confirmation"`
}

func (r UpdateProfileRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.FirstName != nil && !validation.Length(*r.FirstName, 1, 255) {
		errors["first_name"] = "The first name must be between 1 and 255 characters."
	}
	if r.LastName != nil && !validation.Length(*r.LastName, 1, 255) {
		errors["last_name"] = "The last name must be between 1 and 255 characters."
	}
	if r.Email != nil && !validation.IsValidEmail(strings.TrimSpace(*r.Email)) {
		errors["email"] = "The email must be a valid email address."
	}
	if r.Password != nil && len(*r.Password) < 8 {
		errors["password"] = "The password must be at least 8 characters."
	}

	return errors
}

type ProfileResponse struct {
	Message string        `json:"message"`
	User    PersonnelView `json:"user"`
}

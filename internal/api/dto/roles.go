package dto

import (
	"github.com/hugh/orchestra/internal/authority"
	"github.com/hugh/orchestra/internal/database/models"
)

type CreateRoleRequest struct {
	Name     string `json:"name"`
	ColorHex string `json:"color_hex"`
	// Authority must be present. An empty JSON array is read as no grants.
	Authority interface{} `json:"authority"`
}

func (r CreateRoleRequest) Validate() map[string]string {
	errors := make(map[string]string)

	switch a := r.Authority.(type) {
	case nil:
		errors["authority"] = "The authority field must be present."
	case map[string]interface{}:
	case []interface{}:
		if len(a) > 0 {
			errors["authority"] = "The authority must be an object."
		}
	default:
		errors["authority"] = "The authority must be an object."
	}

	return errors
}

// Grants returns the authority object, or nil for an empty array.
func (r CreateRoleRequest) Grants() map[string]interface{} {
	if m, ok := r.Authority.(map[string]interface{}); ok {
		return m
	}
	return nil
}

type RoleView struct {
	UUID      string              `json:"uuid"`
	Name      string              `json:"name"`
	ColorHex  string              `json:"color_hex"`
	Authority authority.Authority `json:"authority"`
	IsSystem  bool                `json:"is_system"`
}

func NewRoleView(r *models.Role) RoleView {
	return RoleView{
		UUID:      r.ID.String(),
		Name:      r.Name,
		ColorHex:  r.ColorHex,
		Authority: r.Authority,
		IsSystem:  r.Owner().IsSystem(),
	}
}

type RoleResponse struct {
	Message string   `json:"message"`
	Role    RoleView `json:"role"`
}

type RoleListResponse struct {
	Roles []RoleView `json:"roles"`
}

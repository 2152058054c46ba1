package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hugh/orchestra/internal/api/dto"
	"github.com/hugh/orchestra/internal/api/middleware"
	"github.com/hugh/orchestra/internal/api/respond"
	"github.com/hugh/orchestra/internal/apperr"
	"github.com/hugh/orchestra/internal/roles"
)

type RoleHandler struct {
	service *roles.Service
	logger  *slog.Logger
}

func NewRoleHandler(service *roles.Service, logger *slog.Logger) *RoleHandler {
	return &RoleHandler{service: service, logger: logger}
}

func (h *RoleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		respond.Error(w, r, h.logger, apperr.Validation(errs))
		return
	}

	role, err := h.service.CreateRole(r.Context(), middleware.GetEnterprise(r.Context()).ID, roles.CreateRoleInput{
		Name:      req.Name,
		ColorHex:  req.ColorHex,
		Authority: req.Grants(),
	})
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	respond.JSON(w, http.StatusCreated, dto.RoleResponse{
		Message: "Role created successfully",
		Role:    dto.NewRoleView(role),
	})
}

func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListRoles(r.Context(), middleware.GetEnterprise(r.Context()).ID)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	views := make([]dto.RoleView, 0, len(list))
	for i := range list {
		views = append(views, dto.NewRoleView(&list[i]))
	}
	respond.JSON(w, http.StatusOK, dto.RoleListResponse{Roles: views})
}

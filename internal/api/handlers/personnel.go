package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/orchestra/internal/api/dto"
	"github.com/hugh/orchestra/internal/api/middleware"
	"github.com/hugh/orchestra/internal/api/respond"
	"github.com/hugh/orchestra/internal/personnel"
)

type PersonnelHandler struct {
	service *personnel.Service
	logger  *slog.Logger
}

func NewPersonnelHandler(service *personnel.Service, logger *slog.Logger) *PersonnelHandler {
	return &PersonnelHandler{service: service, logger: logger}
}

func (h *PersonnelHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreatePersonnelRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.service.Register(r.Context(), middleware.GetEnterprise(r.Context()).ID, personnel.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		RoleID:    req.RoleUUID,
		JoinedAt:  req.JoinedAt,
	})
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	respond.JSON(w, http.StatusCreated, dto.PersonnelResponse{
		Message: "User created successfully",
		User:    dto.NewPersonnelView(user),
	})
}

func (h *PersonnelHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	res, err := h.service.List(r.Context(), middleware.GetEnterprise(r.Context()).ID, personnel.Filters{
		RoleID:        q.Get("role_uuid"),
		Email:         q.Get("email"),
		Name:          q.Get("name"),
		Status:        q.Get("status"),
		SortBy:        q.Get("sort_by"),
		SortDirection: q.Get("sort_direction"),
	})
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	users := make([]dto.PersonnelView, 0, len(res.Users))
	for i := range res.Users {
		users = append(users, dto.NewPersonnelView(&res.Users[i]))
	}
	respond.JSON(w, http.StatusOK, dto.PersonnelListResponse{
		TotalUsers:     res.Total,
		FiltersApplied: res.FiltersApplied,
		Users:          users,
	})
}

func (h *PersonnelHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		respond.Message(w, http.StatusNotFound, "User not found in this enterprise")
		return
	}

	ent := middleware.GetEnterprise(r.Context())
	if err := h.service.Delete(r.Context(), ent.ID, middleware.GetUserID(r.Context()), userID); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	respond.Message(w, http.StatusOK, "User deleted successfully")
}

func (h *PersonnelHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		respond.Message(w, http.StatusNotFound, "User not found in this enterprise")
		return
	}

	var req dto.UpdatePersonnelRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.service.Update(r.Context(), middleware.GetEnterprise(r.Context()).ID, userID, personnel.UpdateInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		RoleID:    req.RoleUUID,
		Status:    req.Status,
		LeaveDays: req.LeaveDays,
	})
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	respond.JSON(w, http.StatusOK, dto.PersonnelResponse{
		Message: "User updated successfully",
		User:    dto.NewPersonnelView(user),
	})
}

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/orchestra/internal/api/dto"
	"github.com/hugh/orchestra/internal/api/middleware"
	"github.com/hugh/orchestra/internal/api/respond"
	"github.com/hugh/orchestra/internal/enterprise"
)

type EnterpriseHandler struct {
	service *enterprise.Service
	logger  *slog.Logger
}

func NewEnterpriseHandler(service *enterprise.Service, logger *slog.Logger) *EnterpriseHandler {
	return &EnterpriseHandler{service: service, logger: logger}
}

func (h *EnterpriseHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterEnterpriseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	reg, err := h.service.Register(r.Context(), enterprise.RegisterInput{
		EnterpriseName: req.EnterpriseName,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		Password:       req.Password,
	})
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	respond.JSON(w, http.StatusCreated, dto.RegistrationResponse{
		Message: "Enterprise registered successfully",
		Data: dto.RegistrationData{
			Enterprise: dto.NewEnterpriseView(reg.Enterprise),
			User:       dto.NewPersonnelView(reg.User),
			Modules:    dto.NewAttachedModules(reg.Modules),
		},
	})
}

func (h *EnterpriseHandler) Show(w http.ResponseWriter, r *http.Request) {
	ent := middleware.GetEnterprise(r.Context())

	snap, err := h.service.Snapshot(r.Context(), ent.ID)
	if err != nil {
		if errors.Is(err, enterprise.ErrEnterpriseNotFound) {
			respond.Message(w, http.StatusNotFound, "Enterprise not found")
			return
		}
		respond.Error(w, r, h.logger, err)
		return
	}

	resp := dto.EnterpriseShowResponse{
		Enterprise: dto.NewEnterpriseView(snap.Enterprise),
		Modules:    snap.Modules,
		UsersCount: snap.UsersCount,
	}
	if snap.Owner != nil {
		owner := dto.NewPersonnelView(snap.Owner)
		resp.Owner = &owner
	}
	if snap.HasActiveSubscription() {
		resp.Subscription = &dto.SubscriptionView{
			MonthlyAmount: snap.Subscription.MonthlyAmount,
			StartsAt:      snap.Subscription.StartsAt,
			ExpiresAt:     snap.Subscription.ExpiresAt,
		}
	}
	respond.JSON(w, http.StatusOK, resp)
}

func (h *EnterpriseHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateEnterpriseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ent, err := h.service.Rename(r.Context(), middleware.GetEnterprise(r.Context()).ID, req.Name)
	if err != nil {
		if errors.Is(err, enterprise.ErrEnterpriseNotFound) {
			respond.Message(w, http.StatusNotFound, "Enterprise not found")
			return
		}
		respond.Error(w, r, h.logger, err)
		return
	}

	respond.JSON(w, http.StatusOK, dto.EnterpriseUpdateResponse{
		Message:    "Enterprise updated successfully",
		Enterprise: dto.NewEnterpriseView(ent),
	})
}

func (h *EnterpriseHandler) PurchaseModule(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	purchase, err := h.service.PurchaseModule(r.Context(), middleware.GetEnterprise(r.Context()).ID, key)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	respond.JSON(w, http.StatusCreated, dto.PurchaseResponse{
		Message:         "Module purchased successfully",
		Module:          key,
		PurchasedAmount: purchase.PurchasedAmount,
		PurchasedAt:     purchase.PurchasedAt,
	})
}

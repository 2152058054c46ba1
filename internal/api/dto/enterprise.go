package dto

import (
	"time"

	"github.com/hugh/orchestra/internal/database/models"
	"github.com/hugh/orchestra/internal/entitlement"
	"github.com/shopspring/decimal"
)

type RegisterEnterpriseRequest struct {
	EnterpriseName string `json:"enterprise_name"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	Password       string `json:"password"`
}

type UpdateEnterpriseRequest struct {
	Name string `json:"name"`
}

type EnterpriseView struct {
	UUID      string    `json:"uuid"`
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	Status    bool      `json:"status"`
	OwnerUUID string    `json:"owner_uuid,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func NewEnterpriseView(e *models.Enterprise) EnterpriseView {
	v := EnterpriseView{
		UUID:      e.ID.String(),
		Name:      e.Name,
		Key:       e.Key,
		Status:    e.Status,
		CreatedAt: e.CreatedAt,
	}
	if e.OwnerID != nil {
		v.OwnerUUID = e.OwnerID.String()
	}
	return v
}

type AttachedModule struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	IsCore      bool   `json:"is_core"`
	IsActivated bool   `json:"is_activated"`
}

type RegistrationData struct {
	Enterprise EnterpriseView   `json:"enterprise"`
	User       PersonnelView    `json:"user"`
	Modules    []AttachedModule `json:"modules"`
}

type RegistrationResponse struct {
	Message string           `json:"message"`
	Data    RegistrationData `json:"data"`
}

func NewAttachedModules(ems []models.EnterpriseModule) []AttachedModule {
	out := make([]AttachedModule, 0, len(ems))
	for _, em := range ems {
		if em.Module == nil {
			continue
		}
		out = append(out, AttachedModule{
			Key:         em.Module.Key,
			Name:        em.Module.Name,
			IsCore:      em.Module.IsCore,
			IsActivated: em.IsActivated,
		})
	}
	return out
}

type SubscriptionView struct {
	MonthlyAmount decimal.Decimal `json:"monthly_amount"`
	StartsAt      time.Time       `json:"starts_at"`
	ExpiresAt     *time.Time      `json:"expires_at"`
}

type EnterpriseShowResponse struct {
	Enterprise   EnterpriseView             `json:"enterprise"`
	Owner        *PersonnelView             `json:"owner"`
	Modules      []entitlement.ModuleStatus `json:"modules"`
	UsersCount   int64                      `json:"users_count"`
	Subscription *SubscriptionView          `json:"subscription"`
}

type EnterpriseUpdateResponse struct {
	Message    string         `json:"message"`
	Enterprise EnterpriseView `json:"enterprise"`
}

type PurchaseResponse struct {
	Message         string          `json:"message"`
	Module          string          `json:"module"`
	PurchasedAmount decimal.Decimal `json:"purchased_amount"`
	PurchasedAt     time.Time       `json:"purchased_at"`
}

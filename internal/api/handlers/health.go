package handlers

import (
	"net/http"

	"github.com/hugh/orchestra/internal/api/respond"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ConnectionChecker reports the state of a long lived broker connection.
type ConnectionChecker interface {
	Connected() bool
}

type HealthHandler struct {
	db    *gorm.DB
	redis *redis.Client
	nats  ConnectionChecker
}

func NewHealthHandler(db *gorm.DB, redis *redis.Client, nats ConnectionChecker) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, nats: nats}
}

type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	services := make(map[string]string)
	status := "healthy"

	// Check database
	sqlDB, err := h.db.DB()
	if err != nil || sqlDB.PingContext(r.Context()) != nil {
		services["database"] = "unhealthy"
		status = "unhealthy"
	} else {
		services["database"] = "healthy"
	}

	// Redis only backs rate limiting, so an outage degrades instead of failing
	if h.redis != nil {
		if err := h.redis.Ping(r.Context()).Err(); err != nil {
			services["redis"] = "unhealthy"
			if status == "healthy" {
				status = "degraded"
			}
		} else {
			services["redis"] = "healthy"
		}
	}

	if h.nats != nil {
		if h.nats.Connected() {
			services["nats"] = "healthy"
		} else {
			services["nats"] = "unhealthy"
			if status == "healthy" {
				status = "degraded"
			}
		}
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	respond.JSON(w, statusCode, HealthResponse{
		Status:   status,
		Services: services,
	})
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := h.db.DB()
	if err != nil || sqlDB.PingContext(r.Context()) != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

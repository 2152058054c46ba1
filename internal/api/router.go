package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/hugh/orchestra/internal/api/handlers"
	"github.com/hugh/orchestra/internal/api/middleware"
	"github.com/hugh/orchestra/internal/auth"
	"github.com/hugh/orchestra/internal/enterprise"
	"github.com/hugh/orchestra/internal/entitlement"
	"github.com/hugh/orchestra/internal/events"
	"github.com/hugh/orchestra/internal/personnel"
	"github.com/hugh/orchestra/internal/roles"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB             *gorm.DB
	Redis          *redis.Client
	Logger         *slog.Logger
	JWTService     *auth.JWTService
	AuthService    *auth.Service
	Publisher      events.Publisher
	NATS           handlers.ConnectionChecker
	TokenMaxAge    int      // Seconds the login cookie stays valid
	AllowedOrigins []string // CORS allowed origins
	RateLimitReqs  int      // Rate limit requests per window
	RateLimitSecs  int      // Rate limit window in seconds
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	publisher := cfg.Publisher
	if publisher == nil {
		publisher = events.Nop{}
	}

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	// Rate limiting - Redis backed when available, in-memory otherwise
	if cfg.RateLimitReqs > 0 {
		limiter := middleware.NewLimiter(cfg.Redis, cfg.RateLimitReqs, cfg.RateLimitSecs)
		r.Use(middleware.RateLimit(limiter, cfg.Logger))
	}

	// CORS - restrict to configured origins, or allow localhost in development
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.EnterpriseKeyHeader},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize services
	tracker := entitlement.NewTracker(cfg.DB)
	enterpriseService := enterprise.NewService(cfg.DB, tracker, publisher, cfg.Logger)
	roleService := roles.NewService(cfg.DB, tracker, publisher, cfg.Logger)
	personnelService := personnel.NewService(cfg.DB, tracker, publisher, cfg.Logger)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis, cfg.NATS)
	authHandler := handlers.NewAuthHandler(cfg.AuthService, cfg.TokenMaxAge, cfg.Logger)
	enterpriseHandler := handlers.NewEnterpriseHandler(enterpriseService, cfg.Logger)
	personnelHandler := handlers.NewPersonnelHandler(personnelService, cfg.Logger)
	roleHandler := handlers.NewRoleHandler(roleService, cfg.Logger)

	// tenant runs the key, membership and authority checks in that order
	tenant := func(module, action string) func(http.Handler) http.Handler {
		return middleware.Guards(cfg.Logger,
			middleware.RequireEnterpriseKey(enterpriseService),
			middleware.RequireMembership(cfg.AuthService),
			middleware.RequireAuthority(module, action),
		)
	}

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints
		r.Post("/login", authHandler.Login)
		r.Post("/new-enterprise", enterpriseHandler.Register)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTService))

			r.Get("/me", authHandler.Me)
			r.Put("/me", authHandler.UpdateProfile)

			r.Route("/enterprise", func(r chi.Router) {
				r.With(tenant("enterprise", "read")).Get("/", enterpriseHandler.Show)
				r.With(tenant("enterprise", "edit")).Put("/", enterpriseHandler.Update)
				r.With(tenant("enterprise", "manage_modules")).Post("/modules/{key}/purchase", enterpriseHandler.PurchaseModule)

				r.With(tenant("personnel", "create")).Post("/new-user", personnelHandler.Create)
				r.With(tenant("personnel", "read")).Get("/get-personnel", personnelHandler.List)
				r.With(tenant("personnel", "delete")).Delete("/delete-personnel/{uuid}", personnelHandler.Delete)
				r.With(tenant("personnel", "edit")).Put("/update-personnel/{uuid}", personnelHandler.Update)
			})

			r.Route("/roles", func(r chi.Router) {
				r.With(tenant("roles", "read")).Get("/", roleHandler.List)
				r.With(tenant("roles", "create")).Post("/", roleHandler.Create)
			})
		})
	})

	return &Router{r}
}

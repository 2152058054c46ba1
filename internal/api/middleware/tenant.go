package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/orchestra/internal/api/respond"
	"github.com/hugh/orchestra/internal/apperr"
	"github.com/hugh/orchestra/internal/auth"
	"github.com/hugh/orchestra/internal/authority"
	"github.com/hugh/orchestra/internal/database/models"
	"github.com/hugh/orchestra/internal/enterprise"
	"github.com/hugh/orchestra/internal/metrics"
)

// EnterpriseKeyHeader names the tenant a request targets.
const EnterpriseKeyHeader = "Enterprise-Key"

// Guard passes a request on, possibly with an enriched context, or rejects it
// with an apperr error.
type Guard func(*http.Request) (*http.Request, error)

// Guards runs guards in order and answers with the first rejection.
func Guards(log *slog.Logger, guards ...Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, guard := range guards {
				var err error
				r, err = guard(r)
				if err != nil {
					respond.Error(w, r, log, err)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

type EnterpriseResolver interface {
	FindByKey(ctx context.Context, key string) (*models.Enterprise, error)
}

type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, id uuid.UUID) (*models.User, error)
}

func reject(stage string, err error) error {
	metrics.GuardRejections.WithLabelValues(stage).Inc()
	return err
}

// RequireEnterpriseKey resolves the Enterprise-Key header to a tenant.
func RequireEnterpriseKey(resolver EnterpriseResolver) Guard {
	return func(r *http.Request) (*http.Request, error) {
		key := strings.TrimSpace(r.Header.Get(EnterpriseKeyHeader))
		if key == "" {
			return r, reject("enterprise_key", apperr.Unauthorized("Enterprise key is missing from headers"))
		}

		ent, err := resolver.FindByKey(r.Context(), key)
		if err != nil {
			if errors.Is(err, enterprise.ErrEnterpriseNotFound) {
				return r, reject("enterprise_key", apperr.Forbidden("Invalid enterprise key"))
			}
			return r, err
		}

		return r.WithContext(context.WithValue(r.Context(), enterpriseKey, ent)), nil
	}
}

// RequireMembership loads the authenticated user and checks it belongs to the
// resolved tenant. A token issued for another tenant is refused even if the
// user has since moved.
func RequireMembership(loader PrincipalLoader) Guard {
	return func(r *http.Request) (*http.Request, error) {
		notMember := apperr.Forbidden("You are not a member of this enterprise")

		ent := GetEnterprise(r.Context())
		userID := GetUserID(r.Context())
		if ent == nil || userID == uuid.Nil {
			return r, reject("membership", notMember)
		}
		if tokenEnt := GetTokenEnterpriseID(r.Context()); tokenEnt != uuid.Nil && tokenEnt != ent.ID {
			return r, reject("membership", notMember)
		}

		user, err := loader.LoadPrincipal(r.Context(), userID)
		if err != nil {
			if errors.Is(err, auth.ErrUserNotFound) {
				return r, reject("membership", notMember)
			}
			return r, err
		}
		if user.EnterpriseID != ent.ID {
			return r, reject("membership", notMember)
		}

		return r.WithContext(context.WithValue(r.Context(), principalKey, user)), nil
	}
}

// RequireAuthority checks the principal's role grants module.action.
func RequireAuthority(module, action string) Guard {
	return func(r *http.Request) (*http.Request, error) {
		user := GetPrincipal(r.Context())
		if user == nil || user.Role == nil || user.Role.Authority.IsZero() {
			return r, reject("authority", apperr.Forbidden("User has no role assigned"))
		}

		switch user.Role.Authority.Decide(module, action) {
		case authority.Granted:
			return r, nil
		case authority.Undefined:
			return r, reject("authority", apperr.Forbidden(
				fmt.Sprintf("No %s permission defined for module %s", action, module)))
		default:
			return r, reject("authority", apperr.Forbidden(
				fmt.Sprintf("Access denied: Requires %s.%s permission", module, action)))
		}
	}
}

// GetEnterprise returns the tenant resolved from the Enterprise-Key header.
func GetEnterprise(ctx context.Context) *models.Enterprise {
	if ent, ok := ctx.Value(enterpriseKey).(*models.Enterprise); ok {
		return ent
	}
	return nil
}

// GetPrincipal returns the member loaded by RequireMembership, role included.
func GetPrincipal(ctx context.Context) *models.User {
	if user, ok := ctx.Value(principalKey).(*models.User); ok {
		return user
	}
	return nil
}

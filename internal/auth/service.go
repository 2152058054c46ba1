package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/orchestra/internal/apperr"
	"github.com/hugh/orchestra/internal/database/models"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveUser       = errors.New("user is inactive")
)

type Service struct {
	db     *gorm.DB
	jwt    *JWTService
	logger *slog.Logger
}

func NewService(db *gorm.DB, jwt *JWTService, logger *slog.Logger) *Service {
	return &Service{db: db, jwt: jwt, logger: logger}
}

type LoginInput struct {
	Email    string
	Password string
}

type LoginResult struct {
	Token string
	User  *models.User
}

// ProfileInput is a partial update; nil fields are left untouched.
type ProfileInput struct {
	FirstName            *string
	LastName             *string
	Email                *string
	Password             *string
	PasswordConfirmation *string
}

func (in ProfileInput) empty() bool {
	return in.FirstName == nil && in.LastName == nil && in.Email == nil && in.Password == nil
}

func (s *Service) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Preload("Role").
		Preload("Enterprise").
		Where("email = ?", strings.ToLower(strings.TrimSpace(input.Email))).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !CheckPassword(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if !user.Status {
		return nil, ErrInactiveUser
	}

	token, err := s.jwt.GenerateToken(user.ID, user.EnterpriseID, user.Email)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", "user_id", user.ID, "enterprise_id", user.EnterpriseID)

	return &LoginResult{
		Token: token,
		User:  &user,
	}, nil
}

func (s *Service) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Preload("Role").
		Preload("Enterprise").
		First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// LoadPrincipal resolves the authenticated user for the tenant guards.
func (s *Service) LoadPrincipal(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.GetUserByID(ctx, id)
}

func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, input ProfileInput) (*models.User, error) {
	if input.empty() {
		return nil, apperr.Invalid("fields", "No fields to update")
	}

	updates := map[string]interface{}{}
	fields := map[string]string{}

	if input.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*input.LastName)
	}
	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.User{}).
			Where("email = ? AND id <> ?", email, id).
			Count(&count).Error; err != nil {
			return nil, fmt.Errorf("checking email: %w", err)
		}
		if count > 0 {
			fields["email"] = "The email has already been taken."
		}
		updates["email"] = email
	}
	if input.Password != nil {
		if input.PasswordConfirmation == nil || *input.PasswordConfirmation != *input.Password {
			fields["password"] = "The password confirmation does not match."
		} else {
			hash, err := HashPassword(*input.Password)
			if err != nil {
				return nil, fmt.Errorf("hashing password: %w", err)
			}
			updates["password_hash"] = hash
		}
	}
	if len(fields) > 0 {
		return nil, apperr.Validation(fields)
	}

	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("updating profile: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}

	return s.GetUserByID(ctx, id)
}

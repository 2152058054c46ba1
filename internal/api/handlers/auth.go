package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hugh/orchestra/internal/api/dto"
	"github.com/hugh/orchestra/internal/api/middleware"
	"github.com/hugh/orchestra/internal/api/respond"
	"github.com/hugh/orchestra/internal/apperr"
	"github.com/hugh/orchestra/internal/auth"
)

type AuthHandler struct {
	authService auth.Authenticator
	tokenMaxAge int
	logger      *slog.Logger
}

func NewAuthHandler(authService auth.Authenticator, tokenMaxAge int, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, tokenMaxAge: tokenMaxAge, logger: logger}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		respond.Error(w, r, h.logger, apperr.Validation(errs))
		return
	}

	resp, err := h.authService.Login(r.Context(), auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			respond.Message(w, http.StatusUnauthorized, "Invalid credentials")
		case errors.Is(err, auth.ErrInactiveUser):
			respond.Message(w, http.StatusForbidden, "Account is inactive")
		default:
			respond.Error(w, r, h.logger, err)
		}
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    resp.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   h.tokenMaxAge,
	})

	respond.JSON(w, http.StatusOK, dto.NewLoginResponse(resp.Token, resp.User))
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.GetUserByID(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			respond.Message(w, http.StatusNotFound, "User not found")
			return
		}
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, dto.NewMeResponse(user))
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		respond.Error(w, r, h.logger, apperr.Validation(errs))
		return
	}

	user, err := h.authService.UpdateProfile(r.Context(), middleware.GetUserID(r.Context()), auth.ProfileInput{
		FirstName:            req.FirstName,
		LastName:             req.LastName,
		Email:                req.Email,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
	})
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			respond.Message(w, http.StatusNotFound, "User not found")
			return
		}
		respond.Error(w, r, h.logger, err)
		return
	}

	respond.JSON(w, http.StatusOK, dto.ProfileResponse{
		Message: "Profile updated successfully",
		User:    dto.NewPersonnelView(user),
	})
}

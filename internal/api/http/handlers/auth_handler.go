package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/bookstore/auth-service/internal/api/dto"
	"github.com/bookstore/auth-service/internal/auth"
	"github.com/bookstore/auth-service/internal/domain"
	"github.com/bookstore/auth-service/internal/service"
	apperrors "github.com/bookstore/auth-service/pkg/util/errorutil"
)

// AuthHandler exposes the /auth endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Username == "" || req.Password == "" {
		return apperrors.NewValidationError("username and password required", nil)
	}

	result, err := h.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(fiber.Map{
		"data": dto.AuthResponse{
			Token:     result.Token,
			TokenType: "Bearer",
			ExpiresAt: result.ExpiresAt,
			Roles:     result.Principal.Roles(),
		},
	})
}

// Logout handles POST /auth/logout. It reads the raw header, not the guard's
// locals, so a store outage during revocation surfaces as 503.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	token, _ := auth.ParseBearer(c.Get(fiber.HeaderAuthorization))
	if err := h.auth.Logout(c.UserContext(), token); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"message": "logged out"}})
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Password == "" {
		req.Password = c.Query("password")
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" || strings.TrimSpace(req.Name) == "" {
		return apperrors.NewValidationError("username, name, email, password required", nil)
	}
	if !strings.Contains(req.Email, "@") {
		return apperrors.NewValidationError("invalid email", map[string]any{"field": "email"})
	}

	user, err := h.auth.Register(c.UserContext(), service.RegisterInput{
		Username: req.Username,
		Name:     strings.TrimSpace(req.Name),
		Phone:    strings.TrimSpace(req.Phone),
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return mapServiceError(err)
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// ForgotPassword handles POST /auth/forgot-password.
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req dto.ForgotPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		return apperrors.NewValidationError("email required", nil)
	}

	link, err := h.auth.ForgotPassword(c.UserContext(), req.Email)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(fiber.Map{
		"data": dto.ForgotPasswordResponse{
			Email:     link.Email,
			ResetLink: link.Link,
			ExpiresAt: link.ExpiresAt,
		},
	})
}

// ResetPassword handles POST /auth/reset-password. The token may come from
// the body or from the ?token= query the reset link carries.
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Token == "" {
		req.Token = c.Query("token")
	}
	if req.Token == "" || req.NewPassword == "" {
		return apperrors.NewValidationError("token and new_password required", nil)
	}

	if err := h.auth.ResetPassword(c.UserContext(), req.Token, req.NewPassword); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"message": "password updated"}})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx, principal *domain.Principal) error {
	resp := dto.PrincipalResponse{
		Username: principal.Subject,
		Roles:    principal.Roles(),
	}
	if claims, ok := auth.ClaimsFromContext(c); ok {
		resp.ExpiresAt = claims.ExpiresAt()
	}
	return c.JSON(fiber.Map{"data": resp})
}

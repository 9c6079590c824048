package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/bookstore/auth-service/internal/api/dto"
	"github.com/bookstore/auth-service/internal/domain"
	"github.com/bookstore/auth-service/internal/service"
	apperrors "github.com/bookstore/auth-service/pkg/util/errorutil"
)

// UsersHandler exposes account administration endpoints.
type UsersHandler struct {
	auth   *service.AuthService
	logger *zap.Logger
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService, logger *zap.Logger) *UsersHandler {
	return &UsersHandler{auth: authService, logger: logger}
}

// AssignRole handles PUT /users/:id/role. The access policy restricts the
// route to ADMIN.
func (h *UsersHandler) AssignRole(c *fiber.Ctx, principal *domain.Principal) error {
	var req dto.AssignRoleRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = c.Query("role")
	}
	if role == "" {
		return apperrors.NewValidationError("role required", map[string]any{"field": "role"})
	}

	user, err := h.auth.AssignRole(c.UserContext(), c.Params("id"), role)
	if err != nil {
		return mapServiceError(err)
	}

	h.logger.Info("role assigned",
		zap.String("actor", principal.Subject),
		zap.String("user_id", user.ID),
		zap.String("role", role),
	)
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

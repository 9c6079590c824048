package handlers

import (
	"errors"

	"github.com/bookstore/auth-service/internal/auth"
	"github.com/bookstore/auth-service/internal/persistence"
	"github.com/bookstore/auth-service/internal/repository"
	"github.com/bookstore/auth-service/internal/service"
	apperrors "github.com/bookstore/auth-service/pkg/util/errorutil"
)

// mapServiceError translates service and store errors into DomainErrors.
// Credential failures share one message so callers cannot probe usernames.
func mapServiceError(err error) error {
	switch {
	case errors.Is(err, auth.ErrUserNotFound), errors.Is(err, auth.ErrBadCredentials):
		return apperrors.NewUnauthorized("invalid username or password")
	case errors.Is(err, auth.ErrInvalidOrExpiredResetToken):
		return apperrors.NewValidationError("invalid or expired reset token", nil)
	case errors.Is(err, auth.ErrPasswordTooLong):
		return apperrors.NewValidationError("password must be at most 72 bytes", map[string]any{"field": "password"})
	case errors.Is(err, service.ErrUnknownEmail):
		return apperrors.NewNotFound("user", nil)
	case errors.Is(err, service.ErrUnknownRole):
		return apperrors.NewValidationError("unknown role", map[string]any{"field": "role"})
	case errors.Is(err, repository.ErrConflict):
		return apperrors.NewConflict("username, email or phone already registered", nil)
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("user", nil)
	case errors.Is(err, persistence.ErrStoreUnavailable):
		return apperrors.NewServiceUnavailable("session store unavailable", err)
	}
	return apperrors.MapError(err)
}

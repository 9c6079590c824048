package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bookstore/auth-service/internal/auth"
	"github.com/bookstore/auth-service/internal/config"
	"github.com/bookstore/auth-service/internal/domain"
	"github.com/bookstore/auth-service/internal/events"
	"github.com/bookstore/auth-service/internal/repository"
)

var (
	// ErrUnknownRole is returned when a role name is not in the role table.
	ErrUnknownRole = errors.New("unknown role")
	// ErrDefaultRoleMissing means the role table was never seeded.
	ErrDefaultRoleMissing = errors.New("default role is not configured")
	// ErrUnknownEmail is returned by ForgotPassword for unregistered emails.
	ErrUnknownEmail = errors.New("no account for email")
)

// LoginResult is a freshly issued session.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Principal *domain.Principal
}

// RegisterInput carries a new employee's profile.
type RegisterInput struct {
	Username string
	Name     string
	Phone    string
	Email    string
	Password string
}

// ResetLink is the result of a forgot-password request.
type ResetLink struct {
	Email     string
	Link      string
	ExpiresAt time.Time
}

// AuthService coordinates login, logout, registration, password reset and
// role assignment.
type AuthService struct {
	users         repository.UserRepository
	roles         repository.RoleRepository
	authenticator *auth.Authenticator
	codec         *auth.TokenCodec
	revocations   *auth.RevocationRegistry
	resets        *auth.ResetTokenStore
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	bcryptCost    int
	publicURL     string
	now           func() time.Time
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo      repository.UserRepository
	RoleRepo      repository.RoleRepository
	Authenticator *auth.Authenticator
	Codec         *auth.TokenCodec
	Revocations   *auth.RevocationRegistry
	Resets        *auth.ResetTokenStore
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
	Clock         func() time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:         deps.UserRepo,
		roles:         deps.RoleRepo,
		authenticator: deps.Authenticator,
		codec:         deps.Codec,
		revocations:   deps.Revocations,
		resets:        deps.Resets,
		dispatcher:    deps.Dispatcher,
		logger:        logger,
		bcryptCost:    cfg.Auth.BcryptCost,
		publicURL:     strings.TrimRight(cfg.App.PublicURL, "/"),
		now:           now,
	}
}

// Login checks credentials and issues a one-hour token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	principal, err := s.authenticator.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) || errors.Is(err, auth.ErrBadCredentials) {
			s.publish(ctx, events.EventLoginFailed, username, events.LoginFailedPayload{Reason: failureReason(err)})
		}
		return nil, err
	}

	token, exp, err := s.codec.Issue(principal.Subject, principal.Roles(), s.now())
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	s.publish(ctx, events.EventLoginSucceeded, principal.Subject, nil)
	return &LoginResult{Token: token, ExpiresAt: exp, Principal: principal}, nil
}

// Logout revokes token for the rest of its lifetime. Tokens that are
// missing, invalid or already expired need no revocation and are ignored.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	now := s.now()
	claims, err := s.codec.Verify(token, now)
	if err != nil {
		s.logger.Debug("logout with unusable token", zap.Error(err))
		return nil
	}
	if err := s.revocations.RevokeVerified(ctx, token, claims, now); err != nil {
		return err
	}
	s.publish(ctx, events.EventTokenRevoked, claims.Subject(), events.TokenRevokedPayload{
		TokenID:   claims.ID(),
		ExpiresAt: claims.ExpiresAt(),
	})
	return nil
}

// Register creates an employee account holding the default role.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	role, err := s.roles.LookupRoleByName(ctx, domain.DefaultRole)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDefaultRoleMissing
		}
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     in.Username,
		Name:         in.Name,
		Phone:        in.Phone,
		Email:        in.Email,
		PasswordHash: hash,
		Roles:        []string{role.Name},
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	user.PasswordHash = ""

	s.publish(ctx, events.EventUserRegistered, user.Username, events.UserRegisteredPayload{
		UserID: user.ID,
		Roles:  user.Roles,
	})
	return user, nil
}

// ForgotPassword issues a reset token for a registered email and returns the
// link that carries it.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (*ResetLink, error) {
	user, err := s.users.LookupIdentityByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnknownEmail
		}
		return nil, err
	}

	token, err := s.resets.CreateResetToken(ctx, user.Email)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventPasswordResetRequested, user.Email, nil)
	return &ResetLink{
		Email:     user.Email,
		Link:      s.publicURL + "/auth/reset-password?token=" + url.QueryEscape(token),
		ExpiresAt: s.now().Add(s.resets.TTL()),
	}, nil
}

// ResetPassword redeems token and stores the new password hash.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	// Hash first so a rejected password does not burn the token.
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}

	email, err := s.resets.ConsumeResetToken(ctx, token)
	if err != nil {
		return err
	}

	if err := s.users.UpdatePasswordByEmail(ctx, email, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return auth.ErrInvalidOrExpiredResetToken
		}
		return err
	}

	s.publish(ctx, events.EventPasswordResetCompleted, email, nil)
	return nil
}

// AssignRole grants roleName to the user; granting a held role is a no-op.
func (s *AuthService) AssignRole(ctx context.Context, userID, roleName string) (*domain.User, error) {
	role, err := s.roles.LookupRoleByName(ctx, roleName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnknownRole
		}
		return nil, err
	}

	if err := s.users.AssignRole(ctx, userID, role.ID); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventRoleAssigned, user.Username, events.RoleAssignedPayload{
		UserID: user.ID,
		Role:   role.Name,
	})
	return user, nil
}

func (s *AuthService) publish(ctx context.Context, eventType events.EventType, subject string, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, events.New(eventType, subject, s.now(), payload)); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(eventType)), zap.Error(err))
	}
}

func failureReason(err error) string {
	if errors.Is(err, auth.ErrUserNotFound) {
		return "user_not_found"
	}
	return "bad_credentials"
}

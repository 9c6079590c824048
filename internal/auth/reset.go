package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bookstore/auth-service/internal/persistence"
)

// ErrInvalidOrExpiredResetToken covers unknown, used and expired reset tokens
// alike.
var ErrInvalidOrExpiredResetToken = errors.New("invalid or expired reset token")

// DefaultResetTokenTTL applies when the configured TTL is not positive.
const DefaultResetTokenTTL = 30 * time.Minute

const resetPrefix = "reset:"

// ResetTokenStore maps single-use reset tokens to the email they were issued
// for.
type ResetTokenStore struct {
	store persistence.KVStore
	ttl   time.Duration
}

// NewResetTokenStore builds a store whose tokens live for ttl.
func NewResetTokenStore(store persistence.KVStore, ttl time.Duration) *ResetTokenStore {
	if ttl <= 0 {
		ttl = DefaultResetTokenTTL
	}
	return &ResetTokenStore{store: store, ttl: ttl}
}

// TTL reports how long issued tokens stay valid.
func (s *ResetTokenStore) TTL() time.Duration {
	return s.ttl
}

// CreateResetToken issues a fresh random token for email.
func (s *ResetTokenStore) CreateResetToken(ctx context.Context, email string) (string, error) {
	token := uuid.NewString()
	if err := s.store.Set(ctx, resetPrefix+token, email, s.ttl); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}
	return token, nil
}

// ConsumeResetToken atomically removes token and returns its email. Of any
// number of concurrent calls with the same token, at most one succeeds.
func (s *ResetTokenStore) ConsumeResetToken(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidOrExpiredResetToken
	}
	email, err := s.store.Take(ctx, resetPrefix+token)
	if errors.Is(err, persistence.ErrKeyNotFound) {
		return "", ErrInvalidOrExpiredResetToken
	}
	if err != nil {
		return "", fmt.Errorf("consume reset token: %w", err)
	}
	return email, nil
}

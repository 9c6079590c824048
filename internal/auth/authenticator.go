package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/bookstore/auth-service/internal/domain"
	"github.com/bookstore/auth-service/internal/repository"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrBadCredentials = errors.New("bad credentials")
)

// CredentialStore is the read side of the user repository the authenticator
// needs.
type CredentialStore interface {
	LookupCredential(ctx context.Context, username string) (*domain.Credential, error)
}

// Authenticator checks username/password pairs against a CredentialStore.
type Authenticator struct {
	store     CredentialStore
	dummyHash []byte
}

// NewAuthenticator precomputes a throwaway hash at cost so that unknown
// usernames cost one bcrypt comparison like known ones.
func NewAuthenticator(store CredentialStore, cost int) (*Authenticator, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("bookstore-auth-dummy-password"), cost)
	if err != nil {
		return nil, fmt.Errorf("dummy hash: %w", err)
	}
	return &Authenticator{store: store, dummyHash: dummy}, nil
}

// Authenticate returns the principal for valid credentials. Both failure
// kinds are surfaced so callers can audit them; the HTTP layer collapses
// them into one response.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (*domain.Principal, error) {
	if username == "" {
		_ = bcrypt.CompareHashAndPassword(a.dummyHash, []byte(password))
		return nil, ErrUserNotFound
	}

	cred, err := a.store.LookupCredential(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(a.dummyHash, []byte(password))
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup credential: %w", err)
	}

	if err := ComparePassword(cred.PasswordHash, password); err != nil {
		if errors.Is(err, ErrBadCredentials) {
			return nil, ErrBadCredentials
		}
		// Corrupt stored hash.
		return nil, fmt.Errorf("%w: %v", ErrBadCredentials, err)
	}
	return domain.NewPrincipal(cred.Username, cred.Roles), nil
}

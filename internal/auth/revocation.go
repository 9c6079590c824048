package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/bookstore/auth-service/internal/persistence"
)

// ErrRevoked marks a token that was logged out before its expiry.
var ErrRevoked = errors.New("token revoked")

// ErrStoreUnavailable is the store outage sentinel shared with persistence.
var ErrStoreUnavailable = persistence.ErrStoreUnavailable

const revocationPrefix = "revoked:"

// RevocationRegistry records logged-out tokens until they would have expired
// anyway. Entries are keyed by the SHA-256 of the token so raw bearer tokens
// never reach the store.
//
// Outage policy is fail-closed: when the store cannot answer, IsRevoked
// reports the token as revoked.
type RevocationRegistry struct {
	store persistence.KVStore
	codec *TokenCodec
}

// NewRevocationRegistry builds a registry over store.
func NewRevocationRegistry(store persistence.KVStore, codec *TokenCodec) *RevocationRegistry {
	return &RevocationRegistry{store: store, codec: codec}
}

// Revoke stores token with a TTL equal to its remaining lifetime. Tokens that
// are already expired need no entry. Tokens that do not verify are rejected.
func (r *RevocationRegistry) Revoke(ctx context.Context, token string, now time.Time) error {
	claims, err := r.codec.Verify(token, now)
	if errors.Is(err, ErrExpired) {
		return nil
	}
	if err != nil {
		return err
	}
	return r.RevokeVerified(ctx, token, claims, now)
}

// RevokeVerified is Revoke for a token the caller has already verified.
func (r *RevocationRegistry) RevokeVerified(ctx context.Context, token string, claims *Claims, now time.Time) error {
	ttl := claims.ExpiresAt().Sub(now)
	if ttl <= 0 {
		return nil
	}
	if err := r.store.Set(ctx, revocationKey(token), claims.Subject(), ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether token was revoked. On store failure it returns
// true together with an error wrapping ErrStoreUnavailable.
func (r *RevocationRegistry) IsRevoked(ctx context.Context, token string) (bool, error) {
	revoked, err := r.store.Exists(ctx, revocationKey(token))
	if err != nil {
		return true, fmt.Errorf("revocation check: %w", err)
	}
	return revoked, nil
}

func revocationKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return revocationPrefix + hex.EncodeToString(sum[:])
}

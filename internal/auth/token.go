package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/bookstore/auth-service/internal/domain"
)

// TokenLifetime is fixed: exp is always iat + one hour.
const TokenLifetime = time.Hour

// MinSecretBytes is the smallest HS256 secret the codec accepts.
const MinSecretBytes = 32

var (
	ErrInvalidSigningKey = errors.New("signing key must be at least 32 bytes")
	ErrEmptySubject      = errors.New("token subject is required")
	ErrMalformedToken    = errors.New("malformed token")
	ErrBadSignature      = errors.New("bad token signature")
	ErrExpired           = errors.New("token expired")
)

// tokenClaims is the wire payload. iat and exp carry whole seconds, so the
// exact issue instant travels in IssuedAtNanos and bounds validity; exp is
// rounded up and never expires a token before IssuedAtNanos does.
type tokenClaims struct {
	Roles         []string `json:"roles"`
	IssuedAtNanos int64    `json:"iat_ns,omitempty"`
	jwt.RegisteredClaims
}

// Claims is a verified token payload. The only way to obtain one is
// TokenCodec.Verify, so holding a *Claims means the signature and expiry
// were checked.
type Claims struct {
	id        string
	subject   string
	roles     []string
	issuedAt  time.Time
	expiresAt time.Time
}

func (c *Claims) ID() string           { return c.id }
func (c *Claims) Subject() string      { return c.subject }
func (c *Claims) IssuedAt() time.Time  { return c.issuedAt }
func (c *Claims) ExpiresAt() time.Time { return c.expiresAt }

// Roles returns a copy in issue order.
func (c *Claims) Roles() []string {
	out := make([]string, len(c.roles))
	copy(out, c.roles)
	return out
}

// Principal projects the claims onto a request principal.
func (c *Claims) Principal() *domain.Principal {
	return domain.NewPrincipal(c.subject, c.roles)
}

// TokenCodec issues and verifies HS256 session tokens.
type TokenCodec struct {
	secret []byte
}

// NewTokenCodec copies secret; callers treat a failure as fatal at startup.
func NewTokenCodec(secret []byte) (*TokenCodec, error) {
	if len(secret) < MinSecretBytes {
		return nil, ErrInvalidSigningKey
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &TokenCodec{secret: key}, nil
}

// Issue signs a token for subject carrying roles in the given order. The
// token is valid for exactly TokenLifetime from now.
func (tc *TokenCodec) Issue(subject string, roles []string, now time.Time) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, ErrEmptySubject
	}
	expiresAt := now.Add(TokenLifetime)

	ordered := make([]string, len(roles))
	copy(ordered, roles)

	claims := &tokenClaims{
		Roles:         ordered,
		IssuedAtNanos: now.UnixNano(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now.Truncate(time.Second)),
			ExpiresAt: jwt.NewNumericDate(ceilSecond(expiresAt)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tc.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// Verify checks structure, then the signature over the raw signing input,
// then the claims against now. The signature is checked before any segment
// is JSON-decoded so that a modified header or payload reports
// ErrBadSignature rather than a decoding error.
func (tc *TokenCodec) Verify(tokenString string, now time.Time) (*Claims, error) {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, ErrMalformedToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	sig, err := parser.DecodeSegment(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	// hmac.Equal underneath: constant time in the signature length.
	if err := jwt.SigningMethodHS256.Verify(parts[0]+"."+parts[1], sig, tc.secret); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	var wire tokenClaims
	if _, err := parser.ParseWithClaims(tokenString, &wire, func(*jwt.Token) (interface{}, error) {
		return tc.secret, nil
	}); err != nil {
		return nil, classifyParseError(err)
	}

	if wire.Subject == "" || wire.ExpiresAt == nil || wire.IssuedAtNanos == 0 {
		return nil, ErrMalformedToken
	}

	issued := time.Unix(0, wire.IssuedAtNanos).UTC()
	expires := issued.Add(TokenLifetime)
	if !now.Before(expires) {
		return nil, fmt.Errorf("%w: expired at %s", ErrExpired, expires.Format(time.RFC3339Nano))
	}

	return &Claims{
		id:        wire.ID,
		subject:   wire.Subject,
		roles:     wire.Roles,
		issuedAt:  issued,
		expiresAt: expires,
	}, nil
}

func ceilSecond(t time.Time) time.Time {
	truncated := t.Truncate(time.Second)
	if truncated.Before(t) {
		return truncated.Add(time.Second)
	}
	return truncated
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
}

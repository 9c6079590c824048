package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/bookstore/auth-service/internal/domain"
	"github.com/bookstore/auth-service/internal/observability"
	apperrors "github.com/bookstore/auth-service/pkg/util/errorutil"
)

const (
	principalKey = "auth_principal"
	tokenKey     = "auth_token"
	claimsKey    = "auth_claims"
)

var (
	// ErrUnauthenticated is the terminal error of a pipeline that requires a
	// principal and has none.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden is the terminal error of a pipeline whose principal lacks
	// the required role.
	ErrForbidden = errors.New("insufficient role")
	// ErrInvalidAuthorizationHeader marks a header that is not "Bearer <token>".
	ErrInvalidAuthorizationHeader = errors.New("invalid authorization header")
)

// Request is the state threaded through the guard stages. Reason keeps the
// first internal failure for logging; it never reaches the client.
type Request struct {
	Method        string
	Path          string
	Authorization string
	Now           time.Time

	Token     string
	Claims    *Claims
	Principal *domain.Principal
	Decision  Decision
	Reason    error
}

// anonymize drops any token state and records why.
func (r *Request) anonymize(reason error) {
	r.Token = ""
	r.Claims = nil
	r.Principal = nil
	if r.Reason == nil {
		r.Reason = reason
	}
}

// Stage is one step of the guard. A non-nil error stops the pipeline and is
// the request's final outcome.
type Stage func(ctx context.Context, req *Request) error

// Pipeline runs stages in order.
type Pipeline []Stage

// Run executes every stage until one fails.
func (p Pipeline) Run(ctx context.Context, req *Request) error {
	for _, stage := range p {
		if err := stage(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// ExtractBearer reads the token from the Authorization header. A header
// with another scheme leaves the request anonymous.
func ExtractBearer() Stage {
	return func(_ context.Context, req *Request) error {
		if req.Authorization == "" {
			return nil
		}
		token, ok := ParseBearer(req.Authorization)
		if !ok {
			req.anonymize(ErrInvalidAuthorizationHeader)
			return nil
		}
		req.Token = token
		return nil
	}
}

// CheckRevocation drops revoked tokens. A store outage counts as revoked.
func CheckRevocation(registry *RevocationRegistry) Stage {
	return func(ctx context.Context, req *Request) error {
		if req.Token == "" {
			return nil
		}
		revoked, err := registry.IsRevoked(ctx, req.Token)
		if err != nil {
			req.anonymize(err)
			return nil
		}
		if revoked {
			req.anonymize(ErrRevoked)
		}
		return nil
	}
}

// VerifyToken checks the token and attaches claims and principal.
func VerifyToken(codec *TokenCodec) Stage {
	return func(_ context.Context, req *Request) error {
		if req.Token == "" {
			return nil
		}
		claims, err := codec.Verify(req.Token, req.Now)
		if err != nil {
			req.anonymize(err)
			return nil
		}
		req.Claims = claims
		req.Principal = claims.Principal()
		return nil
	}
}

// Authorize applies the policy to whatever principal survived the earlier
// stages.
func Authorize(policy *Policy) Stage {
	return func(_ context.Context, req *Request) error {
		req.Decision = policy.Decide(req.Method, req.Path, req.Principal)
		switch req.Decision {
		case DecisionDenyUnauthenticated:
			return ErrUnauthenticated
		case DecisionDenyForbidden:
			return ErrForbidden
		}
		return nil
	}
}

// ParseBearer extracts the token from "Bearer <token>"; the scheme is
// case-insensitive.
func ParseBearer(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

// Guard is the fiber middleware that runs the pipeline for every request
// behind it.
type Guard struct {
	pipeline Pipeline
	logger   *zap.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

// GuardOption customizes a Guard.
type GuardOption func(*Guard)

// WithGuardClock replaces time.Now.
func WithGuardClock(now func() time.Time) GuardOption {
	return func(g *Guard) {
		if now != nil {
			g.now = now
		}
	}
}

// WithGuardMetrics records every decision.
func WithGuardMetrics(metrics *observability.Metrics) GuardOption {
	return func(g *Guard) { g.metrics = metrics }
}

// NewGuard builds the standard pipeline: extract, revocation check, verify,
// authorize.
func NewGuard(codec *TokenCodec, registry *RevocationRegistry, policy *Policy, logger *zap.Logger, opts ...GuardOption) *Guard {
	g := &Guard{
		pipeline: Pipeline{
			ExtractBearer(),
			CheckRevocation(registry),
			VerifyToken(codec),
			Authorize(policy),
		},
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Handle enforces the access policy.
func (g *Guard) Handle(c *fiber.Ctx) error {
	req := &Request{
		Method:        c.Method(),
		Path:          c.Path(),
		Authorization: c.Get(fiber.HeaderAuthorization),
		Now:           g.now(),
	}

	err := g.pipeline.Run(c.UserContext(), req)
	g.metrics.RecordDecision(req.Decision.String(), reasonLabel(req.Reason))

	if req.Reason != nil {
		level := zap.InfoLevel
		if errors.Is(req.Reason, ErrStoreUnavailable) {
			level = zap.WarnLevel
		}
		g.logger.Check(level, "bearer token rejected").Write(
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.String("reason", req.Reason.Error()),
		)
	}

	switch {
	case errors.Is(err, ErrUnauthenticated):
		return apperrors.NewUnauthorized("authentication required")
	case errors.Is(err, ErrForbidden):
		g.logger.Info("access forbidden",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.String("subject", req.Principal.Subject),
		)
		return apperrors.NewForbidden("insufficient role")
	case err != nil:
		return err
	}

	if req.Principal != nil {
		c.Locals(principalKey, req.Principal)
		c.Locals(claimsKey, req.Claims)
		c.Locals(tokenKey, req.Token)
	}
	return c.Next()
}

func reasonLabel(reason error) string {
	switch {
	case reason == nil:
		return ""
	case errors.Is(reason, ErrExpired):
		return "expired"
	case errors.Is(reason, ErrBadSignature):
		return "bad_signature"
	case errors.Is(reason, ErrMalformedToken):
		return "malformed"
	case errors.Is(reason, ErrRevoked):
		return "revoked"
	case errors.Is(reason, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(reason, ErrInvalidAuthorizationHeader):
		return "bad_header"
	default:
		return "other"
	}
}

// PrincipalFromContext retrieves the authenticated principal.
func PrincipalFromContext(c *fiber.Ctx) (*domain.Principal, bool) {
	principal, ok := c.Locals(principalKey).(*domain.Principal)
	return principal, ok && principal != nil
}

// ClaimsFromContext retrieves the verified claims of the request token.
func ClaimsFromContext(c *fiber.Ctx) (*Claims, bool) {
	claims, ok := c.Locals(claimsKey).(*Claims)
	return claims, ok && claims != nil
}

// TokenFromContext retrieves the raw verified, unrevoked bearer token.
func TokenFromContext(c *fiber.Ctx) (string, bool) {
	token, ok := c.Locals(tokenKey).(string)
	return token, ok && token != ""
}

// WithPrincipal adapts a handler that needs a principal. Requests without one
// get 401, so handlers never see a nil principal.
func WithPrincipal(handler func(c *fiber.Ctx, principal *domain.Principal) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return handler(c, principal)
	}
}

package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bookstore/auth-service/internal/domain"
	"github.com/bookstore/auth-service/internal/observability"
	"github.com/bookstore/auth-service/internal/persistence"
	apperrors "github.com/bookstore/auth-service/pkg/util/errorutil"
)

func testErrorHandler(c *fiber.Ctx, err error) error {
	domainErr := apperrors.ToDomainError(err)
	return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{
		"error": fiber.Map{"code": domainErr.Code, "message": domainErr.Message},
	})
}

type guardFixture struct {
	app      *fiber.App
	codec    *TokenCodec
	registry *RevocationRegistry
	metrics  *observability.Metrics
	clock    *testClock
}

func newGuardFixture(t *testing.T, store persistence.KVStore) *guardFixture {
	t.Helper()

	codec := newTestCodec(t)
	registry := NewRevocationRegistry(store, codec)
	clock := newTestClock(issuedAt)
	metrics := observability.NewMetrics()
	guard := NewGuard(codec, registry, DefaultPolicy(), zap.NewNop(),
		WithGuardClock(clock.Now),
		WithGuardMetrics(metrics),
	)

	app := fiber.New(fiber.Config{ErrorHandler: testErrorHandler})
	app.Use(guard.Handle)

	echo := func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return c.JSON(fiber.Map{"subject": ""})
		}
		return c.JSON(fiber.Map{"subject": principal.Subject, "roles": principal.Roles()})
	}
	app.Get("/books", echo)
	app.Post("/books", echo)
	app.Get("/users", echo)
	app.Put("/users/:id/role", echo)
	app.Get("/reports", WithPrincipal(func(c *fiber.Ctx, p *domain.Principal) error {
		return c.JSON(fiber.Map{"subject": p.Subject})
	}))
	app.Get("/auth/me", WithPrincipal(func(c *fiber.Ctx, p *domain.Principal) error {
		token, _ := TokenFromContext(c)
		claims, _ := ClaimsFromContext(c)
		return c.JSON(fiber.Map{"subject": p.Subject, "token": token, "jti": claims.ID()})
	}))

	return &guardFixture{app: app, codec: codec, registry: registry, metrics: metrics, clock: clock}
}

func (f *guardFixture) issue(t *testing.T, subject string, roles ...string) string {
	t.Helper()
	token, _, err := f.codec.Issue(subject, roles, f.clock.Now())
	require.NoError(t, err)
	return token
}

func (f *guardFixture) do(t *testing.T, method, target, authorization string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if authorization != "" {
		req.Header.Set(fiber.HeaderAuthorization, authorization)
	}
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	}
	return resp.StatusCode, body
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestGuardAnonymous(t *testing.T) {
	f := newGuardFixture(t, persistence.NewMemoryKV())

	status, body := f.do(t, http.MethodGet, "/books", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "", body["subject"])

	status, body = f.do(t, http.MethodGet, "/users", "")
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "UNAUTHORIZED", errorCode(body))

	status, _ = f.do(t, http.MethodGet, "/reports", "")
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestGuardRoles(t *testing.T) {
	f := newGuardFixture(t, persistence.NewMemoryKV())
	employee := "Bearer " + f.issue(t, "alice", domain.RoleEmployee)
	manager := "Bearer " + f.issue(t, "bob", domain.RoleBookManager)
	admin := "Bearer " + f.issue(t, "carol", domain.RoleAdmin)

	cases := []struct {
		method string
		path   string
		auth   string
		status int
	}{
		{http.MethodGet, "/users", employee, http.StatusOK},
		{http.MethodPost, "/books", employee, http.StatusForbidden},
		{http.MethodPost, "/books", manager, http.StatusOK},
		{http.MethodPut, "/users/42/role", manager, http.StatusForbidden},
		{http.MethodPut, "/users/42/role", admin, http.StatusOK},
		{http.MethodPut, "/users/42/role/", admin, http.StatusOK},
		{http.MethodGet, "/reports", employee, http.StatusOK},
	}
	for _, tc := range cases {
		status, body := f.do(t, tc.method, tc.path, tc.auth)
		require.Equal(t, tc.status, status, "%s %s", tc.method, tc.path)
		if status == http.StatusForbidden {
			require.Equal(t, "FORBIDDEN", errorCode(body))
		}
	}
}

func TestGuardRejectsBadTokensWithoutDetail(t *testing.T) {
	f := newGuardFixture(t, persistence.NewMemoryKV())
	valid := f.issue(t, "alice", domain.RoleEmployee)

	other, err := NewTokenCodec([]byte("ffffffffffffffffffffffffffffffff"))
	require.NoError(t, err)
	forged, _, err := other.Issue("alice", []string{domain.RoleAdmin}, issuedAt)
	require.NoError(t, err)

	for name, header := range map[string]string{
		"malformed":    "Bearer not-a-token",
		"foreign key":  "Bearer " + forged,
		"wrong scheme": "Basic " + valid,
		"empty bearer": "Bearer ",
		"tampered sig": "Bearer " + valid[:len(valid)-2] + "xx",
	} {
		status, body := f.do(t, http.MethodGet, "/users", header)
		require.Equal(t, http.StatusUnauthorized, status, name)
		e := body["error"].(map[string]any)
		require.Equal(t, "authentication required", e["message"], name)
	}

	// Public routes still work with a broken token.
	status, body := f.do(t, http.MethodGet, "/books", "Bearer not-a-token")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "", body["subject"])
}

func TestGuardExpiredToken(t *testing.T) {
	f := newGuardFixture(t, persistence.NewMemoryKV())
	token := f.issue(t, "alice", domain.RoleEmployee)

	f.clock.Set(issuedAt.Add(TokenLifetime - time.Second))
	status, _ := f.do(t, http.MethodGet, "/users", "Bearer "+token)
	require.Equal(t, http.StatusOK, status)

	f.clock.Set(issuedAt.Add(TokenLifetime))
	status, _ = f.do(t, http.MethodGet, "/users", "Bearer "+token)
	require.Equal(t, http.StatusUnauthorized, status)

	require.Equal(t, int64(1), f.metrics.Snapshot().Decisions["deny_unauthenticated|expired"])
}

func TestGuardRevokedToken(t *testing.T) {
	f := newGuardFixture(t, persistence.NewMemoryKV())
	token := f.issue(t, "alice", domain.RoleEmployee)
	other := f.issue(t, "alice", domain.RoleEmployee)

	status, _ := f.do(t, http.MethodGet, "/users", "Bearer "+token)
	require.Equal(t, http.StatusOK, status)

	require.NoError(t, f.registry.Revoke(context.Background(), token, f.clock.Now()))

	status, _ = f.do(t, http.MethodGet, "/users", "Bearer "+token)
	require.Equal(t, http.StatusUnauthorized, status)

	// Other sessions of the same subject are unaffected.
	status, _ = f.do(t, http.MethodGet, "/users", "Bearer "+other)
	require.Equal(t, http.StatusOK, status)

	status, body := f.do(t, http.MethodGet, "/auth/me", "Bearer "+token)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "UNAUTHORIZED", errorCode(body))
}

func TestGuardFailsClosedOnStoreOutage(t *testing.T) {
	mr, kv := newTestRedisKV(t)
	f := newGuardFixture(t, kv)
	token := f.issue(t, "alice", domain.RoleEmployee)

	status, _ := f.do(t, http.MethodGet, "/users", "Bearer "+token)
	require.Equal(t, http.StatusOK, status)

	mr.Close()

	status, _ = f.do(t, http.MethodGet, "/users", "Bearer "+token)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, int64(1), f.metrics.Snapshot().Decisions["deny_unauthenticated|store_unavailable"])
}

func TestGuardExposesTokenAndClaims(t *testing.T) {
	f := newGuardFixture(t, persistence.NewMemoryKV())
	token := f.issue(t, "alice", domain.RoleEmployee)

	status, body := f.do(t, http.MethodGet, "/auth/me", "bearer "+token)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "alice", body["subject"])
	require.Equal(t, token, body["token"])
	require.NotEmpty(t, body["jti"])
}

func TestParseBearer(t *testing.T) {
	cases := map[string]struct {
		token string
		ok    bool
	}{
		"Bearer abc":     {"abc", true},
		"bearer abc":     {"abc", true},
		"  Bearer  abc ": {"abc", true},
		"Bearer":         {"", false},
		"Bearer   ":      {"", false},
		"Token abc":      {"", false},
		"abc":            {"", false},
	}
	for header, want := range cases {
		token, ok := ParseBearer(header)
		require.Equal(t, want.ok, ok, header)
		require.Equal(t, want.token, token, header)
	}
}

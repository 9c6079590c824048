package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bookstore/auth-service/internal/api/http/handlers"
	"github.com/bookstore/auth-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health       *handlers.HealthHandler
	Auth         *handlers.AuthHandler
	Users        *handlers.UsersHandler
	Guard        *auth.Guard
	LoginLimiter *auth.LoginLimiter
}

// RegisterRoutes wires HTTP routes. Liveness and readiness probes are mounted
// ahead of the guard; everything after it, metrics included, is subject to
// the access policy.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	health := app.Group("/health")
	health.Get("/live", cfg.Health.Live)
	health.Get("/ready", cfg.Health.Ready)

	app.Use(cfg.Guard.Handle)

	health.Get("/metrics", cfg.Health.Metrics)

	authGroup := app.Group("/auth")
	if cfg.LoginLimiter != nil {
		authGroup.Post("/login", cfg.LoginLimiter.Handler(), cfg.Auth.Login)
	} else {
		authGroup.Post("/login", cfg.Auth.Login)
	}
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/forgot-password", cfg.Auth.ForgotPassword)
	authGroup.Post("/reset-password", cfg.Auth.ResetPassword)
	authGroup.Get("/me", auth.WithPrincipal(cfg.Auth.Me))

	users := app.Group("/users")
	users.Put("/:id/role", auth.WithPrincipal(cfg.Users.AssignRole))
}

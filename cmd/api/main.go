package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/bookstore/auth-service/internal/api/http"
	"github.com/bookstore/auth-service/internal/api/http/handlers"
	"github.com/bookstore/auth-service/internal/auth"
	"github.com/bookstore/auth-service/internal/config"
	"github.com/bookstore/auth-service/internal/domain"
	"github.com/bookstore/auth-service/internal/events"
	"github.com/bookstore/auth-service/internal/observability"
	"github.com/bookstore/auth-service/internal/persistence"
	"github.com/bookstore/auth-service/internal/repository"
	"github.com/bookstore/auth-service/internal/service"
	"github.com/bookstore/auth-service/internal/worker"
)

const (
	kvPrefix        = "bookstore-auth"
	janitorInterval = time.Minute
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	codec, err := auth.NewTokenCodec(cfg.Auth.SigningKey)
	if err != nil {
		logger.Fatal("invalid signing key", zap.Error(err))
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	var (
		userRepo repository.UserRepository
		roleRepo repository.RoleRepository
	)
	if pg.Enabled() {
		userRepo = repository.NewUserRepository(pg.PoolHandle())
		roleRepo = repository.NewRoleRepository(pg.PoolHandle())
	} else {
		memory := repository.NewMemoryStore(domain.RoleEmployee, domain.RoleBookManager, domain.RoleAdmin)
		userRepo, roleRepo = memory, memory
	}

	readiness := []handlers.DependencyCheck{}
	if pg.Enabled() {
		readiness = append(readiness, handlers.DependencyCheck{Name: "postgres", Ping: pg.Ping})
	}

	var kv persistence.KVStore
	switch cfg.Auth.StoreBackend {
	case config.StoreBackendRedis:
		redis := persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
		kv = redis.KV(kvPrefix)
		readiness = append(readiness, handlers.DependencyCheck{Name: "redis", Ping: redis.Ping})
	default:
		memory := persistence.NewMemoryKV()
		memory.StartJanitor(ctx, janitorInterval, logger)
		kv = memory
		logger.Warn("using in-memory session store; revocations and reset tokens are lost on restart")
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger, metrics))

	authenticator, err := auth.NewAuthenticator(userRepo, cfg.Auth.BcryptCost)
	if err != nil {
		logger.Fatal("failed to init authenticator", zap.Error(err))
	}
	registry := auth.NewRevocationRegistry(kv, codec)

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:      userRepo,
		RoleRepo:      roleRepo,
		Authenticator: authenticator,
		Codec:         codec,
		Revocations:   registry,
		Resets:        auth.NewResetTokenStore(kv, cfg.Auth.PasswordResetTTL()),
		Dispatcher:    dispatcher,
		Logger:        logger,
	})

	guard := auth.NewGuard(codec, registry, auth.DefaultPolicy(), logger, auth.WithGuardMetrics(metrics))

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:       handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, metrics, readiness...),
		Auth:         handlers.NewAuthHandler(authService),
		Users:        handlers.NewUsersHandler(authService, logger),
		Guard:        guard,
		LoginLimiter: auth.NewLoginLimiter(cfg.Auth.LoginRatePerMinute),
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("store_backend", cfg.Auth.StoreBackend))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

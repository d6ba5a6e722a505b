package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/bug-snapshot-service/internal/api/http"
	"github.com/spec-kit/bug-snapshot-service/internal/api/http/handlers"
	"github.com/spec-kit/bug-snapshot-service/internal/auth"
	"github.com/spec-kit/bug-snapshot-service/internal/config"
	"github.com/spec-kit/bug-snapshot-service/internal/events"
	"github.com/spec-kit/bug-snapshot-service/internal/observability"
	"github.com/spec-kit/bug-snapshot-service/internal/persistence"
	"github.com/spec-kit/bug-snapshot-service/internal/repository"
	"github.com/spec-kit/bug-snapshot-service/internal/service"
	"github.com/spec-kit/bug-snapshot-service/internal/snapshot"
	"github.com/spec-kit/bug-snapshot-service/internal/worker"
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

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	allowlist := snapshot.DefaultAllowlist()
	if cfg.Snapshot.AllowlistPath != "" {
		allowlist, err = snapshot.LoadAllowlist(cfg.Snapshot.AllowlistPath)
		if err != nil {
			logger.Fatal("failed to load allowlist", zap.Error(err))
		}
	}

	metrics := observability.NewMetrics()
	engine := snapshot.NewEngine(allowlist, logger)
	bugRepo := repository.NewBugRepository(pg.PoolHandle())
	dispatcher := events.NewInMemoryDispatcher()

	snapshotService := service.NewSnapshotService(service.SnapshotDependencies{
		BugRepo:    bugRepo,
		Engine:     engine,
		Redis:      redis,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
		CacheTTL:   cfg.Snapshot.CacheTTL(),
		Products:   cfg.Snapshot.Products,
	})
	worker.StartPurgeWorker(snapshotService)

	keys, err := auth.NewKeyVerifier(cfg.Auth.ClientKeys)
	if err != nil {
		logger.Fatal("failed to parse client keys", zap.Error(err))
	}
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(keys, tokens),
		Bugs:           handlers.NewBugsHandler(snapshotService),
		Corpus:         handlers.NewCorpusHandler(snapshotService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

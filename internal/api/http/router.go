package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/bug-snapshot-service/internal/api/http/handlers"
	"github.com/spec-kit/bug-snapshot-service/internal/auth"
	"github.com/spec-kit/bug-snapshot-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Bugs           *handlers.BugsHandler
	Corpus         *handlers.CorpusHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/token", cfg.Auth.Token)

	bugs := app.Group("/bugs", cfg.AuthMiddleware.Handle,
		auth.RequireRole(domain.ClientRolePipeline, domain.ClientRoleAdmin))
	bugs.Get("/:id", cfg.Bugs.GetBug)
	bugs.Get("/:id/snapshot", cfg.Bugs.GetSnapshot)
	bugs.Post("/:id/snapshot", cfg.Bugs.PostSnapshot)
	bugs.Delete("/:id", auth.RequireAdmin(), cfg.Bugs.DeleteBug)

	corpus := app.Group("/corpus", cfg.AuthMiddleware.Handle, auth.RequireAdmin())
	corpus.Post("/validate", cfg.Corpus.Validate)
	corpus.Post("/records", cfg.Corpus.Ingest)
}

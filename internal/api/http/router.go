package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/hitl-service/internal/api/http/handlers"
	"github.com/spec-kit/hitl-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health    *handlers.HealthHandler
	Cases     *handlers.CasesHandler
	Operators *handlers.OperatorsHandler
	Stream    *handlers.StreamHandler
	Guard     *auth.Guard
	Session   *auth.SessionMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/operators/register", cfg.Operators.Register)
	authGroup.Post("/operators/login", cfg.Operators.Login)

	// The guard rejects invalid machine credentials; requests without a
	// bearer header fall through to session resolution.
	api := app.Group("/api", cfg.Guard.Handle, cfg.Session.Load)
	api.Get("/diagnostics", cfg.Health.Diagnostics)

	api.Post("/cases", cfg.Cases.CreateCase)
	api.Get("/cases", cfg.Cases.ListCases)
	api.Post("/cases/:caseId/messages", cfg.Cases.AppendMessage)
	api.Get("/cases/:caseId/messages", cfg.Cases.ListMessages)
	api.Post("/cases/:caseId/resolve", cfg.Cases.ResolveCase)

	api.Get("/stream", auth.RequireOperator(), cfg.Stream.Stream)
}

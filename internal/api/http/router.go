package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/maintenance-ticket-service/internal/api/http/handlers"
	"github.com/spec-kit/maintenance-ticket-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle, auth.RequirePrincipal())
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/history", cfg.Tickets.ListHistory)
	tickets.Get("/:id/comments", cfg.Tickets.ListComments)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)

	tickets.Post("/:id/assign", cfg.Tickets.Assign)
	tickets.Post("/:id/accept", cfg.Tickets.Accept)
	tickets.Post("/:id/reject", cfg.Tickets.Reject)
	tickets.Post("/:id/complete", cfg.Tickets.Complete)
	tickets.Post("/:id/escalate", cfg.Tickets.Escalate)
	tickets.Post("/:id/close", cfg.Tickets.Close)
	tickets.Post("/:id/reopen", cfg.Tickets.Reopen)
	tickets.Post("/:id/reassign", cfg.Tickets.Reassign)
}

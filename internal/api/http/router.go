package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/edu-patrimonio/workorder-service/internal/api/http/handlers"
	"github.com/edu-patrimonio/workorder-service/internal/auth"
	"github.com/edu-patrimonio/workorder-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Intake         *handlers.IntakeHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	// anonymous QR intake, guarded by the tenant intake key
	app.Post("/intake/:tenantID/tickets", cfg.Intake.CreateTicket)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/stats", cfg.Tickets.TicketStats)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/accept", auth.RequireRole(domain.ActorRoleTechnician), cfg.Tickets.AcceptTicket)
	tickets.Post("/:id/complete", auth.RequireRole(domain.ActorRoleTechnician), cfg.Tickets.CompleteTicket)
	tickets.Post("/:id/status", auth.RequireRole(domain.ActorRoleTechnician, domain.ActorRoleManager), cfg.Tickets.ChangeStatus)
	tickets.Post("/:id/assign", auth.RequireRole(domain.ActorRoleManager), cfg.Tickets.AssignTicket)
}

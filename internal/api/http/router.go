package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/ticket-router/internal/api/http/handlers"
	"github.com/spec-kit/ticket-router/internal/auth"
	"github.com/spec-kit/ticket-router/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	v1 := app.Group("/v1")
	v1.Post("/tickets/analyze", cfg.Tickets.Analyze)
	v1.Post("/tickets", cfg.Tickets.Submit)

	authn := cfg.AuthMiddleware.Handle
	anyStaff := auth.RequireStaffRole(auth.RoleSupportAgent, auth.RoleSupportLead)
	v1.Get("/tickets", authn, anyStaff, cfg.Tickets.ListTickets)
	v1.Post("/tickets/classify", authn, auth.RequireStaffRole(auth.RoleSupportLead), cfg.Tickets.Classify)
	v1.Get("/tickets/:id", authn, anyStaff, cfg.Tickets.GetTicket)
}

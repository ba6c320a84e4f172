package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/guest-requests/internal/api/dto"
	"github.com/spec-kit/guest-requests/internal/api/http/handlers"
	"github.com/spec-kit/guest-requests/internal/auth"
	"github.com/spec-kit/guest-requests/internal/domain"
	"github.com/spec-kit/guest-requests/internal/observability"
	"github.com/spec-kit/guest-requests/internal/workflow"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Reasons        *handlers.ReasonsHandler
	AuthMiddleware *auth.AuthMiddleware
	Idempotency    fiber.Handler
	Metrics        *observability.Metrics
}

var supervisorOnly = map[workflow.Kind]bool{
	workflow.KindApproveSupervisorRequest: true,
	workflow.KindRejectSupervisorRequest:  true,
	workflow.KindGrantSLAException:        true,
	workflow.KindRejectSLAException:       true,
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Handler())

	idempotent := cfg.Idempotency
	if idempotent == nil {
		idempotent = func(c *fiber.Ctx) error { return c.Next() }
	}

	v1 := app.Group("/v1", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())

	tickets := v1.Group("/tickets")
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", auth.RequireActorType(domain.ActorTypeGuest, domain.ActorTypeFrontDesk, domain.ActorTypeStaff), idempotent, cfg.Tickets.CreateTicket)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/events", cfg.Tickets.ListEvents)
	for _, kind := range workflow.AllKinds {
		route, ok := dto.TransitionRoutes[kind]
		if !ok {
			continue
		}
		chain := []fiber.Handler{idempotent}
		if supervisorOnly[kind] {
			chain = append([]fiber.Handler{auth.RequireStaffRole(domain.StaffRoleSupervisor, domain.StaffRoleManager)}, chain...)
		}
		chain = append(chain, cfg.Tickets.Transition(kind))
		tickets.Post("/:id/"+route, chain...)
	}

	reasons := v1.Group("/reasons")
	reasons.Get("/block", cfg.Reasons.BlockReasons)
	reasons.Get("/block/:code/unblock", cfg.Reasons.UnblockReasons)
	reasons.Get("/unblock", cfg.Reasons.AllUnblockReasons)
	reasons.Get("/cancel", cfg.Reasons.CancelReasons)
	reasons.Get("/sla-exception", cfg.Reasons.SLAExceptionReasons)
}

package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/guest-requests/internal/persistence"
)

const readinessTimeout = 2 * time.Second

type dependency interface {
	Enabled() bool
	Ping(ctx context.Context) error
}

type dependencyCheck struct {
	name string
	dep  dependency
}

// HealthHandler serves /health/live and /health/ready.
type HealthHandler struct {
	serviceName string
	version     string
	checks      []dependencyCheck
}

// NewHealthHandler checks Postgres and Redis on readiness. Either may be a
// zero wrapper when the service runs without it.
func NewHealthHandler(serviceName, version string, postgres *persistence.Postgres, redis *persistence.Redis) *HealthHandler {
	return &HealthHandler{
		serviceName: serviceName,
		version:     version,
		checks: []dependencyCheck{
			{name: "postgres", dep: postgres},
			{name: "redis", dep: redis},
		},
	}
}

func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready reports "ok", "disabled" or "unreachable" per dependency. Only an
// unreachable dependency makes the service unready.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
	defer cancel()

	statuses := fiber.Map{}
	ready := true
	for _, check := range h.checks {
		state := checkDependency(ctx, check.dep)
		statuses[check.name] = state
		if state == "unreachable" {
			ready = false
		}
	}

	if !ready {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "DEPENDENCY_UNAVAILABLE",
				"message": "one or more dependencies unavailable",
				"details": statuses,
			},
		})
	}
	return c.JSON(fiber.Map{
		"status":       "ready",
		"service":      h.serviceName,
		"dependencies": statuses,
	})
}

func checkDependency(ctx context.Context, dep dependency) string {
	switch {
	case !dep.Enabled():
		return "disabled"
	case dep.Ping(ctx) != nil:
		return "unreachable"
	default:
		return "ok"
	}
}

package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/guest-requests/internal/api/dto"
	"github.com/spec-kit/guest-requests/internal/auth"
	"github.com/spec-kit/guest-requests/internal/domain"
	"github.com/spec-kit/guest-requests/internal/observability"
	"github.com/spec-kit/guest-requests/internal/service"
	"github.com/spec-kit/guest-requests/internal/workflow"
	apperrors "github.com/spec-kit/guest-requests/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
	metrics *observability.Metrics
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, metrics *observability.Metrics) *TicketsHandler {
	return &TicketsHandler{service: ticketService, metrics: metrics}
}

// CreateTicket POST /v1/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.DepartmentID) == "" || strings.TrimSpace(req.Title) == "" {
		return apperrors.NewValidationError("department_id and title required", nil)
	}

	view, err := h.service.CreateTicket(c.UserContext(), actor, service.TicketCreateInput{
		LocationID:   req.LocationID,
		DepartmentID: req.DepartmentID,
		RoomID:       req.RoomID,
		Title:        req.Title,
		Description:  req.Description,
		Priority:     req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketViewResponse(*view)})
}

// ListTickets GET /v1/tickets returns the caller's snapshot.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	snap, err := h.service.Snapshot(c.UserContext(), actor)
	if err != nil {
		return err
	}
	h.metrics.RecordSnapshot(string(actor.Type))
	items := make([]dto.TicketViewResponse, 0, len(snap.Tickets))
	for _, v := range snap.Tickets {
		items = append(items, dto.NewTicketViewResponse(v))
	}
	return c.JSON(fiber.Map{"data": dto.SnapshotResponse{
		ActorID:   snap.ActorID,
		FetchedAt: snap.ServerTime,
		Tickets:   items,
	}})
}

// GetTicket GET /v1/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	view, err := h.service.GetTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketViewResponse(*view)})
}

// ListEvents GET /v1/tickets/:id/events.
func (h *TicketsHandler) ListEvents(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	evs, err := h.service.ListEvents(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.TicketEventResponse, 0, len(evs))
	for _, ev := range evs {
		items = append(items, dto.NewTicketEventResponse(ev))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Transition returns the handler for POST /v1/tickets/:id/<route of kind>.
func (h *TicketsHandler) Transition(kind workflow.Kind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := requireActor(c)
		if err != nil {
			return err
		}
		var req dto.TransitionRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return apperrors.NewValidationError("invalid payload", nil)
			}
		}
		view, err := h.service.Execute(c.UserContext(), actor, c.Params("id"), req.Command(kind, actor))
		if err != nil {
			h.metrics.RecordTransition(string(kind), apperrors.ToDomainError(err).Code)
			return err
		}
		h.metrics.RecordTransition(string(kind), "ok")
		return c.JSON(fiber.Map{"data": dto.NewTicketViewResponse(*view)})
	}
}

func requireActor(c *fiber.Ctx) (domain.Actor, error) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return domain.Actor{}, apperrors.NewUnauthorized("actor required")
	}
	return actor, nil
}

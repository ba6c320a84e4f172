package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/guest-requests/internal/audit"
	"github.com/spec-kit/guest-requests/internal/domain"
	"github.com/spec-kit/guest-requests/internal/events"
	"github.com/spec-kit/guest-requests/internal/reasons"
	"github.com/spec-kit/guest-requests/internal/repository"
	"github.com/spec-kit/guest-requests/internal/snapshot"
	"github.com/spec-kit/guest-requests/internal/workflow"
	apperrors "github.com/spec-kit/guest-requests/pkg/util/errorutil"
)

// TicketService executes ticket transitions atomically against the latest
// committed state and serves actor-scoped reads.
type TicketService struct {
	store      repository.TicketStore
	policies   repository.SLAPolicyRepository
	registry   *reasons.Registry
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store      repository.TicketStore
	Policies   repository.SLAPolicyRepository
	Registry   *reasons.Registry
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Now        func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	LocationID   string
	DepartmentID string
	RoomID       *string
	Title        string
	Description  string
	Priority     domain.TicketPriority
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &TicketService{
		store:      deps.Store,
		policies:   deps.Policies,
		registry:   deps.Registry,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        now,
	}
}

// Registry returns the reason catalog the service validates against.
func (s *TicketService) Registry() *reasons.Registry {
	return s.registry
}

// CreateTicket opens a NEW ticket with the SLA policy of its priority.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, input TicketCreateInput) (*domain.TicketView, error) {
	if err := workflow.AuthorizeCreate(actor); err != nil {
		return nil, err
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": priority})
	}
	if actor.Type == domain.ActorTypeGuest && input.RoomID == nil {
		return nil, apperrors.NewValidationError("room is required for guest requests", nil)
	}
	policy, err := s.policies.ForPriority(ctx, priority)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewValidationError("no SLA policy for priority", map[string]any{"priority": priority})
		}
		return nil, apperrors.MapError(err)
	}

	now := eventTime(s.now(), nil)
	res, err := workflow.NewTicket(workflow.CreateInput{
		ID:           uuid.NewString(),
		LocationID:   strings.TrimSpace(input.LocationID),
		DepartmentID: strings.TrimSpace(input.DepartmentID),
		RoomID:       input.RoomID,
		Title:        input.Title,
		Description:  input.Description,
		Priority:     priority,
	}, actor, policy, now)
	if err != nil {
		return nil, err
	}
	agg, err := s.store.Create(ctx, res)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publish(ctx, actor, agg, agg.Events)
	view := snapshot.BuildView(agg.Ticket, agg.SLA, agg.Events, now)
	return &view, nil
}

// Execute applies cmd to ticket ticketID on behalf of actor. Guards run
// against the locked latest state and the event time is read under the lock. A stale ExpectedVersion is a CONFLICT for
// every version-sensitive kind and for any guard failure.
func (s *TicketService) Execute(ctx context.Context, actor domain.Actor, ticketID string, cmd workflow.Command) (*domain.TicketView, error) {
	if !cmd.Kind.Valid() {
		return nil, apperrors.NewValidationError("unknown transition", map[string]any{"kind": cmd.Kind})
	}
	cmd.Actor = actor

	var now time.Time
	agg, appended, err := s.store.Transition(ctx, ticketID, func(current workflow.Aggregate) (workflow.Result, error) {
		now = eventTime(s.now(), current.Events)
		if !canSee(actor, current.Ticket) {
			return workflow.Result{}, pgx.ErrNoRows
		}
		if err := workflow.Authorize(actor, cmd.Kind, current.Ticket); err != nil {
			return workflow.Result{}, err
		}
		stale := cmd.ExpectedVersion != nil && *cmd.ExpectedVersion != current.Ticket.Version
		if stale && cmd.Kind.VersionSensitive() {
			return workflow.Result{}, conflict(current.Ticket, *cmd.ExpectedVersion)
		}
		res, err := workflow.Apply(current, cmd, s.registry, now)
		if err != nil {
			if stale && apperrors.IsGuardViolation(err) {
				return workflow.Result{}, conflict(current.Ticket, *cmd.ExpectedVersion)
			}
			return workflow.Result{}, err
		}
		return res, nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}

	s.logger.Debug("transition committed",
		zap.String("ticket_id", ticketID),
		zap.String("kind", string(cmd.Kind)),
		zap.Int64("version", agg.Ticket.Version),
		zap.Int("events", len(appended)))
	s.publish(ctx, actor, agg, appended)
	view := snapshot.BuildView(agg.Ticket, agg.SLA, agg.Events, now)
	return &view, nil
}

// GetTicket returns the current view of a ticket visible to actor.
func (s *TicketService) GetTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.TicketView, error) {
	agg, err := s.visible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	view := snapshot.BuildView(agg.Ticket, agg.SLA, agg.Events, s.now())
	return &view, nil
}

// ListEvents returns the ticket's audit trail in total order.
func (s *TicketService) ListEvents(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.TicketEvent, error) {
	agg, err := s.visible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	return audit.Sorted(agg.Events), nil
}

// Snapshot lists every ticket visible to actor with SLA remaining time
// computed at the returned server time.
func (s *TicketService) Snapshot(ctx context.Context, actor domain.Actor) (*snapshot.Snapshot, error) {
	filter := repository.TicketFilter{}
	if err := applyActorScope(&filter, actor); err != nil {
		return nil, err
	}
	aggs, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	now := s.now()
	snap := &snapshot.Snapshot{
		ActorID:    actor.IDValue(),
		ServerTime: now,
		Tickets:    make([]domain.TicketView, 0, len(aggs)),
	}
	for _, agg := range aggs {
		if !canSee(actor, agg.Ticket) {
			continue
		}
		snap.Tickets = append(snap.Tickets, snapshot.BuildView(agg.Ticket, agg.SLA, agg.Events, now))
	}
	return snap, nil
}

func (s *TicketService) visible(ctx context.Context, actor domain.Actor, ticketID string) (*workflow.Aggregate, error) {
	agg, err := s.store.Get(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	if !canSee(actor, agg.Ticket) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return agg, nil
}

func (s *TicketService) publish(ctx context.Context, actor domain.Actor, agg *workflow.Aggregate, appended []domain.TicketEvent) {
	if s.dispatcher == nil || len(appended) == 0 {
		return
	}
	event := events.Event{
		ID:         uuid.NewString(),
		Type:       events.TypeFor(appended),
		TicketID:   agg.Ticket.ID,
		LocationID: agg.Ticket.LocationID,
		Actor:      events.ActorOf(actor),
		Timestamp:  s.now(),
		Payload: events.TicketChangedPayload{
			Status:  agg.Ticket.Status,
			Version: agg.Ticket.Version,
			Events:  appended,
		},
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish change notification", zap.String("ticket_id", agg.Ticket.ID), zap.Error(err))
	}
}

// eventTime stamps a transition read under the ticket lock. It is truncated
// to the database's microsecond precision and never earlier than the latest
// recorded event, so (CreatedAt, Seq) order matches commit order.
func eventTime(now time.Time, history []domain.TicketEvent) time.Time {
	now = now.Truncate(time.Microsecond)
	for _, ev := range history {
		if ev.CreatedAt.After(now) {
			now = ev.CreatedAt
		}
	}
	return now
}

func conflict(current domain.Ticket, expected int64) error {
	return apperrors.NewConflict("ticket changed since it was read", map[string]any{
		"expected_version": expected,
		"current_version":  current.Version,
		"status":           current.Status,
	})
}

// applyActorScope narrows a listing to what actor may see.
func applyActorScope(filter *repository.TicketFilter, actor domain.Actor) error {
	if actor.Type == domain.ActorTypeSystem {
		if actor.LocationID != "" {
			filter.LocationID = &actor.LocationID
		}
		return nil
	}
	if actor.LocationID == "" {
		return apperrors.NewForbidden("actor has no location")
	}
	filter.LocationID = &actor.LocationID

	switch actor.Type {
	case domain.ActorTypeGuest:
		if actor.ID == nil {
			return apperrors.NewUnauthorized("guest identity required")
		}
		filter.CreatorID = actor.ID
	case domain.ActorTypeFrontDesk:
	case domain.ActorTypeStaff:
		if actor.Role != nil && *actor.Role == domain.StaffRoleManager {
			return nil
		}
		if actor.DepartmentID == nil {
			if actor.ID == nil {
				return apperrors.NewForbidden("staff without department or identity")
			}
			filter.AssigneeID = actor.ID
			return nil
		}
		filter.DepartmentID = actor.DepartmentID
		filter.OrAssigneeID = actor.ID
	default:
		return apperrors.NewForbidden("unknown actor type")
	}
	return nil
}

// canSee mirrors applyActorScope for a single ticket.
func canSee(actor domain.Actor, t domain.Ticket) bool {
	switch actor.Type {
	case domain.ActorTypeSystem:
		return actor.LocationID == "" || actor.LocationID == t.LocationID
	case domain.ActorTypeGuest:
		return actor.ID != nil && t.CreatorID != nil && *t.CreatorID == *actor.ID && t.LocationID == actor.LocationID
	case domain.ActorTypeFrontDesk:
		return t.LocationID == actor.LocationID
	case domain.ActorTypeStaff:
		if t.LocationID != actor.LocationID {
			return false
		}
		if actor.Role != nil && *actor.Role == domain.StaffRoleManager {
			return true
		}
		if actor.ID != nil && t.AssigneeID != nil && *t.AssigneeID == *actor.ID {
			return true
		}
		return actor.DepartmentID != nil && *actor.DepartmentID == t.DepartmentID
	}
	return false
}

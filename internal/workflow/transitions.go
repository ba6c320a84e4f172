package workflow

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/guest-requests/internal/domain"
	"github.com/spec-kit/guest-requests/internal/reasons"
	"github.com/spec-kit/guest-requests/internal/sla"
	apperrors "github.com/spec-kit/guest-requests/pkg/util/errorutil"
)

var eventTypes = map[Kind]domain.TicketEventType{
	KindAssign:                   domain.EventAssigned,
	KindStart:                    domain.EventStarted,
	KindComplete:                 domain.EventCompleted,
	KindBlock:                    domain.EventBlocked,
	KindUpdateBlock:              domain.EventBlockUpdated,
	KindUnblock:                  domain.EventUnblocked,
	KindCancel:                   domain.EventCancelled,
	KindRequestSupervisor:        domain.EventSupervisorRequested,
	KindCancelSupervisorRequest:  domain.EventSupervisorRequestCancelled,
	KindApproveSupervisorRequest: domain.EventSupervisorApproved,
	KindRejectSupervisorRequest:  domain.EventSupervisorRejected,
	KindRequestSLAException:      domain.EventSLAExceptionRequested,
	KindGrantSLAException:        domain.EventSLAExceptionGranted,
	KindRejectSLAException:       domain.EventSLAExceptionRejected,
	KindAddComment:               domain.EventCommentAdded,
	KindBreach:                   domain.EventSLABreached,
}

// Apply validates cmd against agg and returns the transition's full effect.
// When the clock has run out at now and the breach is not yet recorded, an
// SLA_BREACHED event precedes the transition's own event.
func Apply(agg Aggregate, cmd Command, reg *reasons.Registry, now time.Time) (Result, error) {
	if cmd.Kind == KindBreach {
		if !sla.ShouldBreach(agg.SLA, now) {
			return Result{}, guardViolation(cmd.Kind, agg.Ticket.Status, "SLA has not run out")
		}
	} else if err := Check(FactsFrom(agg), cmd, reg, now); err != nil {
		return Result{}, err
	}

	t := agg.Ticket
	s := agg.SLA
	events := make([]domain.TicketEvent, 0, 2)

	if cmd.Kind != KindBreach && sla.ShouldBreach(s, now) {
		s = sla.MarkBreached(s, now)
		events = append(events, newEvent(t.ID, domain.EventSLABreached, domain.SystemActor(t.LocationID), now))
	}

	ev := newEvent(t.ID, eventTypes[cmd.Kind], cmd.Actor, now)
	ev.Comment = optional(cmd.Comment)

	switch cmd.Kind {
	case KindAssign:
		assignee := strings.TrimSpace(cmd.AssigneeID)
		t.AssigneeID = &assignee
		ev.AssigneeID = &assignee
	case KindStart:
		setStatus(&t, &ev, domain.TicketStatusInProgress)
		s = sla.Start(s, now)
	case KindComplete:
		setStatus(&t, &ev, domain.TicketStatusCompleted)
		t.CompletedAt = timePtr(now)
		s = sla.Stop(s, now)
	case KindBlock:
		reason, _ := reg.Active(domain.ReasonKindBlock, cmd.ReasonCode)
		setStatus(&t, &ev, domain.TicketStatusBlocked)
		t.CurrentBlockReason = stringPtr(reason.Code)
		if reason.PausesSLA {
			s = sla.Pause(s, now)
		}
		ev.ReasonCode = stringPtr(reason.Code)
		ev.ResumeAfter = cmd.ResumeAfter
	case KindUpdateBlock:
		reason, _ := reg.Active(domain.ReasonKindBlock, cmd.ReasonCode)
		setStatus(&t, &ev, domain.TicketStatusBlocked)
		t.CurrentBlockReason = stringPtr(reason.Code)
		if reason.PausesSLA {
			s = sla.Pause(s, now)
		} else {
			s = sla.Resume(s, now)
		}
		ev.ReasonCode = stringPtr(reason.Code)
		ev.ResumeAfter = cmd.ResumeAfter
	case KindUnblock:
		setStatus(&t, &ev, domain.TicketStatusInProgress)
		t.CurrentBlockReason = nil
		s = sla.Resume(s, now)
		ev.ReasonCode = optional(cmd.ReasonCode)
	case KindCancel:
		setStatus(&t, &ev, domain.TicketStatusCancelled)
		t.CancelledAt = timePtr(now)
		s = sla.Stop(s, now)
		ev.ReasonCode = optional(cmd.ReasonCode)
	case KindRequestSLAException:
		ev.ReasonCode = optional(cmd.ReasonCode)
	case KindGrantSLAException:
		s = sla.Exempt(s)
	case KindBreach:
		s = sla.MarkBreached(s, now)
	}

	t.Version++
	t.UpdatedAt = now
	return Result{Ticket: t, SLA: s, Events: append(events, ev)}, nil
}

// CreateInput describes a new ticket.
type CreateInput struct {
	ID           string
	LocationID   string
	DepartmentID string
	RoomID       *string
	Title        string
	Description  string
	Priority     domain.TicketPriority
}

// NewTicket builds a NEW ticket, its stopped-not-started SLA state and the
// CREATED event.
func NewTicket(in CreateInput, actor domain.Actor, policy domain.SLAPolicy, now time.Time) (Result, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return Result{}, apperrors.NewValidationError("title is required", nil)
	}
	if strings.TrimSpace(in.DepartmentID) == "" {
		return Result{}, apperrors.NewValidationError("department is required", nil)
	}
	location := in.LocationID
	if location == "" {
		location = actor.LocationID
	}
	if location == "" {
		return Result{}, apperrors.NewValidationError("location is required", nil)
	}
	if actor.Type == domain.ActorTypeGuest && location != actor.LocationID {
		return Result{}, apperrors.NewForbidden("guests may only open requests at their own hotel")
	}
	if policy.TargetMinutes <= 0 {
		return Result{}, apperrors.NewValidationError("SLA policy has no target", map[string]any{"policy_id": policy.ID})
	}
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	priority := in.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}

	t := domain.Ticket{
		ID:           id,
		LocationID:   location,
		DepartmentID: in.DepartmentID,
		RoomID:       in.RoomID,
		Title:        title,
		Description:  strings.TrimSpace(in.Description),
		Status:       domain.TicketStatusNew,
		Priority:     priority,
		CreatorType:  actor.Type,
		CreatorID:    actor.ID,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s := domain.SLAState{TicketID: id, PolicyID: policy.ID, TargetMinutes: policy.TargetMinutes}
	ev := newEvent(id, domain.EventCreated, actor, now)
	status := domain.TicketStatusNew
	ev.NewStatus = &status
	return Result{Ticket: t, SLA: s, Events: []domain.TicketEvent{ev}}, nil
}

func newEvent(ticketID string, typ domain.TicketEventType, actor domain.Actor, now time.Time) domain.TicketEvent {
	return domain.TicketEvent{
		ID:        uuid.NewString(),
		TicketID:  ticketID,
		Type:      typ,
		ActorType: actor.Type,
		ActorID:   actor.ID,
		CreatedAt: now,
	}
}

func setStatus(t *domain.Ticket, ev *domain.TicketEvent, next domain.TicketStatus) {
	prev := t.Status
	ev.PreviousStatus = &prev
	ev.NewStatus = &next
	t.Status = next
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func stringPtr(s string) *string {
	return &s
}

func timePtr(t time.Time) *time.Time {
	return &t
}

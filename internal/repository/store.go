package repository

import (
	"context"
	"time"

	"github.com/spec-kit/guest-requests/internal/domain"
	"github.com/spec-kit/guest-requests/internal/workflow"
)

// TransitionFunc computes a transition from the latest committed aggregate.
// Returning an error aborts the transition and nothing is written.
type TransitionFunc func(agg workflow.Aggregate) (workflow.Result, error)

// TicketStore persists ticket aggregates: the ticket row, its SLA state and
// its append-only event stream. Missing tickets are reported as pgx.ErrNoRows.
type TicketStore interface {
	// Create stores a new aggregate. Seq is assigned to each event.
	Create(ctx context.Context, res workflow.Result) (*workflow.Aggregate, error)
	Get(ctx context.Context, id string) (*workflow.Aggregate, error)
	// Transition runs fn against the locked latest state and commits its
	// result atomically. It returns the new aggregate and the appended events.
	Transition(ctx context.Context, id string, fn TransitionFunc) (*workflow.Aggregate, []domain.TicketEvent, error)
	List(ctx context.Context, filter TicketFilter) ([]workflow.Aggregate, error)
}

// TicketFilter captures listing parameters. A zero Limit lists everything.
type TicketFilter struct {
	LocationID   *string
	CreatorID    *string
	DepartmentID *string
	AssigneeID   *string
	// OrAssigneeID widens DepartmentID to also match tickets assigned to it.
	OrAssigneeID *string
	Statuses     []domain.TicketStatus
	Priorities   []domain.TicketPriority
	Unassigned   bool
	UpdatedFrom  *time.Time
	Limit        int
	Offset       int
}

// Matches evaluates the filter against a ticket in memory.
func (f TicketFilter) Matches(t domain.Ticket) bool {
	if f.LocationID != nil && t.LocationID != *f.LocationID {
		return false
	}
	if f.CreatorID != nil && (t.CreatorID == nil || *t.CreatorID != *f.CreatorID) {
		return false
	}
	if f.DepartmentID != nil && t.DepartmentID != *f.DepartmentID {
		assigned := f.OrAssigneeID != nil && t.AssigneeID != nil && *t.AssigneeID == *f.OrAssigneeID
		if !assigned {
			return false
		}
	}
	if f.AssigneeID != nil && (t.AssigneeID == nil || *t.AssigneeID != *f.AssigneeID) {
		return false
	}
	if f.Unassigned && t.AssigneeID != nil {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, t.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !containsPriority(f.Priorities, t.Priority) {
		return false
	}
	if f.UpdatedFrom != nil && t.UpdatedAt.Before(*f.UpdatedFrom) {
		return false
	}
	return true
}

func containsStatus(list []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, candidate := range list {
		if candidate == s {
			return true
		}
	}
	return false
}

func containsPriority(list []domain.TicketPriority, p domain.TicketPriority) bool {
	for _, candidate := range list {
		if candidate == p {
			return true
		}
	}
	return false
}

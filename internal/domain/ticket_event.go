package domain

import "time"

// TicketEventType enumerates the audit trail entries.
type TicketEventType string

const (
	EventCreated                    TicketEventType = "CREATED"
	EventAssigned                   TicketEventType = "ASSIGNED"
	EventStarted                    TicketEventType = "STARTED"
	EventBlocked                    TicketEventType = "BLOCKED"
	EventBlockUpdated               TicketEventType = "BLOCK_UPDATED"
	EventUnblocked                  TicketEventType = "UNBLOCKED"
	EventCompleted                  TicketEventType = "COMPLETED"
	EventCancelled                  TicketEventType = "CANCELLED"
	EventSupervisorRequested        TicketEventType = "SUPERVISOR_REQUESTED"
	EventSupervisorApproved         TicketEventType = "SUPERVISOR_APPROVED"
	EventSupervisorRejected         TicketEventType = "SUPERVISOR_REJECTED"
	EventSupervisorRequestCancelled TicketEventType = "SUPERVISOR_REQUEST_CANCELLED"
	EventSLAExceptionRequested      TicketEventType = "SLA_EXCEPTION_REQUESTED"
	EventSLAExceptionGranted        TicketEventType = "SLA_EXCEPTION_GRANTED"
	EventSLAExceptionRejected       TicketEventType = "SLA_EXCEPTION_REJECTED"
	EventSLABreached                TicketEventType = "SLA_BREACHED"
	EventCommentAdded               TicketEventType = "COMMENT_ADDED"
)

// AffectsSLA reports whether the event changes SLA clock or breach state.
func (t TicketEventType) AffectsSLA() bool {
	switch t {
	case EventStarted, EventBlocked, EventBlockUpdated, EventUnblocked, EventCompleted, EventCancelled,
		EventSLAExceptionGranted, EventSLABreached:
		return true
	}
	return false
}

// TicketEvent is an immutable audit trail entry. Events are totally ordered by
// (CreatedAt, Seq); Seq is assigned by the store at commit.
type TicketEvent struct {
	ID             string
	Seq            int64
	TicketID       string
	Type           TicketEventType
	PreviousStatus *TicketStatus
	NewStatus      *TicketStatus
	ReasonCode     *string
	Comment        *string
	ActorType      ActorType
	ActorID        *string
	AssigneeID     *string
	ResumeAfter    *time.Time
	CreatedAt      time.Time
}

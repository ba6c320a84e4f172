package dto

import (
	"time"

	"github.com/spec-kit/guest-requests/internal/domain"
	"github.com/spec-kit/guest-requests/internal/workflow"
)

// Envelope wraps every successful response body.
type Envelope[T any] struct {
	Data T `json:"data"`
}

// ErrorResponse is the error envelope written by the error middleware.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries a taxonomy code.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	LocationID   string                `json:"location_id"`
	DepartmentID string                `json:"department_id"`
	RoomID       *string               `json:"room_id"`
	Title        string                `json:"title"`
	Description  string                `json:"description"`
	Priority     domain.TicketPriority `json:"priority"`
}

// TransitionRequest is the body of every transition endpoint. Fields a
// transition does not use are ignored.
type TransitionRequest struct {
	ReasonCode      string     `json:"reason_code,omitempty"`
	Comment         string     `json:"comment,omitempty"`
	ResumeAfter     *time.Time `json:"resume_after,omitempty"`
	AssigneeID      string     `json:"assignee_id,omitempty"`
	ExpectedVersion *int64     `json:"expected_version,omitempty"`
}

// TransitionRoutes maps each client-callable transition to its path below
// /v1/tickets/:id.
var TransitionRoutes = map[workflow.Kind]string{
	workflow.KindAssign:                   "assign",
	workflow.KindStart:                    "start",
	workflow.KindComplete:                 "complete",
	workflow.KindBlock:                    "block",
	workflow.KindUpdateBlock:              "update-block",
	workflow.KindUnblock:                  "unblock",
	workflow.KindCancel:                   "cancel",
	workflow.KindAddComment:               "comments",
	workflow.KindRequestSupervisor:        "supervisor/request",
	workflow.KindCancelSupervisorRequest:  "supervisor/cancel",
	workflow.KindApproveSupervisorRequest: "supervisor/approve",
	workflow.KindRejectSupervisorRequest:  "supervisor/reject",
	workflow.KindRequestSLAException:      "sla-exception/request",
	workflow.KindGrantSLAException:        "sla-exception/grant",
	workflow.KindRejectSLAException:       "sla-exception/reject",
}

// NewTransitionRequest builds the wire body of cmd.
func NewTransitionRequest(cmd workflow.Command) TransitionRequest {
	return TransitionRequest{
		ReasonCode:      cmd.ReasonCode,
		Comment:         cmd.Comment,
		ResumeAfter:     cmd.ResumeAfter,
		AssigneeID:      cmd.AssigneeID,
		ExpectedVersion: cmd.ExpectedVersion,
	}
}

// Command converts the body into a command for kind issued by actor.
func (r TransitionRequest) Command(kind workflow.Kind, actor domain.Actor) workflow.Command {
	return workflow.Command{
		Kind:            kind,
		Actor:           actor,
		ReasonCode:      r.ReasonCode,
		Comment:         r.Comment,
		ResumeAfter:     r.ResumeAfter,
		AssigneeID:      r.AssigneeID,
		ExpectedVersion: r.ExpectedVersion,
	}
}

// TicketResponse is the wire form of a ticket.
type TicketResponse struct {
	ID                 string                `json:"id"`
	LocationID         string                `json:"location_id"`
	DepartmentID       string                `json:"department_id"`
	RoomID             *string               `json:"room_id"`
	AssigneeID         *string               `json:"assignee_id"`
	Title              string                `json:"title"`
	Description        string                `json:"description"`
	Status             domain.TicketStatus   `json:"status"`
	Priority           domain.TicketPriority `json:"priority"`
	CreatorType        domain.ActorType      `json:"creator_type"`
	CreatorID          *string               `json:"creator_id"`
	CurrentBlockReason *string               `json:"current_block_reason"`
	Version            int64                 `json:"version"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
	CompletedAt        *time.Time            `json:"completed_at"`
	CancelledAt        *time.Time            `json:"cancelled_at"`
}

// SLAResponse is the server-computed SLA summary of a ticket. A null
// remaining_seconds means no countdown applies.
type SLAResponse struct {
	TargetMinutes    int    `json:"target_minutes"`
	RemainingSeconds *int64 `json:"remaining_seconds"`
	Paused           bool   `json:"paused"`
	Breached         bool   `json:"breached"`
	Exempted         bool   `json:"exempted"`
}

// TicketViewResponse is a ticket with its SLA summary and pending requests.
type TicketViewResponse struct {
	Ticket                   TicketResponse `json:"ticket"`
	SLA                      SLAResponse    `json:"sla"`
	PendingSupervisorRequest bool           `json:"pending_supervisor_request"`
	PendingSLAException      bool           `json:"pending_sla_exception"`
	ComputedAt               time.Time      `json:"computed_at"`
}

// SnapshotResponse lists the tickets visible to the caller.
type SnapshotResponse struct {
	ActorID   string               `json:"actor_id"`
	FetchedAt time.Time            `json:"fetched_at"`
	Tickets   []TicketViewResponse `json:"tickets"`
}

// TicketEventResponse is one audit entry.
type TicketEventResponse struct {
	ID             string                 `json:"id"`
	Seq            int64                  `json:"seq"`
	TicketID       string                 `json:"ticket_id"`
	Type           domain.TicketEventType `json:"type"`
	PreviousStatus *domain.TicketStatus   `json:"previous_status"`
	NewStatus      *domain.TicketStatus   `json:"new_status"`
	ReasonCode     *string                `json:"reason_code"`
	Comment        *string                `json:"comment"`
	ActorType      domain.ActorType       `json:"actor_type"`
	ActorID        *string                `json:"actor_id"`
	AssigneeID     *string                `json:"assignee_id,omitempty"`
	ResumeAfter    *time.Time             `json:"resume_after,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// NewTicketResponse converts a ticket.
func NewTicketResponse(t domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:                 t.ID,
		LocationID:         t.LocationID,
		DepartmentID:       t.DepartmentID,
		RoomID:             t.RoomID,
		AssigneeID:         t.AssigneeID,
		Title:              t.Title,
		Description:        t.Description,
		Status:             t.Status,
		Priority:           t.Priority,
		CreatorType:        t.CreatorType,
		CreatorID:          t.CreatorID,
		CurrentBlockReason: t.CurrentBlockReason,
		Version:            t.Version,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
		CompletedAt:        t.CompletedAt,
		CancelledAt:        t.CancelledAt,
	}
}

// Domain converts back to a ticket.
func (r TicketResponse) Domain() domain.Ticket {
	return domain.Ticket{
		ID:                 r.ID,
		LocationID:         r.LocationID,
		DepartmentID:       r.DepartmentID,
		RoomID:             r.RoomID,
		AssigneeID:         r.AssigneeID,
		Title:              r.Title,
		Description:        r.Description,
		Status:             r.Status,
		Priority:           r.Priority,
		CreatorType:        r.CreatorType,
		CreatorID:          r.CreatorID,
		CurrentBlockReason: r.CurrentBlockReason,
		Version:            r.Version,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
		CompletedAt:        r.CompletedAt,
		CancelledAt:        r.CancelledAt,
	}
}

// NewTicketViewResponse converts a view.
func NewTicketViewResponse(v domain.TicketView) TicketViewResponse {
	return TicketViewResponse{
		Ticket: NewTicketResponse(v.Ticket),
		SLA: SLAResponse{
			TargetMinutes:    v.SLATargetMinutes,
			RemainingSeconds: v.SLARemainingSeconds,
			Paused:           v.SLAPaused,
			Breached:         v.SLABreached,
			Exempted:         v.SLAExempted,
		},
		PendingSupervisorRequest: v.PendingSupervisorRequest,
		PendingSLAException:      v.PendingSLAException,
		ComputedAt:               v.ComputedAt,
	}
}

// Domain converts back to a view.
func (r TicketViewResponse) Domain() domain.TicketView {
	return domain.TicketView{
		Ticket:                   r.Ticket.Domain(),
		SLATargetMinutes:         r.SLA.TargetMinutes,
		SLARemainingSeconds:      r.SLA.RemainingSeconds,
		SLAPaused:                r.SLA.Paused,
		SLABreached:              r.SLA.Breached,
		SLAExempted:              r.SLA.Exempted,
		PendingSupervisorRequest: r.PendingSupervisorRequest,
		PendingSLAException:      r.PendingSLAException,
		ComputedAt:               r.ComputedAt,
	}
}

// NewTicketEventResponse converts an event.
func NewTicketEventResponse(e domain.TicketEvent) TicketEventResponse {
	return TicketEventResponse{
		ID:             e.ID,
		Seq:            e.Seq,
		TicketID:       e.TicketID,
		Type:           e.Type,
		PreviousStatus: e.PreviousStatus,
		NewStatus:      e.NewStatus,
		ReasonCode:     e.ReasonCode,
		Comment:        e.Comment,
		ActorType:      e.ActorType,
		ActorID:        e.ActorID,
		AssigneeID:     e.AssigneeID,
		ResumeAfter:    e.ResumeAfter,
		CreatedAt:      e.CreatedAt,
	}
}

// Domain converts back to an event.
func (r TicketEventResponse) Domain() domain.TicketEvent {
	return domain.TicketEvent{
		ID:             r.ID,
		Seq:            r.Seq,
		TicketID:       r.TicketID,
		Type:           r.Type,
		PreviousStatus: r.PreviousStatus,
		NewStatus:      r.NewStatus,
		ReasonCode:     r.ReasonCode,
		Comment:        r.Comment,
		ActorType:      r.ActorType,
		ActorID:        r.ActorID,
		AssigneeID:     r.AssigneeID,
		ResumeAfter:    r.ResumeAfter,
		CreatedAt:      r.CreatedAt,
	}
}

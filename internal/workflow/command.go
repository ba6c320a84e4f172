// Package workflow is the ticket state machine. It is pure: guards and effects
// are computed from an aggregate and a command, and the caller commits the
// result atomically. The same guards run on the client for responsiveness and
// on the server against the latest committed state.
package workflow

import (
	"time"

	"github.com/spec-kit/guest-requests/internal/domain"
)

// Kind names a transition.
type Kind string

const (
	KindAssign                   Kind = "assign"
	KindStart                    Kind = "start"
	KindComplete                 Kind = "complete"
	KindBlock                    Kind = "block"
	KindUpdateBlock              Kind = "update_block"
	KindUnblock                  Kind = "unblock"
	KindCancel                   Kind = "cancel"
	KindRequestSupervisor        Kind = "request_supervisor"
	KindCancelSupervisorRequest  Kind = "cancel_supervisor_request"
	KindApproveSupervisorRequest Kind = "approve_supervisor_request"
	KindRejectSupervisorRequest  Kind = "reject_supervisor_request"
	KindRequestSLAException      Kind = "request_sla_exception"
	KindGrantSLAException        Kind = "grant_sla_exception"
	KindRejectSLAException       Kind = "reject_sla_exception"
	KindAddComment               Kind = "add_comment"
	KindBreach                   Kind = "breach"
)

// AllKinds lists every transition in presentation order.
var AllKinds = []Kind{
	KindAssign, KindStart, KindComplete, KindBlock, KindUpdateBlock, KindUnblock, KindCancel,
	KindRequestSupervisor, KindCancelSupervisorRequest, KindApproveSupervisorRequest, KindRejectSupervisorRequest,
	KindRequestSLAException, KindGrantSLAException, KindRejectSLAException,
	KindAddComment, KindBreach,
}

// Valid reports whether k is a known transition.
func (k Kind) Valid() bool {
	for _, candidate := range AllKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// VersionSensitive reports whether a stale expected version must reject the
// command. Comments never depend on the state they were written against.
func (k Kind) VersionSensitive() bool {
	return k != KindAddComment
}

// Command is an actor's intent. Empty strings mean "not supplied".
type Command struct {
	Kind            Kind
	Actor           domain.Actor
	ReasonCode      string
	Comment         string
	ResumeAfter     *time.Time
	AssigneeID      string
	ExpectedVersion *int64
}

// Aggregate is the committed state of one ticket.
type Aggregate struct {
	Ticket domain.Ticket
	SLA    domain.SLAState
	Events []domain.TicketEvent
}

// Result is the full effect of a transition: the new ticket and SLA state plus
// the events to append. It must be committed all together or not at all.
type Result struct {
	Ticket domain.Ticket
	SLA    domain.SLAState
	Events []domain.TicketEvent
}

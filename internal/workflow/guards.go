package workflow

import (
	"strings"
	"time"

	"github.com/spec-kit/guest-requests/internal/audit"
	"github.com/spec-kit/guest-requests/internal/domain"
	"github.com/spec-kit/guest-requests/internal/reasons"
	apperrors "github.com/spec-kit/guest-requests/pkg/util/errorutil"
)

// Facts is the subset of ticket state guards depend on. It can be built from a
// committed aggregate or from a snapshot view.
type Facts struct {
	Ticket            domain.Ticket
	SLAExempted       bool
	SupervisorPending bool
	ExceptionPending  bool
}

// FactsFrom derives guard facts from a committed aggregate.
func FactsFrom(agg Aggregate) Facts {
	_, supervisorPending := audit.PendingSupervisorRequest(agg.Events)
	_, exceptionPending := audit.PendingSLAException(agg.Events)
	return Facts{
		Ticket:            agg.Ticket,
		SLAExempted:       agg.SLA.Exempted,
		SupervisorPending: supervisorPending,
		ExceptionPending:  exceptionPending,
	}
}

// FactsFromView derives guard facts from a snapshot view.
func FactsFromView(v domain.TicketView) Facts {
	return Facts{
		Ticket:            v.Ticket,
		SLAExempted:       v.SLAExempted,
		SupervisorPending: v.PendingSupervisorRequest,
		ExceptionPending:  v.PendingSLAException,
	}
}

// Check runs the state guard and then the input validation for cmd.
func Check(f Facts, cmd Command, reg *reasons.Registry, now time.Time) error {
	if err := Guard(f, cmd.Kind); err != nil {
		return err
	}
	return Validate(f, cmd, reg, now)
}

// Guard checks the state precondition of a transition, ignoring its input.
func Guard(f Facts, kind Kind) error {
	status := f.Ticket.Status
	switch kind {
	case KindAssign:
		if status.Terminal() {
			return guardViolation(kind, status, "ticket is closed")
		}
	case KindStart:
		return requireStatus(kind, status, domain.TicketStatusNew)
	case KindComplete, KindBlock:
		return requireStatus(kind, status, domain.TicketStatusInProgress)
	case KindUpdateBlock, KindUnblock:
		return requireStatus(kind, status, domain.TicketStatusBlocked)
	case KindCancel:
		return requireStatus(kind, status, domain.TicketStatusNew, domain.TicketStatusInProgress)
	case KindRequestSupervisor:
		if err := requireStatus(kind, status, domain.TicketStatusBlocked); err != nil {
			return err
		}
		if f.SupervisorPending {
			return guardViolation(kind, status, "a supervisor request is already pending")
		}
	case KindCancelSupervisorRequest, KindApproveSupervisorRequest, KindRejectSupervisorRequest:
		if !f.SupervisorPending {
			return guardViolation(kind, status, "no supervisor request is pending")
		}
	case KindRequestSLAException:
		if err := requireStatus(kind, status, domain.TicketStatusInProgress, domain.TicketStatusBlocked); err != nil {
			return err
		}
		if f.SLAExempted {
			return guardViolation(kind, status, "ticket is already exempted")
		}
		if f.ExceptionPending {
			return guardViolation(kind, status, "an SLA exception request is already pending")
		}
	case KindGrantSLAException, KindRejectSLAException:
		if !f.ExceptionPending {
			return guardViolation(kind, status, "no SLA exception request is pending")
		}
	case KindAddComment, KindBreach:
	default:
		return apperrors.NewValidationError("unknown transition", map[string]any{"kind": kind})
	}
	return nil
}

// Validate checks the command input: reason codes, mandatory comments and
// resume times. It assumes Guard passed.
func Validate(f Facts, cmd Command, reg *reasons.Registry, now time.Time) error {
	comment := strings.TrimSpace(cmd.Comment)
	switch cmd.Kind {
	case KindAssign:
		if strings.TrimSpace(cmd.AssigneeID) == "" {
			return apperrors.NewValidationError("assignee is required", nil)
		}
	case KindBlock, KindUpdateBlock:
		reason, ok := reg.Active(domain.ReasonKindBlock, cmd.ReasonCode)
		if !ok {
			return invalidReason(domain.ReasonKindBlock, cmd.ReasonCode)
		}
		if err := requireComment(reason, comment); err != nil {
			return err
		}
		if reason.RequiresResumeAt && cmd.ResumeAfter == nil {
			return apperrors.NewValidationError("resume time is required for this reason", map[string]any{"reason_code": reason.Code})
		}
		if cmd.ResumeAfter != nil && !cmd.ResumeAfter.After(now) {
			return apperrors.NewValidationError("resume time must be in the future", nil)
		}
	case KindUnblock:
		return validateUnblock(f, cmd, comment, reg)
	case KindCancel:
		reason, ok := reg.Active(domain.ReasonKindCancel, cmd.ReasonCode)
		if !ok {
			return invalidReason(domain.ReasonKindCancel, cmd.ReasonCode)
		}
		return requireComment(reason, comment)
	case KindRequestSLAException:
		if _, ok := reg.Active(domain.ReasonKindSLAException, cmd.ReasonCode); !ok {
			return invalidReason(domain.ReasonKindSLAException, cmd.ReasonCode)
		}
		if comment == "" {
			return apperrors.NewValidationError("comment is required", map[string]any{"reason_code": cmd.ReasonCode})
		}
	case KindAddComment:
		if comment == "" {
			return apperrors.NewValidationError("comment is required", nil)
		}
	}
	return nil
}

// validateUnblock follows the reason-coded path: when the matrix offers
// reasons for the current block reason one of them is required, otherwise the
// ticket unblocks without one and any supplied code must still be a valid
// active unblock reason.
func validateUnblock(f Facts, cmd Command, comment string, reg *reasons.Registry) error {
	blockCode := ""
	if f.Ticket.CurrentBlockReason != nil {
		blockCode = *f.Ticket.CurrentBlockReason
	}
	_, required := reg.CompatibleUnblockReasons(blockCode)
	if cmd.ReasonCode == "" {
		if required {
			return apperrors.NewValidationError("unblock reason is required", map[string]any{"block_reason": blockCode})
		}
		return nil
	}
	reason, ok := reg.Active(domain.ReasonKindUnblock, cmd.ReasonCode)
	if !ok {
		return invalidReason(domain.ReasonKindUnblock, cmd.ReasonCode)
	}
	if required && !reg.IsCompatible(blockCode, cmd.ReasonCode) {
		return apperrors.NewValidationError("unblock reason does not match block reason", map[string]any{
			"block_reason":   blockCode,
			"unblock_reason": cmd.ReasonCode,
		})
	}
	return requireComment(reason, comment)
}

func requireStatus(kind Kind, status domain.TicketStatus, allowed ...domain.TicketStatus) error {
	for _, candidate := range allowed {
		if status == candidate {
			return nil
		}
	}
	return guardViolation(kind, status, "transition not allowed from current status")
}

func guardViolation(kind Kind, status domain.TicketStatus, message string) error {
	return apperrors.NewGuardViolation(message, map[string]any{"kind": kind, "status": status})
}

func invalidReason(kind domain.ReasonKind, code string) error {
	return apperrors.NewValidationError("unknown or inactive reason", map[string]any{"reason_kind": kind, "reason_code": code})
}

func requireComment(reason domain.Reason, comment string) error {
	if reason.RequiresComment && comment == "" {
		return apperrors.NewValidationError("comment is required for this reason", map[string]any{"reason_code": reason.Code})
	}
	return nil
}

package audit

import "github.com/spec-kit/guest-requests/internal/domain"

var (
	supervisorOutcomes = []domain.TicketEventType{
		domain.EventSupervisorApproved,
		domain.EventSupervisorRejected,
		domain.EventSupervisorRequestCancelled,
	}
	exceptionOutcomes = []domain.TicketEventType{
		domain.EventSLAExceptionGranted,
		domain.EventSLAExceptionRejected,
	}
)

// PendingSupervisorRequest returns the latest SUPERVISOR_REQUESTED event when
// no approval, rejection or cancellation follows it in the ordered stream.
func PendingSupervisorRequest(events []domain.TicketEvent) (domain.TicketEvent, bool) {
	return pending(events, domain.EventSupervisorRequested, supervisorOutcomes)
}

// PendingSLAException returns the latest SLA_EXCEPTION_REQUESTED event when no
// strictly later grant or rejection exists.
func PendingSLAException(events []domain.TicketEvent) (domain.TicketEvent, bool) {
	return pending(events, domain.EventSLAExceptionRequested, exceptionOutcomes)
}

func pending(events []domain.TicketEvent, request domain.TicketEventType, outcomes []domain.TicketEventType) (domain.TicketEvent, bool) {
	ordered := Sorted(events)
	idx := -1
	for i := len(ordered) - 1; i >= 0; i-- {
		if ordered[i].Type == request {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.TicketEvent{}, false
	}
	for _, ev := range ordered[idx+1:] {
		if hasType(ev.Type, outcomes) {
			return domain.TicketEvent{}, false
		}
	}
	return ordered[idx], true
}

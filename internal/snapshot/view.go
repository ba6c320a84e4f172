package snapshot

import (
	"time"

	"github.com/spec-kit/guest-requests/internal/audit"
	"github.com/spec-kit/guest-requests/internal/domain"
	"github.com/spec-kit/guest-requests/internal/sla"
)

// BuildView computes the server-side view of a ticket at now. The remaining
// seconds are frozen at now; clients project them forward from ReceivedAt.
func BuildView(t domain.Ticket, s domain.SLAState, events []domain.TicketEvent, now time.Time) domain.TicketView {
	view := domain.TicketView{
		Ticket:           t,
		SLATargetMinutes: s.TargetMinutes,
		SLAPaused:        s.PausedAt != nil,
		SLABreached:      s.Breached,
		SLAExempted:      s.Exempted,
		ComputedAt:       now,
	}
	if remaining, ok := sla.RemainingSeconds(s, now); ok {
		view.SLARemainingSeconds = &remaining
	}
	_, view.PendingSupervisorRequest = audit.PendingSupervisorRequest(events)
	_, view.PendingSLAException = audit.PendingSLAException(events)
	return view
}

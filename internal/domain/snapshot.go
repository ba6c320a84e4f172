package domain

import "time"

// TicketView is a ticket as seen in a snapshot, with the SLA remaining time
// computed by the server at fetch time. SLARemainingSeconds is nil when the
// ticket is exempted from SLA accounting.
type TicketView struct {
	Ticket                   Ticket
	SLATargetMinutes         int
	SLARemainingSeconds      *int64
	SLAPaused                bool
	SLABreached              bool
	SLAExempted              bool
	PendingSupervisorRequest bool
	PendingSLAException      bool
	ComputedAt               time.Time
}

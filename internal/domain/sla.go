package domain

import "time"

// SLAPolicy defines the target resolution time for a priority.
type SLAPolicy struct {
	ID            string
	Name          string
	Priority      TicketPriority
	TargetMinutes int
}

// SLAState tracks the clock of a single ticket.
//
// PausedAt is non-nil only while the ticket is BLOCKED on a pausing reason.
// Breached never reverts; Exempted freezes breach accounting for good.
type SLAState struct {
	TicketID           string
	PolicyID           string
	TargetMinutes      int
	StartedAt          *time.Time
	PausedAt           *time.Time
	TotalPausedSeconds int64
	Breached           bool
	BreachedAt         *time.Time
	Exempted           bool
	StoppedAt          *time.Time
}

package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew        TicketStatus = "NEW"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusBlocked    TicketStatus = "BLOCKED"
	TicketStatusCompleted  TicketStatus = "COMPLETED"
	TicketStatusCancelled  TicketStatus = "CANCELLED"
)

// Valid reports whether s is one of the five lifecycle states.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusNew, TicketStatusInProgress, TicketStatusBlocked, TicketStatusCompleted, TicketStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions leave s.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusCompleted || s == TicketStatusCancelled
}

// TicketPriority selects the SLA policy applied at creation.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// Ticket is the aggregate for a guest service request.
//
// CurrentBlockReason is non-nil only while Status is BLOCKED. Version is bumped
// by every committed transition and is used to detect stale client intents.
type Ticket struct {
	ID                 string
	LocationID         string
	DepartmentID       string
	RoomID             *string
	AssigneeID         *string
	Title              string
	Description        string
	Status             TicketStatus
	Priority           TicketPriority
	CreatorType        ActorType
	CreatorID          *string
	CurrentBlockReason *string
	Version            int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
	CompletedAt        *time.Time
	CancelledAt        *time.Time
}

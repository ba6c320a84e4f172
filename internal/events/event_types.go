package events

import (
	"time"

	"github.com/spec-kit/guest-requests/internal/domain"
)

// EventType enumerates supported event identifiers. They double as the
// notification kinds clients receive.
type EventType string

const (
	EventTicketChanged EventType = "ticket_changed"
	EventSLAChanged    EventType = "sla_changed"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type domain.ActorType `json:"type"`
	ID   *string          `json:"id,omitempty"`
}

// Event represents a committed change emitted by services.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	TicketID   string      `json:"ticket_id"`
	LocationID string      `json:"location_id"`
	Actor      Actor       `json:"actor"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    interface{} `json:"payload"`
}

// TicketChangedPayload carries the audit entries appended by one commit.
type TicketChangedPayload struct {
	Status  domain.TicketStatus  `json:"status"`
	Version int64                `json:"version"`
	Events  []domain.TicketEvent `json:"events"`
}

// TypeFor picks sla_changed when any appended event moves the clock.
func TypeFor(appended []domain.TicketEvent) EventType {
	for _, ev := range appended {
		if ev.Type.AffectsSLA() {
			return EventSLAChanged
		}
	}
	return EventTicketChanged
}

// ActorOf converts a domain actor.
func ActorOf(a domain.Actor) Actor {
	return Actor{Type: a.Type, ID: a.ID}
}

// Package notify delivers committed ticket changes outside the process: a
// lightweight change notification on Redis pub/sub for connected clients and
// the full audit entries on Kafka for downstream consumers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spec-kit/guest-requests/internal/events"
)

// Notification is the payload clients receive. Any message is a refresh
// trigger; clients never apply it as state.
type Notification struct {
	TicketID string           `json:"ticket_id"`
	Kind     events.EventType `json:"kind"`
}

// Sink receives committed changes.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event events.Event) error
}

// Channel is the pub/sub channel for a location.
func Channel(prefix, locationID string) string {
	return fmt.Sprintf("%s:%s:tickets", prefix, locationID)
}

// Decode parses a channel message.
func Decode(payload string) (Notification, error) {
	var n Notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return Notification{}, fmt.Errorf("decode notification: %w", err)
	}
	return n, nil
}

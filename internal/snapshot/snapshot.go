// Package snapshot holds the client's view of the tickets visible to an actor
// and keeps it fresh: periodic and triggered refreshes, plus a local countdown
// that projects SLA remaining time between fetches without consulting the
// device clock against the server clock.
package snapshot

import (
	"context"
	"time"

	"github.com/spec-kit/guest-requests/internal/domain"
)

// Snapshot is the set of tickets visible to one actor at fetch time.
// ServerTime comes from the server; ReceivedAt is stamped locally on receipt
// and is the only instant projections are measured from.
type Snapshot struct {
	ActorID    string
	ServerTime time.Time
	ReceivedAt time.Time
	Tickets    []domain.TicketView
}

// Source fetches snapshots for an actor.
type Source interface {
	FetchSnapshot(ctx context.Context, actorID string) (*Snapshot, error)
}

// Find returns the view of ticketID, if visible.
func (s *Snapshot) Find(ticketID string) (domain.TicketView, bool) {
	if s == nil {
		return domain.TicketView{}, false
	}
	for _, v := range s.Tickets {
		if v.Ticket.ID == ticketID {
			return v, true
		}
	}
	return domain.TicketView{}, false
}

// Contains reports whether ticketID is visible in the snapshot.
func (s *Snapshot) Contains(ticketID string) bool {
	_, ok := s.Find(ticketID)
	return ok
}

// IDs returns the visible ticket ids in snapshot order.
func (s *Snapshot) IDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, 0, len(s.Tickets))
	for _, v := range s.Tickets {
		ids = append(ids, v.Ticket.ID)
	}
	return ids
}

// ProjectRemaining returns the SLA seconds left at now, measured locally from
// receivedAt: max(0, snapshotRemaining - floor(now - receivedAt)). The boolean
// is false when no countdown applies.
func ProjectRemaining(v domain.TicketView, receivedAt, now time.Time) (int64, bool) {
	if v.SLARemainingSeconds == nil {
		return 0, false
	}
	remaining := *v.SLARemainingSeconds
	if !Ticking(v) {
		return remaining, true
	}
	elapsed := int64(now.Sub(receivedAt) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	remaining -= elapsed
	if remaining < 0 {
		return 0, true
	}
	return remaining, true
}

// Ticking reports whether the view's SLA clock was running at fetch time: the
// ticket is started, not closed, not paused and not breached.
func Ticking(v domain.TicketView) bool {
	if v.SLARemainingSeconds == nil || v.SLAPaused || v.SLABreached {
		return false
	}
	switch v.Ticket.Status {
	case domain.TicketStatusInProgress, domain.TicketStatusBlocked:
		return true
	}
	return false
}

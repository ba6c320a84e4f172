// Package audit orders and folds a ticket's append-only event stream.
package audit

import (
	"sort"

	"github.com/spec-kit/guest-requests/internal/domain"
)

// Less orders events by creation time, breaking ties by sequence number.
func Less(a, b domain.TicketEvent) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Seq < b.Seq
}

// Sorted returns a copy of events in total order. The input is not modified.
func Sorted(events []domain.TicketEvent) []domain.TicketEvent {
	out := append([]domain.TicketEvent(nil), events...)
	sort.SliceStable(out, func(i, j int) bool { return Less(out[i], out[j]) })
	return out
}

// Latest returns the last event of any of the given types.
func Latest(events []domain.TicketEvent, types ...domain.TicketEventType) (domain.TicketEvent, bool) {
	ordered := Sorted(events)
	for i := len(ordered) - 1; i >= 0; i-- {
		if hasType(ordered[i].Type, types) {
			return ordered[i], true
		}
	}
	return domain.TicketEvent{}, false
}

func hasType(t domain.TicketEventType, types []domain.TicketEventType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

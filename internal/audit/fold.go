package audit

import (
	"errors"
	"fmt"
	"time"

	"github.com/spec-kit/guest-requests/internal/domain"
	"github.com/spec-kit/guest-requests/internal/sla"
)

// ErrEmptyStream is returned when folding a stream without a CREATED event.
var ErrEmptyStream = errors.New("event stream does not start with CREATED")

// PauseLookup reports whether a block reason pauses the SLA clock.
type PauseLookup func(blockCode string) bool

// Projection is the current state derived purely from the event stream.
type Projection struct {
	Status             domain.TicketStatus
	CurrentBlockReason *string
	AssigneeID         *string
	CompletedAt        *time.Time
	CancelledAt        *time.Time
	SLA                domain.SLAState
	LastEvent          domain.TicketEvent
}

// Fold replays events from CREATED forward. base supplies the SLA fields that
// do not come from events (ticket id, policy, target minutes). A nil pauses
// treats every block reason as non-pausing.
func Fold(events []domain.TicketEvent, base domain.SLAState, pauses PauseLookup) (Projection, error) {
	if pauses == nil {
		pauses = func(string) bool { return false }
	}
	ordered := Sorted(events)
	if len(ordered) == 0 || ordered[0].Type != domain.EventCreated {
		return Projection{}, ErrEmptyStream
	}
	p := Projection{
		Status: domain.TicketStatusNew,
		SLA: domain.SLAState{
			TicketID:      base.TicketID,
			PolicyID:      base.PolicyID,
			TargetMinutes: base.TargetMinutes,
		},
	}
	for i, ev := range ordered {
		if i > 0 && ev.Type == domain.EventCreated {
			return Projection{}, fmt.Errorf("event %s: duplicate CREATED", ev.ID)
		}
		if ev.NewStatus != nil {
			if !ev.NewStatus.Valid() {
				return Projection{}, fmt.Errorf("event %s: invalid status %q", ev.ID, *ev.NewStatus)
			}
			if p.Status.Terminal() && *ev.NewStatus != p.Status {
				return Projection{}, fmt.Errorf("event %s: transition out of terminal %s", ev.ID, p.Status)
			}
		}
		at := ev.CreatedAt
		switch ev.Type {
		case domain.EventAssigned:
			p.AssigneeID = ev.AssigneeID
		case domain.EventStarted:
			p.SLA = sla.Start(p.SLA, at)
		case domain.EventBlocked:
			p.CurrentBlockReason = ev.ReasonCode
			if ev.ReasonCode != nil && pauses(*ev.ReasonCode) {
				p.SLA = sla.Pause(p.SLA, at)
			}
		case domain.EventBlockUpdated:
			p.CurrentBlockReason = ev.ReasonCode
			if ev.ReasonCode != nil && pauses(*ev.ReasonCode) {
				p.SLA = sla.Pause(p.SLA, at)
			} else {
				p.SLA = sla.Resume(p.SLA, at)
			}
		case domain.EventUnblocked:
			p.CurrentBlockReason = nil
			p.SLA = sla.Resume(p.SLA, at)
		case domain.EventCompleted:
			p.CompletedAt = timePtr(at)
			p.SLA = sla.Stop(p.SLA, at)
		case domain.EventCancelled:
			p.CancelledAt = timePtr(at)
			p.SLA = sla.Stop(p.SLA, at)
		case domain.EventSLABreached:
			p.SLA = sla.MarkBreached(p.SLA, at)
		case domain.EventSLAExceptionGranted:
			p.SLA = sla.Exempt(p.SLA)
		}
		if ev.NewStatus != nil {
			p.Status = *ev.NewStatus
		}
		if p.Status != domain.TicketStatusBlocked {
			p.CurrentBlockReason = nil
		}
		p.LastEvent = ev
	}
	return p, nil
}

func timePtr(t time.Time) *time.Time {
	return &t
}

package audit_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/guest-requests/internal/audit"
	"github.com/spec-kit/guest-requests/internal/domain"
	"github.com/spec-kit/guest-requests/internal/reasons"
	"github.com/spec-kit/guest-requests/internal/workflow"
)

var t0 = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func ev(seq int64, typ domain.TicketEventType, at time.Time) domain.TicketEvent {
	return domain.TicketEvent{ID: string(typ), Seq: seq, Type: typ, CreatedAt: at}
}

func TestSorted_BreaksTiesBySeq(t *testing.T) {
	events := []domain.TicketEvent{
		ev(3, domain.EventSupervisorRequestCancelled, t0),
		ev(2, domain.EventSupervisorRequested, t0),
		ev(1, domain.EventCreated, t0.Add(-time.Minute)),
	}
	got := audit.Sorted(events)
	assert.Equal(t, int64(1), got[0].Seq)
	assert.Equal(t, int64(2), got[1].Seq)
	assert.Equal(t, int64(3), got[2].Seq)
	assert.Equal(t, int64(3), events[0].Seq, "input untouched")

	_, pending := audit.PendingSupervisorRequest(events)
	assert.False(t, pending, "cancellation with equal timestamp but later seq resolves the request")
}

func TestPendingSupervisorRequest(t *testing.T) {
	events := []domain.TicketEvent{
		ev(1, domain.EventCreated, t0),
		ev(2, domain.EventSupervisorRequested, t0.Add(time.Minute)),
	}
	req, pending := audit.PendingSupervisorRequest(events)
	require.True(t, pending)
	assert.Equal(t, int64(2), req.Seq)

	for _, outcome := range []domain.TicketEventType{
		domain.EventSupervisorApproved,
		domain.EventSupervisorRejected,
		domain.EventSupervisorRequestCancelled,
	} {
		resolved := append(append([]domain.TicketEvent(nil), events...), ev(3, outcome, t0.Add(2*time.Minute)))
		_, pending := audit.PendingSupervisorRequest(resolved)
		assert.False(t, pending, string(outcome))

		// a newer request reopens the window
		reopened := append(resolved, ev(4, domain.EventSupervisorRequested, t0.Add(3*time.Minute)))
		_, pending = audit.PendingSupervisorRequest(reopened)
		assert.True(t, pending, string(outcome))
	}

	// an outcome older than the request does not resolve it
	stale := []domain.TicketEvent{
		ev(1, domain.EventSupervisorRejected, t0),
		ev(2, domain.EventSupervisorRequested, t0.Add(time.Minute)),
	}
	_, pending = audit.PendingSupervisorRequest(stale)
	assert.True(t, pending)
}

func TestPendingSupervisorRequest_IgnoresUnrelatedInterleavings(t *testing.T) {
	noise := []domain.TicketEventType{domain.EventCommentAdded, domain.EventBlockUpdated, domain.EventAssigned}
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 200; round++ {
		var events []domain.TicketEvent
		seq := int64(0)
		at := t0
		next := func(typ domain.TicketEventType) {
			seq++
			at = at.Add(time.Duration(rng.Intn(3)) * time.Second) // equal timestamps are common
			events = append(events, ev(seq, typ, at))
		}
		sprinkle := func() {
			for i := rng.Intn(4); i > 0; i-- {
				next(noise[rng.Intn(len(noise))])
			}
		}
		next(domain.EventCreated)
		sprinkle()
		next(domain.EventSupervisorRequested)
		sprinkle()
		resolved := rng.Intn(2) == 0
		if resolved {
			next(domain.EventSupervisorApproved)
			sprinkle()
		}
		rng.Shuffle(len(events), func(i, j int) { events[i], events[j] = events[j], events[i] })

		_, pending := audit.PendingSupervisorRequest(events)
		assert.Equal(t, !resolved, pending, "round %d", round)
	}
}

func TestPendingSLAException(t *testing.T) {
	events := []domain.TicketEvent{
		ev(1, domain.EventCreated, t0),
		ev(2, domain.EventSLAExceptionRequested, t0.Add(time.Minute)),
	}
	_, pending := audit.PendingSLAException(events)
	assert.True(t, pending)

	events = append(events, ev(3, domain.EventSLAExceptionGranted, t0.Add(2*time.Minute)))
	_, pending = audit.PendingSLAException(events)
	assert.False(t, pending)
}

func TestLatest(t *testing.T) {
	events := []domain.TicketEvent{
		ev(2, domain.EventBlockUpdated, t0.Add(2*time.Minute)),
		ev(1, domain.EventBlocked, t0.Add(time.Minute)),
		ev(3, domain.EventCommentAdded, t0.Add(3*time.Minute)),
	}
	got, ok := audit.Latest(events, domain.EventBlocked, domain.EventBlockUpdated)
	require.True(t, ok)
	assert.Equal(t, int64(2), got.Seq)

	_, ok = audit.Latest(events, domain.EventCompleted)
	assert.False(t, ok)
}

func TestFold_RejectsMalformedStreams(t *testing.T) {
	_, err := audit.Fold(nil, domain.SLAState{}, nil)
	assert.ErrorIs(t, err, audit.ErrEmptyStream)

	completed := domain.TicketStatusCompleted
	started := domain.TicketStatusInProgress
	events := []domain.TicketEvent{
		ev(1, domain.EventCreated, t0),
		{Seq: 2, Type: domain.EventCompleted, NewStatus: &completed, CreatedAt: t0.Add(time.Minute)},
		{Seq: 3, Type: domain.EventStarted, NewStatus: &started, CreatedAt: t0.Add(2 * time.Minute)},
	}
	_, err = audit.Fold(events, domain.SLAState{}, func(string) bool { return false })
	assert.Error(t, err)
}

func TestFold_NilPauseLookup(t *testing.T) {
	started := domain.TicketStatusInProgress
	blocked := domain.TicketStatusBlocked
	code := "waiting_for_parts"
	events := []domain.TicketEvent{
		ev(1, domain.EventCreated, t0),
		{Seq: 2, Type: domain.EventStarted, NewStatus: &started, CreatedAt: t0.Add(time.Minute)},
		{Seq: 3, Type: domain.EventBlocked, NewStatus: &blocked, ReasonCode: &code, CreatedAt: t0.Add(2 * time.Minute)},
	}

	var p audit.Projection
	var err error
	require.NotPanics(t, func() { p, err = audit.Fold(events, domain.SLAState{TargetMinutes: 30}, nil) })
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusBlocked, p.Status)
	assert.Equal(t, &code, p.CurrentBlockReason)
	assert.Nil(t, p.SLA.PausedAt)
}

// randomWalk drives the state machine with random valid and invalid commands
// and returns the committed aggregate.
func randomWalk(t *testing.T, reg *reasons.Registry, rng *rand.Rand, steps int) workflow.Aggregate {
	t.Helper()
	role := domain.StaffRoleSupervisor
	staff := domain.Actor{Type: domain.ActorTypeStaff, ID: strPtr("s-1"), Role: &role, LocationID: "hotel-1"}
	res, err := workflow.NewTicket(workflow.CreateInput{Title: "Fix AC", DepartmentID: "maintenance"}, staff,
		domain.SLAPolicy{ID: "p", TargetMinutes: 45}, t0)
	require.NoError(t, err)

	var agg workflow.Aggregate
	seq := int64(0)
	commit := func(r workflow.Result) {
		agg.Ticket, agg.SLA = r.Ticket, r.SLA
		for _, e := range r.Events {
			seq++
			e.Seq = seq
			agg.Events = append(agg.Events, e)
		}
	}
	commit(res)

	blockCodes := []string{"waiting_for_parts", "room_access_denied", "guest_not_in_room", "something_else"}
	unblockCodes := []string{"", "parts_arrived", "access_granted", "guest_available"}
	now := t0
	for i := 0; i < steps; i++ {
		now = now.Add(time.Duration(rng.Intn(240)) * time.Second)
		cmd := workflow.Command{Actor: staff, Comment: "note"}
		cmd.Kind = workflow.AllKinds[rng.Intn(len(workflow.AllKinds))]
		switch cmd.Kind {
		case workflow.KindBlock, workflow.KindUpdateBlock:
			cmd.ReasonCode = blockCodes[rng.Intn(len(blockCodes))]
		case workflow.KindUnblock:
			cmd.ReasonCode = unblockCodes[rng.Intn(len(unblockCodes))]
		case workflow.KindCancel:
			cmd.ReasonCode = "duplicate_request"
		case workflow.KindRequestSLAException:
			cmd.ReasonCode = "vendor_delay"
		case workflow.KindAssign:
			cmd.AssigneeID = "s-2"
		}
		if r, err := workflow.Apply(agg, cmd, reg, now); err == nil {
			commit(r)
		}
	}
	return agg
}

func TestFold_ReproducesCommittedState(t *testing.T) {
	reg, err := reasons.Default()
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(7))

	for walk := 0; walk < 100; walk++ {
		agg := randomWalk(t, reg, rng, 40)

		shuffled := append([]domain.TicketEvent(nil), agg.Events...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		p, err := audit.Fold(shuffled, domain.SLAState{TicketID: agg.SLA.TicketID, PolicyID: "p", TargetMinutes: 45}, reg.PausesSLA)
		require.NoError(t, err, "walk %d", walk)

		assert.True(t, agg.Ticket.Status.Valid())
		assert.Equal(t, agg.Ticket.Status, p.Status, "walk %d", walk)
		assert.Equal(t, agg.Ticket.CurrentBlockReason, p.CurrentBlockReason, "walk %d", walk)
		assert.Equal(t, agg.Ticket.Status == domain.TicketStatusBlocked, agg.Ticket.CurrentBlockReason != nil, "walk %d", walk)
		assert.Equal(t, agg.Ticket.AssigneeID, p.AssigneeID, "walk %d", walk)
		assert.Equal(t, agg.SLA, p.SLA, "walk %d", walk)
		if agg.SLA.PausedAt != nil {
			assert.Equal(t, domain.TicketStatusBlocked, agg.Ticket.Status, "paused implies blocked")
		}
	}
}

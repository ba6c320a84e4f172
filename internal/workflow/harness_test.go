package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/guest-requests/internal/domain"
	"github.com/spec-kit/guest-requests/internal/reasons"
)

var t0 = time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func staffActor(role domain.StaffRole) domain.Actor {
	r := role
	return domain.Actor{Type: domain.ActorTypeStaff, ID: strPtr("staff-" + string(role)), Role: &r, LocationID: "hotel-1"}
}

func guestActor(id string) domain.Actor {
	return domain.Actor{Type: domain.ActorTypeGuest, ID: strPtr(id), LocationID: "hotel-1"}
}

// harness plays the role of the store: it commits results and stamps seqs.
type harness struct {
	t   *testing.T
	reg *reasons.Registry
	agg Aggregate
	seq int64
}

func newHarness(t *testing.T, targetMinutes int) *harness {
	t.Helper()
	reg, err := reasons.Default()
	require.NoError(t, err)
	h := &harness{t: t, reg: reg}
	res, err := NewTicket(CreateInput{
		ID:           "ticket-1",
		DepartmentID: "housekeeping",
		Title:        "Extra towels",
	}, guestActor("guest-1"), domain.SLAPolicy{ID: "p", TargetMinutes: targetMinutes}, t0)
	require.NoError(t, err)
	h.commit(res)
	return h
}

func (h *harness) commit(res Result) {
	h.agg.Ticket = res.Ticket
	h.agg.SLA = res.SLA
	for _, ev := range res.Events {
		h.seq++
		ev.Seq = h.seq
		h.agg.Events = append(h.agg.Events, ev)
	}
}

func (h *harness) apply(cmd Command, at time.Time) error {
	res, err := Apply(h.agg, cmd, h.reg, at)
	if err != nil {
		return err
	}
	h.commit(res)
	return nil
}

func (h *harness) must(cmd Command, at time.Time) {
	h.t.Helper()
	require.NoError(h.t, h.apply(cmd, at))
}

func (h *harness) staff(kind Kind) Command {
	return Command{Kind: kind, Actor: staffActor(domain.StaffRoleAgent)}
}

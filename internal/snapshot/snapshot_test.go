package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/guest-requests/internal/domain"
)

var t0 = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

func int64Ptr(v int64) *int64 { return &v }

func runningView(id string, remaining int64) domain.TicketView {
	return domain.TicketView{
		Ticket:              domain.Ticket{ID: id, Status: domain.TicketStatusInProgress},
		SLATargetMinutes:    30,
		SLARemainingSeconds: int64Ptr(remaining),
	}
}

func TestProjectRemaining(t *testing.T) {
	got, ok := ProjectRemaining(runningView("a", 120), t0, t0.Add(45*time.Second))
	require.True(t, ok)
	assert.Equal(t, int64(75), got)

	got, ok = ProjectRemaining(runningView("a", 130), t0, t0.Add(200*time.Second))
	require.True(t, ok)
	assert.Equal(t, int64(0), got)

	got, _ = ProjectRemaining(runningView("a", 120), t0, t0.Add(45*time.Second+900*time.Millisecond))
	assert.Equal(t, int64(75), got, "partial seconds are floored")

	got, _ = ProjectRemaining(runningView("a", 120), t0, t0.Add(-5*time.Second))
	assert.Equal(t, int64(120), got, "local clock going backwards never adds time")
}

func TestProjectRemaining_NotTicking(t *testing.T) {
	exempted := runningView("a", 0)
	exempted.SLARemainingSeconds = nil
	exempted.SLAExempted = true
	_, ok := ProjectRemaining(exempted, t0, t0.Add(time.Minute))
	assert.False(t, ok)

	paused := runningView("a", 300)
	paused.Ticket.Status = domain.TicketStatusBlocked
	paused.SLAPaused = true
	got, ok := ProjectRemaining(paused, t0, t0.Add(time.Minute))
	require.True(t, ok)
	assert.Equal(t, int64(300), got)

	blockedRunning := runningView("a", 300)
	blockedRunning.Ticket.Status = domain.TicketStatusBlocked
	got, _ = ProjectRemaining(blockedRunning, t0, t0.Add(time.Minute))
	assert.Equal(t, int64(240), got, "non-pausing block keeps the clock running")

	notStarted := runningView("a", 1800)
	notStarted.Ticket.Status = domain.TicketStatusNew
	got, _ = ProjectRemaining(notStarted, t0, t0.Add(time.Minute))
	assert.Equal(t, int64(1800), got)

	done := runningView("a", 42)
	done.Ticket.Status = domain.TicketStatusCompleted
	got, _ = ProjectRemaining(done, t0, t0.Add(time.Hour))
	assert.Equal(t, int64(42), got)
}

func TestSnapshotFind(t *testing.T) {
	snap := &Snapshot{Tickets: []domain.TicketView{runningView("a", 1), runningView("b", 2)}}
	v, ok := snap.Find("b")
	require.True(t, ok)
	assert.Equal(t, int64(2), *v.SLARemainingSeconds)
	assert.False(t, snap.Contains("c"))
	assert.Equal(t, []string{"a", "b"}, snap.IDs())

	var empty *Snapshot
	assert.False(t, empty.Contains("a"))
	assert.Nil(t, empty.IDs())
}

func TestBuildView(t *testing.T) {
	started := t0
	paused := t0.Add(10 * time.Minute)
	s := domain.SLAState{TicketID: "a", TargetMinutes: 30, StartedAt: &started, PausedAt: &paused}
	events := []domain.TicketEvent{
		{Seq: 1, Type: domain.EventCreated, CreatedAt: t0},
		{Seq: 2, Type: domain.EventSupervisorRequested, CreatedAt: t0.Add(11 * time.Minute)},
	}
	v := BuildView(domain.Ticket{ID: "a", Status: domain.TicketStatusBlocked}, s, events, t0.Add(20*time.Minute))
	require.NotNil(t, v.SLARemainingSeconds)
	assert.Equal(t, int64(20*60), *v.SLARemainingSeconds)
	assert.True(t, v.SLAPaused)
	assert.True(t, v.PendingSupervisorRequest)
	assert.False(t, v.PendingSLAException)
	assert.Equal(t, 30, v.SLATargetMinutes)

	s.Exempted = true
	v = BuildView(domain.Ticket{ID: "a"}, s, events, t0)
	assert.Nil(t, v.SLARemainingSeconds)
	assert.True(t, v.SLAExempted)
}

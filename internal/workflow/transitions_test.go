package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/guest-requests/internal/domain"
	"github.com/spec-kit/guest-requests/internal/sla"
	apperrors "github.com/spec-kit/guest-requests/pkg/util/errorutil"
)

func TestScenario_PausingBlockThenUnblock(t *testing.T) {
	h := newHarness(t, 30)

	h.must(h.staff(KindStart), t0)
	require.NotNil(t, h.agg.SLA.StartedAt)
	assert.Equal(t, t0, *h.agg.SLA.StartedAt)

	block := h.staff(KindBlock)
	block.ReasonCode = "waiting_for_parts"
	h.must(block, t0.Add(10*time.Minute))
	require.NotNil(t, h.agg.SLA.PausedAt)
	assert.Equal(t, t0.Add(10*time.Minute), *h.agg.SLA.PausedAt)
	assert.Equal(t, domain.TicketStatusBlocked, h.agg.Ticket.Status)
	assert.Equal(t, "waiting_for_parts", *h.agg.Ticket.CurrentBlockReason)

	unblock := h.staff(KindUnblock)
	unblock.ReasonCode = "parts_arrived"
	h.must(unblock, t0.Add(25*time.Minute))
	assert.Equal(t, int64(15*60), h.agg.SLA.TotalPausedSeconds)
	assert.Nil(t, h.agg.SLA.PausedAt)
	assert.Nil(t, h.agg.Ticket.CurrentBlockReason)

	remaining, ok := sla.RemainingSeconds(h.agg.SLA, t0.Add(40*time.Minute))
	require.True(t, ok)
	assert.Equal(t, int64(300), remaining)
}

func TestScenario_NonPausingBlockKeepsPausedTotal(t *testing.T) {
	h := newHarness(t, 30)
	h.must(h.staff(KindStart), t0)

	block := h.staff(KindBlock)
	block.ReasonCode = "room_access_denied"
	h.must(block, t0.Add(5*time.Minute))
	assert.Nil(t, h.agg.SLA.PausedAt)

	unblock := h.staff(KindUnblock)
	unblock.ReasonCode = "access_granted"
	h.must(unblock, t0.Add(20*time.Minute))
	assert.Equal(t, int64(0), h.agg.SLA.TotalPausedSeconds)
}

func TestComplete_IsNotRepeatable(t *testing.T) {
	h := newHarness(t, 30)
	h.must(h.staff(KindStart), t0)
	h.must(h.staff(KindComplete), t0.Add(time.Minute))
	before := len(h.agg.Events)

	err := h.apply(h.staff(KindComplete), t0.Add(2*time.Minute))
	require.Error(t, err)
	assert.True(t, apperrors.IsGuardViolation(err))
	assert.Len(t, h.agg.Events, before, "no second COMPLETED event")
	assert.Equal(t, domain.TicketStatusCompleted, h.agg.Ticket.Status)
	require.NotNil(t, h.agg.Ticket.CompletedAt)
	require.NotNil(t, h.agg.SLA.StoppedAt)
}

func TestGuards_StatusPreconditions(t *testing.T) {
	cases := []struct {
		kind   Kind
		status domain.TicketStatus
		ok     bool
	}{
		{KindStart, domain.TicketStatusNew, true},
		{KindStart, domain.TicketStatusInProgress, false},
		{KindComplete, domain.TicketStatusNew, false},
		{KindComplete, domain.TicketStatusInProgress, true},
		{KindComplete, domain.TicketStatusBlocked, false},
		{KindBlock, domain.TicketStatusInProgress, true},
		{KindBlock, domain.TicketStatusBlocked, false},
		{KindUpdateBlock, domain.TicketStatusBlocked, true},
		{KindUpdateBlock, domain.TicketStatusInProgress, false},
		{KindUnblock, domain.TicketStatusBlocked, true},
		{KindUnblock, domain.TicketStatusNew, false},
		{KindCancel, domain.TicketStatusNew, true},
		{KindCancel, domain.TicketStatusInProgress, true},
		{KindCancel, domain.TicketStatusBlocked, false},
		{KindCancel, domain.TicketStatusCompleted, false},
		{KindRequestSupervisor, domain.TicketStatusBlocked, true},
		{KindRequestSupervisor, domain.TicketStatusInProgress, false},
		{KindRequestSLAException, domain.TicketStatusInProgress, true},
		{KindRequestSLAException, domain.TicketStatusBlocked, true},
		{KindRequestSLAException, domain.TicketStatusNew, false},
		{KindAssign, domain.TicketStatusCancelled, false},
		{KindAddComment, domain.TicketStatusCompleted, true},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind)+"/"+string(tc.status), func(t *testing.T) {
			err := Guard(Facts{Ticket: domain.Ticket{Status: tc.status}}, tc.kind)
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, apperrors.IsGuardViolation(err), "got %v", err)
		})
	}
}

func TestBlock_Validation(t *testing.T) {
	h := newHarness(t, 30)
	h.must(h.staff(KindStart), t0)

	block := h.staff(KindBlock)
	block.ReasonCode = "something_else"
	err := h.apply(block, t0.Add(time.Minute))
	assert.True(t, apperrors.IsValidation(err), "comment mandatory")

	block.ReasonCode = "no_such_reason"
	block.Comment = "x"
	assert.True(t, apperrors.IsValidation(h.apply(block, t0.Add(time.Minute))))

	block.ReasonCode = "guest_requested_later"
	assert.True(t, apperrors.IsValidation(h.apply(block, t0.Add(time.Minute))), "resume time mandatory")

	past := t0
	block.ResumeAfter = &past
	assert.True(t, apperrors.IsValidation(h.apply(block, t0.Add(time.Minute))), "resume time in the past")

	later := t0.Add(time.Hour)
	block.ResumeAfter = &later
	h.must(block, t0.Add(time.Minute))

	last := h.agg.Events[len(h.agg.Events)-1]
	assert.Equal(t, domain.EventBlocked, last.Type)
	require.NotNil(t, last.ResumeAfter)
	assert.Equal(t, later, *last.ResumeAfter)
	assert.Equal(t, "x", *last.Comment)
}

func TestUpdateBlock_TogglesPauseWithReasonFlag(t *testing.T) {
	h := newHarness(t, 60)
	h.must(h.staff(KindStart), t0)

	block := h.staff(KindBlock)
	block.ReasonCode = "waiting_for_parts"
	h.must(block, t0.Add(10*time.Minute))

	update := h.staff(KindUpdateBlock)
	update.ReasonCode = "room_access_denied"
	h.must(update, t0.Add(15*time.Minute))
	assert.Nil(t, h.agg.SLA.PausedAt, "non-pausing reason resumes the clock")
	assert.Equal(t, int64(300), h.agg.SLA.TotalPausedSeconds)
	assert.Equal(t, domain.TicketStatusBlocked, h.agg.Ticket.Status)

	update.ReasonCode = "guest_not_in_room"
	h.must(update, t0.Add(20*time.Minute))
	require.NotNil(t, h.agg.SLA.PausedAt)
	assert.Equal(t, t0.Add(20*time.Minute), *h.agg.SLA.PausedAt)

	// same pause flag: clock is untouched
	update.ReasonCode = "waiting_for_parts"
	h.must(update, t0.Add(22*time.Minute))
	assert.Equal(t, t0.Add(20*time.Minute), *h.agg.SLA.PausedAt)
	assert.Equal(t, "waiting_for_parts", *h.agg.Ticket.CurrentBlockReason)
}

func TestUnblock_ReasonCompatibility(t *testing.T) {
	h := newHarness(t, 30)
	h.must(h.staff(KindStart), t0)
	block := h.staff(KindBlock)
	block.ReasonCode = "waiting_for_parts"
	h.must(block, t0.Add(time.Minute))

	unblock := h.staff(KindUnblock)
	assert.True(t, apperrors.IsValidation(h.apply(unblock, t0.Add(2*time.Minute))), "reason required")

	unblock.ReasonCode = "guest_available"
	assert.True(t, apperrors.IsValidation(h.apply(unblock, t0.Add(2*time.Minute))), "incompatible reason")

	unblock.ReasonCode = "workaround_found"
	assert.True(t, apperrors.IsValidation(h.apply(unblock, t0.Add(2*time.Minute))), "comment required")

	unblock.Comment = "used a spare"
	h.must(unblock, t0.Add(2*time.Minute))
	last := h.agg.Events[len(h.agg.Events)-1]
	assert.Equal(t, "workaround_found", *last.ReasonCode)
}

func TestUnblock_NoCompatibilityRowsNeedsNoReason(t *testing.T) {
	h := newHarness(t, 30)
	h.must(h.staff(KindStart), t0)
	block := h.staff(KindBlock)
	block.ReasonCode = "something_else"
	block.Comment = "guest asleep, front desk asked to wait"
	h.must(block, t0.Add(time.Minute))

	h.must(h.staff(KindUnblock), t0.Add(2*time.Minute))
	assert.Equal(t, domain.TicketStatusInProgress, h.agg.Ticket.Status)
}

func TestCancel(t *testing.T) {
	h := newHarness(t, 30)
	cancel := Command{Kind: KindCancel, Actor: guestActor("guest-1")}
	assert.True(t, apperrors.IsValidation(h.apply(cancel, t0)), "reason required")

	cancel.ReasonCode = "not_feasible"
	assert.True(t, apperrors.IsValidation(h.apply(cancel, t0)), "comment required")

	cancel.ReasonCode = "guest_changed_mind"
	h.must(cancel, t0.Add(time.Minute))
	assert.Equal(t, domain.TicketStatusCancelled, h.agg.Ticket.Status)
	require.NotNil(t, h.agg.Ticket.CancelledAt)
	require.NotNil(t, h.agg.SLA.StoppedAt)
}

func TestSupervisorRequestLifecycle(t *testing.T) {
	h := newHarness(t, 30)
	h.must(h.staff(KindStart), t0)
	block := h.staff(KindBlock)
	block.ReasonCode = "waiting_for_vendor"
	block.Comment = "plumber booked"
	h.must(block, t0.Add(time.Minute))

	assert.True(t, apperrors.IsGuardViolation(h.apply(h.staff(KindCancelSupervisorRequest), t0.Add(2*time.Minute))))

	req := h.staff(KindRequestSupervisor)
	req.Comment = "vendor is not answering"
	h.must(req, t0.Add(2*time.Minute))
	assert.True(t, FactsFrom(h.agg).SupervisorPending)
	assert.Equal(t, domain.TicketStatusBlocked, h.agg.Ticket.Status, "no status change")

	assert.True(t, apperrors.IsGuardViolation(h.apply(req, t0.Add(3*time.Minute))), "already pending")

	h.must(h.staff(KindCancelSupervisorRequest), t0.Add(4*time.Minute))
	assert.False(t, FactsFrom(h.agg).SupervisorPending)

	h.must(req, t0.Add(5*time.Minute))
	h.must(Command{Kind: KindRejectSupervisorRequest, Actor: staffActor(domain.StaffRoleSupervisor)}, t0.Add(6*time.Minute))
	assert.False(t, FactsFrom(h.agg).SupervisorPending)
}

func TestSLAExceptionLifecycle(t *testing.T) {
	h := newHarness(t, 30)
	h.must(h.staff(KindStart), t0)

	req := h.staff(KindRequestSLAException)
	req.ReasonCode = "vendor_delay"
	assert.True(t, apperrors.IsValidation(h.apply(req, t0.Add(time.Minute))), "comment mandatory")

	req.Comment = "part shipping from supplier"
	h.must(req, t0.Add(time.Minute))
	assert.True(t, FactsFrom(h.agg).ExceptionPending)
	assert.True(t, apperrors.IsGuardViolation(h.apply(req, t0.Add(2*time.Minute))), "already pending")

	supervisor := staffActor(domain.StaffRoleSupervisor)
	h.must(Command{Kind: KindRejectSLAException, Actor: supervisor}, t0.Add(3*time.Minute))
	assert.False(t, h.agg.SLA.Exempted)
	assert.False(t, FactsFrom(h.agg).ExceptionPending)

	h.must(req, t0.Add(4*time.Minute))
	h.must(Command{Kind: KindGrantSLAException, Actor: supervisor}, t0.Add(5*time.Minute))
	assert.True(t, h.agg.SLA.Exempted)
	_, applicable := sla.RemainingSeconds(h.agg.SLA, t0.Add(time.Hour))
	assert.False(t, applicable)

	assert.True(t, apperrors.IsGuardViolation(h.apply(req, t0.Add(6*time.Minute))), "already exempted")
}

func TestApply_RecordsBreachBeforeTransition(t *testing.T) {
	h := newHarness(t, 10)
	h.must(h.staff(KindStart), t0)
	h.must(h.staff(KindComplete), t0.Add(11*time.Minute))

	n := len(h.agg.Events)
	assert.Equal(t, domain.EventSLABreached, h.agg.Events[n-2].Type)
	assert.Equal(t, domain.ActorTypeSystem, h.agg.Events[n-2].ActorType)
	assert.Equal(t, domain.EventCompleted, h.agg.Events[n-1].Type)
	assert.True(t, h.agg.SLA.Breached)
}

func TestApply_BreachCommand(t *testing.T) {
	h := newHarness(t, 10)
	h.must(h.staff(KindStart), t0)
	system := Command{Kind: KindBreach, Actor: domain.SystemActor("hotel-1")}

	assert.True(t, apperrors.IsGuardViolation(h.apply(system, t0.Add(5*time.Minute))))
	h.must(system, t0.Add(10*time.Minute))
	assert.True(t, h.agg.SLA.Breached)
	assert.True(t, apperrors.IsGuardViolation(h.apply(system, t0.Add(11*time.Minute))), "breach recorded once")
}

func TestApply_BumpsVersion(t *testing.T) {
	h := newHarness(t, 30)
	assert.Equal(t, int64(1), h.agg.Ticket.Version)
	h.must(h.staff(KindStart), t0)
	assert.Equal(t, int64(2), h.agg.Ticket.Version)
	assert.Equal(t, t0, h.agg.Ticket.UpdatedAt)
}

func TestNewTicket_Validation(t *testing.T) {
	policy := domain.SLAPolicy{ID: "p", TargetMinutes: 30}
	_, err := NewTicket(CreateInput{DepartmentID: "d"}, guestActor("g"), policy, t0)
	assert.True(t, apperrors.IsValidation(err))

	_, err = NewTicket(CreateInput{Title: "x"}, guestActor("g"), policy, t0)
	assert.True(t, apperrors.IsValidation(err))

	_, err = NewTicket(CreateInput{Title: "x", DepartmentID: "d", LocationID: "hotel-2"}, guestActor("g"), policy, t0)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	res, err := NewTicket(CreateInput{Title: " Pillow ", DepartmentID: "d"}, guestActor("g"), policy, t0)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Ticket.ID)
	assert.Equal(t, "Pillow", res.Ticket.Title)
	assert.Equal(t, domain.TicketPriorityMedium, res.Ticket.Priority)
	assert.Equal(t, "hotel-1", res.Ticket.LocationID)
	assert.Nil(t, res.SLA.StartedAt)
	require.Len(t, res.Events, 1)
	assert.Equal(t, domain.EventCreated, res.Events[0].Type)
}

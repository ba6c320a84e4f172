package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/guest-requests/internal/domain"
	"github.com/spec-kit/guest-requests/internal/workflow"
	apperrors "github.com/spec-kit/guest-requests/pkg/util/errorutil"
)

func strPtr(s string) *string { return &s }

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newResult(id, dept string, assignee *string, updated time.Time) workflow.Result {
	return workflow.Result{
		Ticket: domain.Ticket{
			ID:           id,
			LocationID:   "hotel-1",
			DepartmentID: dept,
			AssigneeID:   assignee,
			Status:       domain.TicketStatusNew,
			Priority:     domain.TicketPriorityMedium,
			Version:      1,
			CreatedAt:    updated,
			UpdatedAt:    updated,
		},
		Events: []domain.TicketEvent{{ID: id + "-created", TicketID: id, Type: domain.EventCreated, CreatedAt: updated}},
	}
}

func TestMemoryTicketStore_CreateAndTransition(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTicketStore()

	created, err := store.Create(ctx, newResult("t-1", "housekeeping", nil, base))
	require.NoError(t, err)
	require.Len(t, created.Events, 1)
	assert.Equal(t, int64(1), created.Events[0].Seq)

	_, err = store.Create(ctx, newResult("t-1", "housekeeping", nil, base))
	assert.True(t, apperrors.IsConflict(err))

	agg, appended, err := store.Transition(ctx, "t-1", func(current workflow.Aggregate) (workflow.Result, error) {
		next := current.Ticket
		next.Status = domain.TicketStatusInProgress
		next.Version++
		return workflow.Result{
			Ticket: next,
			SLA:    current.SLA,
			Events: []domain.TicketEvent{{ID: "e-2", TicketID: "t-1", Type: domain.EventStarted}},
		}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, agg.Ticket.Status)
	require.Len(t, appended, 1)
	assert.Equal(t, int64(2), appended[0].Seq)
	assert.Len(t, agg.Events, 2)

	boom := errors.New("guard failed")
	_, _, err = store.Transition(ctx, "t-1", func(workflow.Aggregate) (workflow.Result, error) {
		return workflow.Result{}, boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.Get(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Ticket.Version, "failed transition leaves state untouched")
	assert.Len(t, got.Events, 2)
}

func TestMemoryTicketStore_Missing(t *testing.T) {
	store := NewMemoryTicketStore()
	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, pgx.ErrNoRows)

	_, _, err = store.Transition(context.Background(), "nope", func(workflow.Aggregate) (workflow.Result, error) {
		t.Fatal("fn must not run for a missing ticket")
		return workflow.Result{}, nil
	})
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestMemoryTicketStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTicketStore()
	_, err := store.Create(ctx, newResult("t-1", "housekeeping", nil, base))
	require.NoError(t, err)

	got, err := store.Get(ctx, "t-1")
	require.NoError(t, err)
	got.Events[0].Type = domain.EventCancelled
	got.Ticket.Title = "changed"

	again, err := store.Get(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, domain.EventCreated, again.Events[0].Type)
	assert.Empty(t, again.Ticket.Title)
}

func TestMemoryTicketStore_ListFilters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTicketStore()
	for _, res := range []workflow.Result{
		newResult("a", "housekeeping", nil, base),
		newResult("b", "maintenance", strPtr("s-1"), base.Add(time.Minute)),
		newResult("c", "maintenance", nil, base.Add(2*time.Minute)),
	} {
		_, err := store.Create(ctx, res)
		require.NoError(t, err)
	}

	ids := func(filter TicketFilter) []string {
		aggs, err := store.List(ctx, filter)
		require.NoError(t, err)
		out := make([]string, 0, len(aggs))
		for _, a := range aggs {
			out = append(out, a.Ticket.ID)
		}
		return out
	}

	assert.Equal(t, []string{"c", "b", "a"}, ids(TicketFilter{}))
	assert.Equal(t, []string{"a"}, ids(TicketFilter{DepartmentID: strPtr("housekeeping")}))
	assert.Equal(t, []string{"b", "a"}, ids(TicketFilter{DepartmentID: strPtr("housekeeping"), OrAssigneeID: strPtr("s-1")}))
	assert.Equal(t, []string{"b"}, ids(TicketFilter{AssigneeID: strPtr("s-1")}))
	assert.Equal(t, []string{"c", "a"}, ids(TicketFilter{Unassigned: true}))
	assert.Equal(t, []string{"b"}, ids(TicketFilter{Limit: 1, Offset: 1}))
	assert.Empty(t, ids(TicketFilter{Offset: 5}))
	assert.Empty(t, ids(TicketFilter{LocationID: strPtr("hotel-2")}))
	assert.Empty(t, ids(TicketFilter{Statuses: []domain.TicketStatus{domain.TicketStatusBlocked}}))
	from := base.Add(90 * time.Second)
	assert.Equal(t, []string{"c"}, ids(TicketFilter{UpdatedFrom: &from}))
}

func TestMemoryTicketStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemoryTicketStore().List(ctx, TicketFilter{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	now := base
	store := NewMemoryIdempotencyStore(func() time.Time { return now })

	resp, err := store.Begin(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, resp)

	_, err = store.Begin(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, ErrRequestInFlight)

	require.NoError(t, store.Complete(ctx, "k", StoredResponse{Status: 201, ContentType: "application/json", Body: []byte(`{}`)}, time.Minute))
	resp, err = store.Begin(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 201, resp.Status)

	now = now.Add(2 * time.Minute)
	resp, err = store.Begin(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, resp, "expired keys are claimable again")

	require.NoError(t, store.Release(ctx, "k"))
	resp, err = store.Begin(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, resp)
}

func TestDefaultSLAPolicies(t *testing.T) {
	policies := DefaultSLAPolicies(40)
	ctx := context.Background()

	for priority, want := range map[domain.TicketPriority]int{
		domain.TicketPriorityLow:    80,
		domain.TicketPriorityMedium: 40,
		domain.TicketPriorityHigh:   20,
		domain.TicketPriorityUrgent: 10,
	} {
		policy, err := policies.ForPriority(ctx, priority)
		require.NoError(t, err)
		assert.Equal(t, want, policy.TargetMinutes, priority)
	}

	_, err := policies.ForPriority(ctx, "NONE")
	assert.ErrorIs(t, err, pgx.ErrNoRows)

	medium, err := DefaultSLAPolicies(0).ForPriority(ctx, domain.TicketPriorityMedium)
	require.NoError(t, err)
	assert.Equal(t, 30, medium.TargetMinutes)
}

func TestMemoryStaffDirectory(t *testing.T) {
	dir := NewMemoryStaffDirectory(
		domain.StaffMember{ID: "s-2", LocationID: "hotel-1", DepartmentID: "housekeeping", OnDuty: true},
		domain.StaffMember{ID: "s-1", LocationID: "hotel-1", DepartmentID: "housekeeping", OnDuty: true},
		domain.StaffMember{ID: "s-3", LocationID: "hotel-1", DepartmentID: "housekeeping"},
	)
	dir.Put(domain.StaffMember{ID: "s-4", LocationID: "hotel-1", DepartmentID: "maintenance", OnDuty: true})

	staff, err := dir.ListOnDuty(context.Background(), "hotel-1", "housekeeping")
	require.NoError(t, err)
	require.Len(t, staff, 2)
	assert.Equal(t, "s-1", staff[0].ID)
	assert.Equal(t, "s-2", staff[1].ID)
}

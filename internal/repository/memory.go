package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/guest-requests/internal/domain"
	"github.com/spec-kit/guest-requests/internal/workflow"
	apperrors "github.com/spec-kit/guest-requests/pkg/util/errorutil"
)

// MemoryTicketStore keeps aggregates in process. Used when no database is
// configured and in tests. A single mutex serializes read-modify-write.
type MemoryTicketStore struct {
	mu      sync.Mutex
	seq     int64
	tickets map[string]*workflow.Aggregate
}

// NewMemoryTicketStore builds an empty store.
func NewMemoryTicketStore() *MemoryTicketStore {
	return &MemoryTicketStore{tickets: make(map[string]*workflow.Aggregate)}
}

func (s *MemoryTicketStore) Create(ctx context.Context, res workflow.Result) (*workflow.Aggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tickets[res.Ticket.ID]; exists {
		return nil, apperrors.NewConflict("ticket already exists", map[string]any{"ticket_id": res.Ticket.ID})
	}
	agg := &workflow.Aggregate{Ticket: res.Ticket, SLA: res.SLA, Events: s.stamp(res.Events)}
	s.tickets[res.Ticket.ID] = agg
	return cloneAggregate(agg), nil
}

func (s *MemoryTicketStore) Get(ctx context.Context, id string) (*workflow.Aggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	agg, ok := s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneAggregate(agg), nil
}

func (s *MemoryTicketStore) Transition(ctx context.Context, id string, fn TransitionFunc) (*workflow.Aggregate, []domain.TicketEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.tickets[id]
	if !ok {
		return nil, nil, pgx.ErrNoRows
	}
	res, err := fn(*cloneAggregate(current))
	if err != nil {
		return nil, nil, err
	}
	appended := s.stamp(res.Events)
	next := &workflow.Aggregate{
		Ticket: res.Ticket,
		SLA:    res.SLA,
		Events: append(append([]domain.TicketEvent(nil), current.Events...), appended...),
	}
	s.tickets[id] = next
	return cloneAggregate(next), append([]domain.TicketEvent(nil), appended...), nil
}

func (s *MemoryTicketStore) List(ctx context.Context, filter TicketFilter) ([]workflow.Aggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	result := make([]workflow.Aggregate, 0, len(s.tickets))
	for _, agg := range s.tickets {
		if filter.Matches(agg.Ticket) {
			result = append(result, *cloneAggregate(agg))
		}
	}
	s.mu.Unlock()

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i].Ticket, result[j].Ticket
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID < b.ID
	})
	return page(result, filter.Limit, filter.Offset), nil
}

// stamp assigns sequence numbers. Callers hold s.mu.
func (s *MemoryTicketStore) stamp(events []domain.TicketEvent) []domain.TicketEvent {
	out := make([]domain.TicketEvent, len(events))
	for i, ev := range events {
		s.seq++
		ev.Seq = s.seq
		out[i] = ev
	}
	return out
}

func cloneAggregate(agg *workflow.Aggregate) *workflow.Aggregate {
	return &workflow.Aggregate{
		Ticket: agg.Ticket,
		SLA:    agg.SLA,
		Events: append([]domain.TicketEvent(nil), agg.Events...),
	}
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return items[:0]
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

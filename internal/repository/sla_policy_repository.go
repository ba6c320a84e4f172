package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/guest-requests/internal/domain"
)

// SLAPolicyRepository resolves the policy applied to new tickets.
type SLAPolicyRepository interface {
	ForPriority(ctx context.Context, priority domain.TicketPriority) (domain.SLAPolicy, error)
}

type slaPolicyRepository struct {
	pool *pgxpool.Pool
}

// NewSLAPolicyRepository builds the Postgres-backed repository.
func NewSLAPolicyRepository(pool *pgxpool.Pool) SLAPolicyRepository {
	return &slaPolicyRepository{pool: pool}
}

func (r *slaPolicyRepository) ForPriority(ctx context.Context, priority domain.TicketPriority) (domain.SLAPolicy, error) {
	const query = `
        SELECT id, name, priority, target_minutes
        FROM sla_policies WHERE priority=$1 AND active
        ORDER BY target_minutes LIMIT 1`
	var p domain.SLAPolicy
	err := r.pool.QueryRow(ctx, query, priority).Scan(&p.ID, &p.Name, &p.Priority, &p.TargetMinutes)
	return p, err
}

// StaticSLAPolicies serves policies from configuration.
type StaticSLAPolicies map[domain.TicketPriority]domain.SLAPolicy

// DefaultSLAPolicies derives one policy per priority from a base target.
// Higher priorities get proportionally shorter targets.
func DefaultSLAPolicies(mediumMinutes int) StaticSLAPolicies {
	if mediumMinutes <= 0 {
		mediumMinutes = 30
	}
	scale := map[domain.TicketPriority]float64{
		domain.TicketPriorityLow:    2,
		domain.TicketPriorityMedium: 1,
		domain.TicketPriorityHigh:   0.5,
		domain.TicketPriorityUrgent: 0.25,
	}
	out := make(StaticSLAPolicies, len(scale))
	for priority, factor := range scale {
		minutes := int(float64(mediumMinutes) * factor)
		if minutes < 1 {
			minutes = 1
		}
		out[priority] = domain.SLAPolicy{
			ID:            "default-" + string(priority),
			Name:          "Default " + string(priority),
			Priority:      priority,
			TargetMinutes: minutes,
		}
	}
	return out
}

func (p StaticSLAPolicies) ForPriority(_ context.Context, priority domain.TicketPriority) (domain.SLAPolicy, error) {
	policy, ok := p[priority]
	if !ok {
		return domain.SLAPolicy{}, pgx.ErrNoRows
	}
	return policy, nil
}

package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/guest-requests/internal/domain"
	"github.com/spec-kit/guest-requests/internal/workflow"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const aggregateColumns = `
        t.id, t.location_id, t.department_id, t.room_id, t.assignee_id, t.title, t.description,
        t.status, t.priority, t.creator_type, t.creator_id, t.current_block_reason, t.version,
        t.created_at, t.updated_at, t.completed_at, t.cancelled_at,
        s.policy_id, s.target_minutes, s.started_at, s.paused_at, s.total_paused_seconds,
        s.breached, s.breached_at, s.exempted, s.stopped_at
        FROM tickets t JOIN sla_states s ON s.ticket_id = t.id`

type ticketStore struct {
	pool *pgxpool.Pool
}

// NewTicketStore instantiates the Postgres-backed store.
func NewTicketStore(pool *pgxpool.Pool) TicketStore {
	return &ticketStore{pool: pool}
}

func (r *ticketStore) Create(ctx context.Context, res workflow.Result) (*workflow.Aggregate, error) {
	var agg *workflow.Aggregate
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const insertTicket = `
            INSERT INTO tickets (id, location_id, department_id, room_id, assignee_id, title, description,
                status, priority, creator_type, creator_id, current_block_reason, version, created_at, updated_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`
		t := res.Ticket
		if _, err := tx.Exec(ctx, insertTicket,
			t.ID, t.LocationID, t.DepartmentID, t.RoomID, t.AssigneeID, t.Title, t.Description,
			t.Status, t.Priority, t.CreatorType, t.CreatorID, t.CurrentBlockReason, t.Version, t.CreatedAt, t.UpdatedAt,
		); err != nil {
			return err
		}
		const insertSLA = `
            INSERT INTO sla_states (ticket_id, policy_id, target_minutes, started_at, paused_at,
                total_paused_seconds, breached, breached_at, exempted, stopped_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
		s := res.SLA
		if _, err := tx.Exec(ctx, insertSLA,
			t.ID, s.PolicyID, s.TargetMinutes, s.StartedAt, s.PausedAt,
			s.TotalPausedSeconds, s.Breached, s.BreachedAt, s.Exempted, s.StoppedAt,
		); err != nil {
			return err
		}
		events, err := insertEvents(ctx, tx, res.Events)
		if err != nil {
			return err
		}
		agg = &workflow.Aggregate{Ticket: t, SLA: s, Events: events}
		agg.SLA.TicketID = t.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return agg, nil
}

func (r *ticketStore) Get(ctx context.Context, id string) (*workflow.Aggregate, error) {
	return loadAggregate(ctx, r.pool, id, false)
}

func (r *ticketStore) Transition(ctx context.Context, id string, fn TransitionFunc) (*workflow.Aggregate, []domain.TicketEvent, error) {
	var (
		next     *workflow.Aggregate
		appended []domain.TicketEvent
	)
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := loadAggregate(ctx, tx, id, true)
		if err != nil {
			return err
		}
		res, err := fn(*current)
		if err != nil {
			return err
		}
		if err := updateTicket(ctx, tx, res.Ticket, current.Ticket.Version); err != nil {
			return err
		}
		if err := updateSLA(ctx, tx, res.SLA); err != nil {
			return err
		}
		appended, err = insertEvents(ctx, tx, res.Events)
		if err != nil {
			return err
		}
		next = &workflow.Aggregate{
			Ticket: res.Ticket,
			SLA:    res.SLA,
			Events: append(current.Events, appended...),
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return next, appended, nil
}

func (r *ticketStore) List(ctx context.Context, filter TicketFilter) ([]workflow.Aggregate, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.LocationID != nil {
		args = append(args, *filter.LocationID)
		clauses = append(clauses, fmt.Sprintf("t.location_id=$%d", len(args)))
	}
	if filter.CreatorID != nil {
		args = append(args, *filter.CreatorID)
		clauses = append(clauses, fmt.Sprintf("t.creator_id=$%d", len(args)))
	}
	if filter.DepartmentID != nil {
		args = append(args, *filter.DepartmentID)
		clause := fmt.Sprintf("t.department_id=$%d", len(args))
		if filter.OrAssigneeID != nil {
			args = append(args, *filter.OrAssigneeID)
			clause = fmt.Sprintf("(%s OR t.assignee_id=$%d)", clause, len(args))
		}
		clauses = append(clauses, clause)
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("t.assignee_id=$%d", len(args)))
	}
	if filter.Unassigned {
		clauses = append(clauses, "t.assignee_id IS NULL")
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("t.status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("t.priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.UpdatedFrom != nil {
		args = append(args, *filter.UpdatedFrom)
		clauses = append(clauses, fmt.Sprintf("t.updated_at >= $%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s WHERE %s ORDER BY t.updated_at DESC, t.id`, aggregateColumns, strings.Join(clauses, " AND "))
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	result, err := scanAggregates(rows)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return result, nil
	}

	ids := make([]string, len(result))
	index := make(map[string]int, len(result))
	for i := range result {
		ids[i] = result[i].Ticket.ID
		index[ids[i]] = i
	}
	events, err := listEventsFor(ctx, r.pool, ids)
	if err != nil {
		return nil, err
	}
	for _, ev := range events {
		i := index[ev.TicketID]
		result[i].Events = append(result[i].Events, ev)
	}
	return result, nil
}

func loadAggregate(ctx context.Context, q querier, id string, forUpdate bool) (*workflow.Aggregate, error) {
	query := "SELECT " + aggregateColumns + " WHERE t.id=$1"
	if forUpdate {
		query += " FOR UPDATE OF t, s"
	}
	rows, err := q.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	result, err := scanAggregates(rows)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, pgx.ErrNoRows
	}
	agg := result[0]
	if agg.Events, err = listEvents(ctx, q, id); err != nil {
		return nil, err
	}
	return &agg, nil
}

func scanAggregates(rows pgx.Rows) ([]workflow.Aggregate, error) {
	defer rows.Close()
	var result []workflow.Aggregate
	for rows.Next() {
		var (
			t domain.Ticket
			s domain.SLAState
		)
		if err := rows.Scan(
			&t.ID, &t.LocationID, &t.DepartmentID, &t.RoomID, &t.AssigneeID, &t.Title, &t.Description,
			&t.Status, &t.Priority, &t.CreatorType, &t.CreatorID, &t.CurrentBlockReason, &t.Version,
			&t.CreatedAt, &t.UpdatedAt, &t.CompletedAt, &t.CancelledAt,
			&s.PolicyID, &s.TargetMinutes, &s.StartedAt, &s.PausedAt, &s.TotalPausedSeconds,
			&s.Breached, &s.BreachedAt, &s.Exempted, &s.StoppedAt,
		); err != nil {
			return nil, err
		}
		s.TicketID = t.ID
		result = append(result, workflow.Aggregate{Ticket: t, SLA: s})
	}
	return result, rows.Err()
}

// updateTicket writes t guarded by the version read under the row lock.
func updateTicket(ctx context.Context, q querier, t domain.Ticket, readVersion int64) error {
	const query = `
        UPDATE tickets SET assignee_id=$1, status=$2, current_block_reason=$3, version=$4,
            updated_at=$5, completed_at=$6, cancelled_at=$7
        WHERE id=$8 AND version=$9`
	cmd, err := q.Exec(ctx, query,
		t.AssigneeID, t.Status, t.CurrentBlockReason, t.Version,
		t.UpdatedAt, t.CompletedAt, t.CancelledAt,
		t.ID, readVersion,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func updateSLA(ctx context.Context, q querier, s domain.SLAState) error {
	const query = `
        UPDATE sla_states SET started_at=$1, paused_at=$2, total_paused_seconds=$3, breached=$4,
            breached_at=$5, exempted=$6, stopped_at=$7
        WHERE ticket_id=$8`
	cmd, err := q.Exec(ctx, query,
		s.StartedAt, s.PausedAt, s.TotalPausedSeconds, s.Breached,
		s.BreachedAt, s.Exempted, s.StoppedAt, s.TicketID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

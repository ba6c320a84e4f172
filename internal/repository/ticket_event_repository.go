package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/guest-requests/internal/domain"
)

const eventColumns = `id, seq, ticket_id, type, previous_status, new_status, reason_code, comment,
        actor_type, actor_id, assignee_id, resume_after, created_at`

// insertEvents appends events in order and returns them with their seq.
func insertEvents(ctx context.Context, q querier, events []domain.TicketEvent) ([]domain.TicketEvent, error) {
	const query = `
        INSERT INTO ticket_events (id, ticket_id, type, previous_status, new_status, reason_code, comment,
            actor_type, actor_id, assignee_id, resume_after, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING seq`
	out := make([]domain.TicketEvent, len(events))
	for i, ev := range events {
		if err := q.QueryRow(ctx, query,
			ev.ID, ev.TicketID, ev.Type, ev.PreviousStatus, ev.NewStatus, ev.ReasonCode, ev.Comment,
			ev.ActorType, ev.ActorID, ev.AssigneeID, ev.ResumeAfter, ev.CreatedAt,
		).Scan(&ev.Seq); err != nil {
			return nil, err
		}
		out[i] = ev
	}
	return out, nil
}

func listEvents(ctx context.Context, q querier, ticketID string) ([]domain.TicketEvent, error) {
	rows, err := q.Query(ctx, `SELECT `+eventColumns+` FROM ticket_events WHERE ticket_id=$1 ORDER BY created_at, seq`, ticketID)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

func listEventsFor(ctx context.Context, q querier, ticketIDs []string) ([]domain.TicketEvent, error) {
	rows, err := q.Query(ctx, `SELECT `+eventColumns+` FROM ticket_events WHERE ticket_id = ANY($1) ORDER BY created_at, seq`, ticketIDs)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]domain.TicketEvent, error) {
	defer rows.Close()
	var result []domain.TicketEvent
	for rows.Next() {
		var ev domain.TicketEvent
		if err := rows.Scan(
			&ev.ID,
			&ev.Seq,
			&ev.TicketID,
			&ev.Type,
			&ev.PreviousStatus,
			&ev.NewStatus,
			&ev.ReasonCode,
			&ev.Comment,
			&ev.ActorType,
			&ev.ActorID,
			&ev.AssigneeID,
			&ev.ResumeAfter,
			&ev.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ev)
	}
	return result, rows.Err()
}

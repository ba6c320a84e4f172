package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/guest-requests/internal/domain"
	"github.com/spec-kit/guest-requests/internal/reasons"
)

// ReasonRepository loads the reason catalogs managed in Postgres.
type ReasonRepository interface {
	LoadCatalog(ctx context.Context) (reasons.Catalog, error)
}

type reasonRepository struct {
	pool *pgxpool.Pool
}

// NewReasonRepository builds the repository.
func NewReasonRepository(pool *pgxpool.Pool) ReasonRepository {
	return &reasonRepository{pool: pool}
}

var reasonTables = []struct {
	table string
	kind  domain.ReasonKind
}{
	{"block_reasons", domain.ReasonKindBlock},
	{"unblock_reasons", domain.ReasonKindUnblock},
	{"cancel_reasons", domain.ReasonKindCancel},
	{"sla_exception_reasons", domain.ReasonKindSLAException},
}

func (r *reasonRepository) LoadCatalog(ctx context.Context) (reasons.Catalog, error) {
	var cat reasons.Catalog
	for _, t := range reasonTables {
		rows, err := r.loadReasons(ctx, t.table, t.kind)
		if err != nil {
			return cat, fmt.Errorf("load %s: %w", t.table, err)
		}
		switch t.kind {
		case domain.ReasonKindBlock:
			cat.Block = rows
		case domain.ReasonKindUnblock:
			cat.Unblock = rows
		case domain.ReasonKindCancel:
			cat.Cancel = rows
		case domain.ReasonKindSLAException:
			cat.SLAException = rows
		}
	}

	rows, err := r.pool.Query(ctx, `SELECT block_code, unblock_code FROM block_unblock_compat ORDER BY block_code, unblock_code`)
	if err != nil {
		return cat, fmt.Errorf("load block_unblock_compat: %w", err)
	}
	defer rows.Close()
	cat.Compatibility = map[string][]string{}
	for rows.Next() {
		var block, unblock string
		if err := rows.Scan(&block, &unblock); err != nil {
			return cat, err
		}
		cat.Compatibility[block] = append(cat.Compatibility[block], unblock)
	}
	return cat, rows.Err()
}

func (r *reasonRepository) loadReasons(ctx context.Context, table string, kind domain.ReasonKind) ([]domain.Reason, error) {
	query := fmt.Sprintf(`
        SELECT code, label, icon, requires_comment, pauses_sla, requires_resume_at, active, sort_order
        FROM %s ORDER BY sort_order, code`, table)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Reason
	for rows.Next() {
		reason := domain.Reason{Kind: kind}
		if err := rows.Scan(
			&reason.Code,
			&reason.Label,
			&reason.Icon,
			&reason.RequiresComment,
			&reason.PausesSLA,
			&reason.RequiresResumeAt,
			&reason.Active,
			&reason.SortOrder,
		); err != nil {
			return nil, err
		}
		result = append(result, reason)
	}
	return result, rows.Err()
}

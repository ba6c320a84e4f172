package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/guest-requests/internal/domain"
)

// StaffDirectory lists staff eligible for assignment. Staff rows are
// maintained by the identity system; this service only reads them.
type StaffDirectory interface {
	ListOnDuty(ctx context.Context, locationID, departmentID string) ([]domain.StaffMember, error)
}

type staffRepository struct {
	pool *pgxpool.Pool
}

// NewStaffRepository instantiates the repository.
func NewStaffRepository(pool *pgxpool.Pool) StaffDirectory {
	return &staffRepository{pool: pool}
}

func (r *staffRepository) ListOnDuty(ctx context.Context, locationID, departmentID string) ([]domain.StaffMember, error) {
	const query = `
        SELECT id, name, location_id, department_id, role, on_duty
        FROM staff_members
        WHERE location_id=$1 AND department_id=$2 AND on_duty
        ORDER BY id`
	rows, err := r.pool.Query(ctx, query, locationID, departmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StaffMember
	for rows.Next() {
		var staff domain.StaffMember
		if err := rows.Scan(
			&staff.ID,
			&staff.Name,
			&staff.LocationID,
			&staff.DepartmentID,
			&staff.Role,
			&staff.OnDuty,
		); err != nil {
			return nil, err
		}
		result = append(result, staff)
	}
	return result, rows.Err()
}

// MemoryStaffDirectory is a fixed in-process roster.
type MemoryStaffDirectory struct {
	mu    sync.RWMutex
	staff map[string]domain.StaffMember
}

// NewMemoryStaffDirectory builds a roster from members.
func NewMemoryStaffDirectory(members ...domain.StaffMember) *MemoryStaffDirectory {
	d := &MemoryStaffDirectory{staff: make(map[string]domain.StaffMember, len(members))}
	for _, m := range members {
		d.staff[m.ID] = m
	}
	return d
}

// Put adds or replaces a member.
func (d *MemoryStaffDirectory) Put(member domain.StaffMember) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.staff[member.ID] = member
}

func (d *MemoryStaffDirectory) ListOnDuty(_ context.Context, locationID, departmentID string) ([]domain.StaffMember, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var result []domain.StaffMember
	for _, m := range d.staff {
		if m.OnDuty && m.LocationID == locationID && m.DepartmentID == departmentID {
			result = append(result, m)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

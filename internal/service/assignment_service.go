package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/guest-requests/internal/domain"
	"github.com/spec-kit/guest-requests/internal/repository"
	"github.com/spec-kit/guest-requests/internal/workflow"
	apperrors "github.com/spec-kit/guest-requests/pkg/util/errorutil"
)

// AssignmentService hands NEW unassigned tickets to on-duty staff.
type AssignmentService struct {
	store   repository.TicketStore
	staff   repository.StaffDirectory
	tickets *TicketService
	logger  *zap.Logger
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	Store   repository.TicketStore
	Staff   repository.StaffDirectory
	Tickets *TicketService
	Logger  *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		store:   deps.Store,
		staff:   deps.Staff,
		tickets: deps.Tickets,
		logger:  logger,
	}
}

// AutoAssign assigns every NEW unassigned ticket whose department has someone
// on duty. The assignee is picked by a stable hash of the ticket id so reruns
// agree. It returns the number of tickets assigned.
func (s *AssignmentService) AutoAssign(ctx context.Context) (int, error) {
	pending, err := s.store.List(ctx, repository.TicketFilter{
		Statuses:   []domain.TicketStatus{domain.TicketStatusNew},
		Unassigned: true,
	})
	if err != nil {
		return 0, apperrors.MapError(err)
	}

	rosters := make(map[string][]domain.StaffMember)
	assigned := 0
	for _, agg := range pending {
		if err := ctx.Err(); err != nil {
			return assigned, err
		}
		ticket := agg.Ticket
		key := ticket.LocationID + "/" + ticket.DepartmentID
		roster, ok := rosters[key]
		if !ok {
			roster, err = s.staff.ListOnDuty(ctx, ticket.LocationID, ticket.DepartmentID)
			if err != nil {
				return assigned, apperrors.MapError(err)
			}
			rosters[key] = roster
		}
		if len(roster) == 0 {
			continue
		}
		assignee := roster[selectIndex(ticket.ID, len(roster))]
		version := ticket.Version
		_, err := s.tickets.Execute(ctx, domain.SystemActor(ticket.LocationID), ticket.ID, workflow.Command{
			Kind:            workflow.KindAssign,
			AssigneeID:      assignee.ID,
			ExpectedVersion: &version,
		})
		if err != nil {
			if apperrors.IsConflict(err) || apperrors.IsNotFound(err) {
				s.logger.Debug("auto-assign skipped", zap.String("ticket_id", ticket.ID), zap.Error(err))
				continue
			}
			return assigned, err
		}
		assigned++
	}
	return assigned, nil
}

func selectIndex(key string, length int) int {
	if length == 0 {
		return 0
	}
	sum := 0
	for _, ch := range key {
		sum += int(ch)
	}
	return sum % length
}

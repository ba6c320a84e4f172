package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/guest-requests/internal/audit"
	"github.com/spec-kit/guest-requests/internal/domain"
	"github.com/spec-kit/guest-requests/internal/reasons"
	"github.com/spec-kit/guest-requests/internal/repository"
	"github.com/spec-kit/guest-requests/internal/sla"
	"github.com/spec-kit/guest-requests/internal/workflow"
	apperrors "github.com/spec-kit/guest-requests/pkg/util/errorutil"
)

// SLAService runs the time-driven transitions: breach detection and the
// auto-resume of timed blocks.
type SLAService struct {
	store    repository.TicketStore
	tickets  *TicketService
	registry *reasons.Registry
	logger   *zap.Logger
	now      func() time.Time
}

// SLADependencies bundles collaborators.
type SLADependencies struct {
	Store    repository.TicketStore
	Tickets  *TicketService
	Registry *reasons.Registry
	Logger   *zap.Logger
	Now      func() time.Time
}

// NewSLAService creates the service.
func NewSLAService(deps SLADependencies) *SLAService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &SLAService{
		store:    deps.Store,
		tickets:  deps.Tickets,
		registry: deps.Registry,
		logger:   logger,
		now:      now,
	}
}

// SweepBreaches records SLA_BREACHED on every running ticket whose clock has
// run out. It returns the number of breaches recorded.
func (s *SLAService) SweepBreaches(ctx context.Context) (int, error) {
	running, err := s.store.List(ctx, repository.TicketFilter{
		Statuses: []domain.TicketStatus{domain.TicketStatusInProgress, domain.TicketStatusBlocked},
	})
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	now := s.now()
	breached := 0
	for _, agg := range running {
		if !sla.ShouldBreach(agg.SLA, now) {
			continue
		}
		version := agg.Ticket.Version
		_, err := s.tickets.Execute(ctx, domain.SystemActor(agg.Ticket.LocationID), agg.Ticket.ID, workflow.Command{
			Kind:            workflow.KindBreach,
			ExpectedVersion: &version,
		})
		if err != nil {
			if skippable(err) {
				s.logger.Debug("breach skipped", zap.String("ticket_id", agg.Ticket.ID), zap.Error(err))
				continue
			}
			return breached, err
		}
		breached++
	}
	return breached, nil
}

// AutoResume unblocks BLOCKED tickets whose latest block carries a resume
// time that has passed. When the block reason requires an unblock reason the
// auto_resumed reason is used if compatible; otherwise the ticket stays
// blocked for a person to resolve. It returns the number of tickets resumed.
func (s *SLAService) AutoResume(ctx context.Context) (int, error) {
	blocked, err := s.store.List(ctx, repository.TicketFilter{
		Statuses: []domain.TicketStatus{domain.TicketStatusBlocked},
	})
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	now := s.now()
	resumed := 0
	for _, agg := range blocked {
		latest, ok := audit.Latest(agg.Events, domain.EventBlocked, domain.EventBlockUpdated)
		if !ok || latest.ResumeAfter == nil || latest.ResumeAfter.After(now) {
			continue
		}
		blockCode := ""
		if agg.Ticket.CurrentBlockReason != nil {
			blockCode = *agg.Ticket.CurrentBlockReason
		}
		reasonCode := ""
		if _, required := s.registry.CompatibleUnblockReasons(blockCode); required {
			if !s.registry.IsCompatible(blockCode, reasons.AutoResume) {
				s.logger.Info("timed block needs a manual unblock reason",
					zap.String("ticket_id", agg.Ticket.ID), zap.String("block_reason", blockCode))
				continue
			}
			reasonCode = reasons.AutoResume
		}
		version := agg.Ticket.Version
		_, err := s.tickets.Execute(ctx, domain.SystemActor(agg.Ticket.LocationID), agg.Ticket.ID, workflow.Command{
			Kind:            workflow.KindUnblock,
			ReasonCode:      reasonCode,
			ExpectedVersion: &version,
		})
		if err != nil {
			if skippable(err) {
				s.logger.Debug("auto-resume skipped", zap.String("ticket_id", agg.Ticket.ID), zap.Error(err))
				continue
			}
			return resumed, err
		}
		resumed++
	}
	return resumed, nil
}

// skippable reports errors caused by a concurrent change; the next sweep
// sees the new state.
func skippable(err error) bool {
	return apperrors.IsConflict(err) || apperrors.IsGuardViolation(err) || apperrors.IsNotFound(err)
}

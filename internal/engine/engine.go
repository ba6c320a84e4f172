// Package engine is the client side of the ticket workflow. It pre-validates
// intents against the latest snapshot with the same guards the server runs,
// sends them to the remote executor and cancels in-flight calls whose ticket
// drops out of the actor's visibility.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/guest-requests/internal/domain"
	"github.com/spec-kit/guest-requests/internal/reasons"
	"github.com/spec-kit/guest-requests/internal/snapshot"
	"github.com/spec-kit/guest-requests/internal/workflow"
	apperrors "github.com/spec-kit/guest-requests/pkg/util/errorutil"
)

// ErrVisibilityRevoked is returned for an in-flight call whose ticket is no
// longer in the actor's snapshot. Any response that arrives is discarded.
var ErrVisibilityRevoked = errors.New("ticket is no longer visible to this actor")

// Remote executes transitions on the server.
type Remote interface {
	Execute(ctx context.Context, ticketID string, cmd workflow.Command, idempotencyKey string) (*domain.TicketView, error)
}

// Snapshots is the engine's view of the refresher.
type Snapshots interface {
	Current() *snapshot.Snapshot
	Trigger()
	OnSnapshot(fn func(*snapshot.Snapshot))
}

// Intent is a transition the actor wants to perform. Its key is stable, so a
// failed intent can be resubmitted as-is without losing reason or comment
// input and without the server applying it twice.
type Intent struct {
	Key      string
	TicketID string
	Command  workflow.Command
}

// NewIntent builds an intent with a fresh idempotency key.
func NewIntent(ticketID string, cmd workflow.Command) Intent {
	return Intent{Key: uuid.NewString(), TicketID: ticketID, Command: cmd}
}

// Engine drives one actor's transitions.
type Engine struct {
	remote    Remote
	snapshots Snapshots
	registry  *reasons.Registry
	actor     domain.Actor
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	nextCall uint64
	inflight map[string]map[uint64]context.CancelCauseFunc
}

// Dependencies groups the engine's collaborators.
type Dependencies struct {
	Remote    Remote
	Snapshots Snapshots
	Registry  *reasons.Registry
	Actor     domain.Actor
	Logger    *zap.Logger
	Now       func() time.Time
}

// New builds an engine and subscribes it to snapshot refreshes.
func New(deps Dependencies) *Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	e := &Engine{
		remote:    deps.Remote,
		snapshots: deps.Snapshots,
		registry:  deps.Registry,
		actor:     deps.Actor,
		logger:    deps.Logger,
		now:       deps.Now,
		inflight:  make(map[string]map[uint64]context.CancelCauseFunc),
	}
	deps.Snapshots.OnSnapshot(e.reconcile)
	return e
}

// Do validates and executes in. The command's actor is the engine's actor and
// its expected version is the snapshot's unless the intent already carries
// one. Guard, validation and role failures are returned without a network
// call. Writes are never retried here; callers resubmit the same intent.
func (e *Engine) Do(ctx context.Context, in Intent) (*domain.TicketView, error) {
	view, ok := e.snapshots.Current().Find(in.TicketID)
	if !ok {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": in.TicketID})
	}
	cmd := in.Command
	cmd.Actor = e.actor
	if err := workflow.Authorize(cmd.Actor, cmd.Kind, view.Ticket); err != nil {
		return nil, err
	}
	if err := workflow.Check(workflow.FactsFromView(view), cmd, e.registry, e.now()); err != nil {
		return nil, err
	}
	if cmd.ExpectedVersion == nil {
		version := view.Ticket.Version
		cmd.ExpectedVersion = &version
	}

	callCtx, id := e.track(ctx, in.TicketID)
	defer e.untrack(in.TicketID, id)

	result, err := e.remote.Execute(callCtx, in.TicketID, cmd, in.Key)
	if errors.Is(context.Cause(callCtx), ErrVisibilityRevoked) {
		e.logger.Info("discarding response for revoked ticket", zap.String("ticket_id", in.TicketID), zap.String("kind", string(cmd.Kind)))
		return nil, ErrVisibilityRevoked
	}
	if err != nil {
		if apperrors.IsConflict(err) || apperrors.IsNotFound(err) {
			e.snapshots.Trigger()
		}
		return nil, err
	}
	e.snapshots.Trigger()
	return result, nil
}

// Available lists the transitions the actor could attempt on ticketID.
func (e *Engine) Available(ticketID string) []workflow.Kind {
	view, ok := e.snapshots.Current().Find(ticketID)
	if !ok {
		return nil
	}
	return workflow.Available(workflow.FactsFromView(view), e.actor)
}

// UnblockOptions returns the unblock reasons offered for ticketID's current
// block reason and whether choosing one is mandatory.
func (e *Engine) UnblockOptions(ticketID string) ([]domain.Reason, bool, error) {
	view, ok := e.snapshots.Current().Find(ticketID)
	if !ok {
		return nil, false, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	if view.Ticket.CurrentBlockReason == nil {
		return nil, false, apperrors.NewGuardViolation("ticket is not blocked", map[string]any{"status": view.Ticket.Status})
	}
	compatible, required := e.registry.CompatibleUnblockReasons(*view.Ticket.CurrentBlockReason)
	return compatible, required, nil
}

// InFlight reports how many calls are outstanding for ticketID.
func (e *Engine) InFlight(ticketID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.inflight[ticketID])
}

func (e *Engine) track(ctx context.Context, ticketID string) (context.Context, uint64) {
	callCtx, cancel := context.WithCancelCause(ctx)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextCall++
	calls := e.inflight[ticketID]
	if calls == nil {
		calls = make(map[uint64]context.CancelCauseFunc)
		e.inflight[ticketID] = calls
	}
	calls[e.nextCall] = cancel
	return callCtx, e.nextCall
}

func (e *Engine) untrack(ticketID string, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	calls := e.inflight[ticketID]
	if cancel, ok := calls[id]; ok {
		cancel(context.Canceled)
		delete(calls, id)
	}
	if len(calls) == 0 {
		delete(e.inflight, ticketID)
	}
}

// reconcile cancels every in-flight call whose ticket left the snapshot.
func (e *Engine) reconcile(snap *snapshot.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for ticketID, calls := range e.inflight {
		if snap.Contains(ticketID) {
			continue
		}
		for _, cancel := range calls {
			cancel(ErrVisibilityRevoked)
		}
		e.logger.Info("ticket left visibility, cancelling in-flight calls",
			zap.String("ticket_id", ticketID),
			zap.Int("calls", len(calls)),
		)
	}
}

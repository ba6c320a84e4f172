package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/guest-requests/internal/api/dto"
	"github.com/spec-kit/guest-requests/internal/domain"
	"github.com/spec-kit/guest-requests/internal/engine"
	"github.com/spec-kit/guest-requests/internal/reasons"
	"github.com/spec-kit/guest-requests/internal/snapshot"
	"github.com/spec-kit/guest-requests/internal/workflow"
	apperrors "github.com/spec-kit/guest-requests/pkg/util/errorutil"
)

// ActOptions holds flags for the act command.
type ActOptions struct {
	*RootOptions
	Reason      string
	Comment     string
	ResumeAfter string
	Assignee    string
	Key         string
}

// NewActCommand creates the act command.
func NewActCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ActOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "act <ticket-id> <transition>",
		Short: "Run a transition on a ticket",
		Long: `Run a transition on a ticket.

The transition is checked against your latest snapshot first and only sent
when it can succeed. Transitions are named by kind or route, e.g. start,
block, update-block, supervisor/approve, grant_sla_exception.

A write that fails with a transient error prints its idempotency key; pass
it back with --key to retry without applying the change twice.

Example:
  deskwatch act 5f1c... block --reason guest_requested_later --resume-after 2026-10-14T18:00:00Z`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAct(cmd.Context(), opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Reason, "reason", "", "reason code")
	cmd.Flags().StringVar(&opts.Comment, "comment", "", "comment text")
	cmd.Flags().StringVar(&opts.ResumeAfter, "resume-after", "", "resume time for timed blocks (RFC3339)")
	cmd.Flags().StringVar(&opts.Assignee, "assignee", "", "staff id for assign")
	cmd.Flags().StringVar(&opts.Key, "key", "", "idempotency key of an earlier attempt")

	return cmd
}

// ParseKind resolves a transition name given as a kind ("update_block") or a
// route ("update-block"). SYSTEM-only transitions are rejected.
func ParseKind(name string) (workflow.Kind, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	kind := workflow.Kind(name)
	if !kind.Valid() {
		for k, route := range dto.TransitionRoutes {
			if route == name {
				kind = k
				break
			}
		}
	}
	if _, callable := dto.TransitionRoutes[kind]; !callable {
		return "", apperrors.NewValidationError("unknown transition", map[string]any{"transition": name})
	}
	return kind, nil
}

func (o *ActOptions) command(kind workflow.Kind) (workflow.Command, error) {
	cmd := workflow.Command{
		Kind:       kind,
		ReasonCode: o.Reason,
		Comment:    o.Comment,
		AssigneeID: o.Assignee,
	}
	if o.ResumeAfter != "" {
		at, err := time.Parse(time.RFC3339, o.ResumeAfter)
		if err != nil {
			return cmd, apperrors.NewValidationError("resume-after must be RFC3339", map[string]any{"value": o.ResumeAfter})
		}
		cmd.ResumeAfter = &at
	}
	return cmd, nil
}

// session is a refreshed snapshot with an engine bound to it.
type session struct {
	engine    *engine.Engine
	refresher *snapshot.Refresher
	logger    *zap.Logger
}

func openSession(ctx context.Context, opts *RootOptions) (*session, error) {
	actor, err := opts.actor()
	if err != nil {
		return nil, err
	}
	logger := opts.logger()
	client := opts.client()

	catalog, err := client.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load reason catalog: %w", err)
	}
	registry, err := reasons.New(catalog)
	if err != nil {
		return nil, fmt.Errorf("reason catalog: %w", err)
	}
	refresher := snapshot.NewRefresher(client, snapshot.RefresherConfig{ActorID: actor.IDValue()}, logger)
	if err := refresher.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	eng := engine.New(engine.Dependencies{
		Remote:    client,
		Snapshots: refresher,
		Registry:  registry,
		Actor:     actor,
		Logger:    logger,
	})
	return &session{engine: eng, refresher: refresher, logger: logger}, nil
}

func runAct(ctx context.Context, opts *ActOptions, ticketID, transition string, cmd *cobra.Command) error {
	kind, err := ParseKind(transition)
	if err != nil {
		return err
	}
	command, err := opts.command(kind)
	if err != nil {
		return err
	}
	s, err := openSession(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.logger.Sync() //nolint:errcheck

	intent := engine.NewIntent(ticketID, command)
	if opts.Key != "" {
		intent.Key = opts.Key
	}
	view, err := s.engine.Do(ctx, intent)
	if err != nil {
		if apperrors.IsTransient(err) {
			fmt.Fprintf(cmd.ErrOrStderr(), "request may not have been applied; retry with --key %s\n", intent.Key)
		}
		return err
	}
	return writeView(cmd.OutOrStdout(), opts.Format, *view)
}

func writeView(out io.Writer, format string, view domain.TicketView) error {
	if format == "json" {
		return json.NewEncoder(out).Encode(dto.NewTicketViewResponse(view))
	}
	row := boardRow{
		ID:               view.Ticket.ID,
		Status:           view.Ticket.Status,
		Priority:         view.Ticket.Priority,
		Title:            view.Ticket.Title,
		RoomID:           view.Ticket.RoomID,
		Version:          view.Ticket.Version,
		RemainingSeconds: view.SLARemainingSeconds,
		Paused:           view.SLAPaused,
		Breached:         view.SLABreached,
		Exempted:         view.SLAExempted,
	}
	_, err := fmt.Fprintf(out, "%s  v%d\n", renderRow(row), view.Ticket.Version)
	return err
}

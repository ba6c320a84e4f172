package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/guest-requests/internal/api/dto"
	"github.com/spec-kit/guest-requests/internal/domain"
	"github.com/spec-kit/guest-requests/internal/workflow"
	apperrors "github.com/spec-kit/guest-requests/pkg/util/errorutil"
)

// NewOptionsCommand creates the options command.
func NewOptionsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "options <ticket-id>",
		Short:         "List the transitions you can run on a ticket",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			ticketID := args[0]
			if !s.refresher.Current().Contains(ticketID) {
				return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
			}
			kinds := s.engine.Available(ticketID)
			unblock, required, err := s.engine.UnblockOptions(ticketID)
			if err != nil && !apperrors.IsGuardViolation(err) {
				return err
			}

			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				return json.NewEncoder(out).Encode(map[string]any{
					"ticket_id":               ticketID,
					"transitions":             kinds,
					"unblock_reasons":         dto.NewReasonResponses(unblock),
					"unblock_reason_required": required,
				})
			}
			for _, kind := range kinds {
				fmt.Fprintf(out, "%-28s %s\n", kind, dto.TransitionRoutes[kind])
			}
			if err == nil {
				printUnblock(cmd, unblock, required, kinds)
			}
			return nil
		},
	}
}

func printUnblock(cmd *cobra.Command, unblock []domain.Reason, required bool, kinds []workflow.Kind) {
	canUnblock := false
	for _, k := range kinds {
		if k == workflow.KindUnblock {
			canUnblock = true
		}
	}
	if !canUnblock {
		return
	}
	out := cmd.OutOrStdout()
	if !required {
		fmt.Fprintln(out, faintStyle.Render("unblock reason optional"))
		return
	}
	fmt.Fprintln(out, "unblock reasons:")
	for _, r := range unblock {
		fmt.Fprintf(out, "  %-20s %s\n", r.Code, r.Label)
	}
}

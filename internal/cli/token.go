package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spec-kit/guest-requests/internal/auth"
	"github.com/spec-kit/guest-requests/internal/config"
	"github.com/spec-kit/guest-requests/internal/domain"
)

// TokenOptions holds flags for the token command.
type TokenOptions struct {
	Secret     string
	Issuer     string
	TTLMinutes int
	Type       string
	ID         string
	Role       string
	Location   string
	Department string
}

// NewTokenCommand creates the token command, which signs development tokens
// with the server's shared secret.
func NewTokenCommand(cfg config.AuthConfig) *cobra.Command {
	opts := &TokenOptions{}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a development token",
		Long: `Sign a development token for an actor.

Example:
  deskwatch token --type STAFF --id s-1 --role AGENT --location hotel-1 --department housekeeping`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := opts.actor()
			if err != nil {
				return err
			}
			tm := auth.NewTokenManager(opts.Secret, opts.Issuer, opts.TTLMinutes)
			token, expires, err := tm.GenerateToken(actor)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expires.Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Secret, "secret", cfg.JWTSecret, "signing secret")
	cmd.Flags().StringVar(&opts.Issuer, "issuer", cfg.Issuer, "token issuer")
	cmd.Flags().IntVar(&opts.TTLMinutes, "ttl-minutes", cfg.AccessTokenTTLMinutes, "token lifetime in minutes")
	cmd.Flags().StringVar(&opts.Type, "type", string(domain.ActorTypeStaff), "actor type (GUEST|FRONT_DESK|STAFF)")
	cmd.Flags().StringVar(&opts.ID, "id", "", "actor id")
	cmd.Flags().StringVar(&opts.Role, "role", "", "staff role (AGENT|SUPERVISOR|MANAGER)")
	cmd.Flags().StringVar(&opts.Location, "location", "", "location id")
	cmd.Flags().StringVar(&opts.Department, "department", "", "department id")

	return cmd
}

func (o *TokenOptions) actor() (domain.Actor, error) {
	actorType := domain.ActorType(strings.ToUpper(o.Type))
	if !actorType.Valid() || actorType == domain.ActorTypeSystem {
		return domain.Actor{}, fmt.Errorf("invalid actor type %q", o.Type)
	}
	if o.ID == "" || o.Location == "" {
		return domain.Actor{}, fmt.Errorf("--id and --location are required")
	}
	id := o.ID
	actor := domain.Actor{Type: actorType, ID: &id, LocationID: o.Location}
	if o.Department != "" {
		dept := o.Department
		actor.DepartmentID = &dept
	}
	if actorType == domain.ActorTypeStaff {
		role := domain.StaffRole(strings.ToUpper(o.Role))
		switch role {
		case domain.StaffRoleAgent, domain.StaffRoleSupervisor, domain.StaffRoleManager:
			actor.Role = &role
		default:
			return domain.Actor{}, fmt.Errorf("staff tokens need --role AGENT, SUPERVISOR or MANAGER")
		}
	}
	return actor, nil
}

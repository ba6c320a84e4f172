// Package cli implements deskwatch, the terminal client for the ticket API.
package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spec-kit/guest-requests/internal/auth"
	"github.com/spec-kit/guest-requests/internal/config"
	"github.com/spec-kit/guest-requests/internal/domain"
	"github.com/spec-kit/guest-requests/internal/engine"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	APIURL  string
	Token   string
	Timeout time.Duration
	Format  string // "text" | "json"
	Verbose bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the deskwatch root command. cfg supplies flag
// defaults.
func NewRootCommand(cfg config.Config) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "deskwatch",
		Short: "Watch and act on guest requests",
		Long:  "deskwatch keeps a live view of the tickets visible to you and runs transitions against the ticket API.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.APIURL, "api-url", cfg.Client.APIURL, "ticket API base URL")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", cfg.Client.Token, "bearer token identifying the actor")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", cfg.Client.RequestTimeout, "per-request timeout")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose logging")

	cmd.AddCommand(NewWatchCommand(opts, cfg))
	cmd.AddCommand(NewActCommand(opts))
	cmd.AddCommand(NewOptionsCommand(opts))
	cmd.AddCommand(NewTokenCommand(cfg.Auth))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func (o *RootOptions) actor() (domain.Actor, error) {
	if o.Token == "" {
		return domain.Actor{}, errors.New("no token: pass --token or set DESKWATCH_TOKEN")
	}
	actor, err := auth.PeekActor(o.Token)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("read token: %w", err)
	}
	return actor, nil
}

func (o *RootOptions) client() *engine.Client {
	return engine.NewClient(o.APIURL, o.Token, o.Timeout)
}

func (o *RootOptions) logger() *zap.Logger {
	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if o.Verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

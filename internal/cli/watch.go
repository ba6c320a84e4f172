package cli

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/guest-requests/internal/config"
	"github.com/spec-kit/guest-requests/internal/notify"
	"github.com/spec-kit/guest-requests/internal/snapshot"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Interval      time.Duration
	Render        time.Duration
	RedisAddr     string
	ChannelPrefix string
	Once          bool
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions, cfg config.Config) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show a live board of your visible tickets",
		Long: `Show a live board of the tickets visible to you.

The board is refreshed on an interval and immediately when a change
notification arrives on the location channel (with --redis-addr). SLA
countdowns tick locally between refreshes.

Example:
  deskwatch watch --redis-addr localhost:6379`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := runWatch(cmd.Context(), opts, cmd)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().DurationVar(&opts.Interval, "interval", cfg.Client.RefreshInterval, "snapshot refresh interval")
	cmd.Flags().DurationVar(&opts.Render, "render", 5*time.Second, "board redraw interval")
	cmd.Flags().StringVar(&opts.RedisAddr, "redis-addr", cfg.Redis.Addr, "redis address for change notifications")
	cmd.Flags().StringVar(&opts.ChannelPrefix, "channel-prefix", cfg.Notification.ChannelPrefix, "change notification channel prefix")
	cmd.Flags().BoolVar(&opts.Once, "once", false, "fetch one snapshot, print it and exit")

	return cmd
}

func runWatch(ctx context.Context, opts *WatchOptions, cmd *cobra.Command) error {
	actor, err := opts.actor()
	if err != nil {
		return err
	}
	logger := opts.logger()
	defer logger.Sync() //nolint:errcheck

	if opts.Render <= 0 {
		opts.Render = 5 * time.Second
	}
	refresher := snapshot.NewRefresher(opts.client(), snapshot.RefresherConfig{
		ActorID:  actor.IDValue(),
		Interval: opts.Interval,
	}, logger)
	b := newBoard(cmd.OutOrStdout(), opts.Format, time.Second, nil)
	defer b.Stop()
	refresher.OnSnapshot(b.Update)

	if opts.Once {
		if err := refresher.Refresh(ctx); err != nil {
			return err
		}
		return b.Render()
	}

	if opts.RedisAddr != "" {
		rc := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
		defer rc.Close()
		sub := notify.NewRedisSubscriber(rc, opts.ChannelPrefix, logger)
		go func() {
			err := sub.Listen(ctx, actor.LocationID, func(n notify.Notification) {
				logger.Debug("change notification", zap.String("ticket_id", n.TicketID), zap.String("kind", string(n.Kind)))
				refresher.Trigger()
			})
			if err != nil && ctx.Err() == nil {
				logger.Warn("change notifications stopped; relying on interval refresh", zap.Error(err))
			}
		}()
	}

	refresher.OnSnapshot(func(*snapshot.Snapshot) {
		if err := b.Render(); err != nil {
			logger.Warn("render board", zap.Error(err))
		}
	})
	go func() {
		ticker := time.NewTicker(opts.Render)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := b.Render(); err != nil {
					logger.Warn("render board", zap.Error(err))
				}
			}
		}
	}()

	return refresher.Run(ctx)
}

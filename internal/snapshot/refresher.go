package snapshot

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/spec-kit/guest-requests/pkg/util/errorutil"
)

const (
	DefaultInterval    = 15 * time.Second
	defaultMaxAttempts = 4
	defaultBaseBackoff = 500 * time.Millisecond
	defaultMaxBackoff  = 8 * time.Second
)

// RefresherConfig tunes a Refresher. Zero values take defaults.
type RefresherConfig struct {
	ActorID     string
	Interval    time.Duration
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Now         func() time.Time
	After       func(time.Duration) <-chan time.Time
}

// Refresher keeps the current snapshot fresh. It fetches on a fixed interval
// and immediately when triggered. Each successful fetch replaces the current
// snapshot as a whole; a failed fetch leaves the previous one in place.
type Refresher struct {
	source  Source
	cfg     RefresherConfig
	logger  *zap.Logger
	trigger chan struct{}
	current atomic.Pointer[Snapshot]

	mu        sync.Mutex
	listeners []func(*Snapshot)
}

// NewRefresher builds a refresher over source.
func NewRefresher(source Source, cfg RefresherConfig, logger *zap.Logger) *Refresher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = defaultBaseBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.After == nil {
		cfg.After = time.After
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{
		source:  source,
		cfg:     cfg,
		logger:  logger,
		trigger: make(chan struct{}, 1),
	}
}

// Current returns the latest snapshot, or nil before the first fetch.
func (r *Refresher) Current() *Snapshot {
	return r.current.Load()
}

// OnSnapshot registers fn to be called after every successful refresh.
func (r *Refresher) OnSnapshot(fn func(*Snapshot)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Trigger requests an immediate refresh. Triggers arriving while one is
// already queued collapse into it.
func (r *Refresher) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Run refreshes once, then on every interval or trigger until ctx is done.
// The interval restarts after each refresh, triggered or not.
func (r *Refresher) Run(ctx context.Context) error {
	for {
		if err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
			r.logger.Warn("snapshot refresh failed", zap.String("actor_id", r.cfg.ActorID), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.trigger:
		case <-r.cfg.After(r.cfg.Interval):
		}
	}
}

// Refresh fetches a snapshot, retrying transient failures with exponential
// backoff up to MaxAttempts. Non-transient errors return immediately.
func (r *Refresher) Refresh(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-r.cfg.After(r.backoff(attempt)):
			}
		}

		snap, err := r.source.FetchSnapshot(ctx, r.cfg.ActorID)
		if err == nil {
			snap.ReceivedAt = r.cfg.Now()
			r.current.Store(snap)
			r.notify(snap)
			return nil
		}
		lastErr = err
		if !apperrors.IsTransient(err) {
			return err
		}
		r.logger.Debug("transient snapshot fetch failure, retrying",
			zap.String("actor_id", r.cfg.ActorID),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return lastErr
}

func (r *Refresher) backoff(attempt int) time.Duration {
	d := r.cfg.BaseBackoff << (attempt - 1)
	if d <= 0 || d > r.cfg.MaxBackoff {
		return r.cfg.MaxBackoff
	}
	return d
}

func (r *Refresher) notify(snap *Snapshot) {
	r.mu.Lock()
	listeners := append([]func(*Snapshot){}, r.listeners...)
	r.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
}

package snapshot

import (
	"sync"
	"time"

	"github.com/spec-kit/guest-requests/internal/domain"
)

// Countdown ticks a single ticket's projected SLA remaining time once per
// interval. It reads only local time relative to the snapshot's ReceivedAt and
// never mutates ticket state.
type Countdown struct {
	interval time.Duration
	now      func() time.Time

	stopOnce sync.Once
	done     chan struct{}
	finished chan struct{}
}

// NewCountdown returns a countdown ticking every interval (default one
// second). now defaults to time.Now.
func NewCountdown(interval time.Duration, now func() time.Time) *Countdown {
	if interval <= 0 {
		interval = time.Second
	}
	if now == nil {
		now = time.Now
	}
	return &Countdown{
		interval: interval,
		now:      now,
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Start begins ticking. onTick receives the projected remaining seconds and
// is called once immediately, then every interval. Ticking stops after the
// projection reaches zero, when the clock is not running, or on Stop.
// Start must be called at most once.
func (c *Countdown) Start(view domain.TicketView, receivedAt time.Time, onTick func(remaining int64, applicable bool)) {
	select {
	case <-c.done:
		close(c.finished)
		return
	default:
	}
	remaining, applicable := ProjectRemaining(view, receivedAt, c.now())
	onTick(remaining, applicable)
	if !applicable || remaining == 0 || !Ticking(view) {
		close(c.finished)
		return
	}

	go func() {
		defer close(c.finished)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-c.done:
				return
			case <-ticker.C:
				remaining, _ := ProjectRemaining(view, receivedAt, c.now())
				select {
				case <-c.done:
					return
				default:
				}
				onTick(remaining, true)
				if remaining == 0 {
					return
				}
			}
		}
	}()
}

// Stop halts ticking. It is safe to call more than once and before Start.
func (c *Countdown) Stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

// Done is closed once the countdown has stopped ticking.
func (c *Countdown) Done() <-chan struct{} {
	return c.finished
}

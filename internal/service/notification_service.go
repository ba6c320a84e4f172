package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/guest-requests/internal/config"
	"github.com/spec-kit/guest-requests/internal/events"
	"github.com/spec-kit/guest-requests/internal/notify"
	"github.com/spec-kit/guest-requests/internal/observability"
)

// NotificationService forwards committed changes to the configured sinks.
// Handlers only enqueue; Run drains the queue.
type NotificationService struct {
	dispatcher events.Dispatcher
	sinks      []notify.Sink
	queue      chan events.Event
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics, cfg config.NotificationConfig, sinks ...notify.Sink) *NotificationService {
	buffer := cfg.WorkerBuffer
	if buffer <= 0 {
		buffer = 256
	}
	return &NotificationService{
		dispatcher: dispatcher,
		sinks:      sinks,
		queue:      make(chan events.Event, buffer),
		metrics:    metrics,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil || len(n.sinks) == 0 {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketChanged, n.enqueue)
	n.dispatcher.Subscribe(events.EventSLAChanged, n.enqueue)
}

func (n *NotificationService) enqueue(_ context.Context, event events.Event) error {
	select {
	case n.queue <- event:
	default:
		n.metrics.RecordNotifyFailure("queue")
		n.logger.Warn("notification queue full, dropping", zap.String("ticket_id", event.TicketID))
	}
	return nil
}

// Run delivers queued events until ctx is done, then flushes what is left.
func (n *NotificationService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			n.drain()
			return
		case event := <-n.queue:
			n.deliver(ctx, event)
		}
	}
}

func (n *NotificationService) drain() {
	for {
		select {
		case event := <-n.queue:
			n.deliver(context.Background(), event)
		default:
			return
		}
	}
}

func (n *NotificationService) deliver(ctx context.Context, event events.Event) {
	for _, sink := range n.sinks {
		if err := sink.Deliver(ctx, event); err != nil {
			n.metrics.RecordNotifyFailure(sink.Name())
			n.logger.Warn("deliver notification",
				zap.String("sink", sink.Name()),
				zap.String("ticket_id", event.TicketID),
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
		}
	}
}

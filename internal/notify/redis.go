package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/guest-requests/internal/events"
)

// RedisPublisher publishes change notifications per location.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

// NewRedisPublisher builds a publisher on client.
func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: prefix}
}

func (p *RedisPublisher) Name() string { return "redis" }

// Deliver publishes {ticket_id, kind} on the ticket's location channel.
func (p *RedisPublisher) Deliver(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(Notification{TicketID: event.TicketID, Kind: event.Type})
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, Channel(p.prefix, event.LocationID), payload).Err()
}

// RedisSubscriber listens to a location channel.
type RedisSubscriber struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisSubscriber builds a subscriber on client.
func NewRedisSubscriber(client *redis.Client, prefix string, logger *zap.Logger) *RedisSubscriber {
	return &RedisSubscriber{client: client, prefix: prefix, logger: logger}
}

// Listen calls fn for every notification on the location channel until ctx
// is done. Malformed messages still call fn with an empty notification.
func (s *RedisSubscriber) Listen(ctx context.Context, locationID string, fn func(Notification)) error {
	sub := s.client.Subscribe(ctx, Channel(s.prefix, locationID))
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			n, err := Decode(msg.Payload)
			if err != nil {
				s.logger.Warn("malformed change notification", zap.String("channel", msg.Channel), zap.Error(err))
			}
			fn(n)
		}
	}
}

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// EventHandler reacts to a committed ticket change.
type EventHandler func(context.Context, Event) error

// Dispatcher fans committed changes out to in-process subscribers such as
// the notification service.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

type localDispatcher struct {
	mu       sync.RWMutex
	handlers map[EventType][]EventHandler
}

// NewInMemoryDispatcher returns a synchronous dispatcher local to this
// process.
func NewInMemoryDispatcher() Dispatcher {
	return &localDispatcher{handlers: make(map[EventType][]EventHandler)}
}

// Publish calls every handler subscribed to event.Type in subscription
// order. A failing handler does not stop the others; failures are joined
// and tagged with the event type and ticket.
func (d *localDispatcher) Publish(ctx context.Context, event Event) error {
	d.mu.RLock()
	handlers := d.handlers[event.Type]
	d.mu.RUnlock()

	var errs []error
	for i, handle := range handlers {
		if err := handle(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%s handler %d for ticket %s: %w", event.Type, i, event.TicketID, err))
		}
	}
	return errors.Join(errs...)
}

// Subscribe adds handler for eventType. Nil handlers are ignored.
func (d *localDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	if handler == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	// Slices are never mutated in place; Publish reads them after releasing mu.
	next := make([]EventHandler, len(d.handlers[eventType]), len(d.handlers[eventType])+1)
	copy(next, d.handlers[eventType])
	d.handlers[eventType] = append(next, handler)
}

// Package eventbus carries lifecycle events to adjacent subsystems over watermill.
package eventbus

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/botflow/pkg/events"
)

// ErrUnexpectedEvent is returned by handlers built with On when the decoded
// event is not the type they were registered for.
var ErrUnexpectedEvent = errors.New("unexpected event type")

type Event interface {
	GetType() events.EventType
}

// EventPublisher publishes an event keyed by the bot it concerns. Events with
// the same key keep their order on partitioned transports.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventHandler receives a decoded event. A returned error nacks the message.
type EventHandler func(ctx context.Context, event Event) error

// On adapts a handler for one concrete event type, for example
// On(func(ctx context.Context, e *events.NodeFailed) error { ... }).
func On[T Event](handler func(ctx context.Context, event T) error) EventHandler {
	return func(ctx context.Context, event Event) error {
		typed, ok := event.(T)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnexpectedEvent, event.GetType())
		}

		return handler(ctx, typed)
	}
}

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}

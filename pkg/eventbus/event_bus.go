// Package eventbus provides event-driven communication between the
// ingestion consumer, the worker and lifecycle observers.
package eventbus

import (
	"context"

	"github.com/gramflow/gramflow/pkg/events"
)

// Event is anything publishable on the bus.
type Event interface {
	GetType() events.EventType
}

// EventPublisher publishes events keyed by a partitioning key (the
// workflow or account ID).
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventSubscriber registers handlers and starts consumption.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventHandler processes one decoded event.
type EventHandler func(ctx context.Context, event any) error

// EventBus combines publishing and subscription over one transport.
type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}

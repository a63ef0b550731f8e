// Package eventbus provides the event distribution layer between the
// orchestrator and its in-process consumers.
package eventbus

import (
	"context"

	"github.com/socworks/argus/pkg/events"
)

type Event interface {
	GetType() events.EventType
	GetWorkflowID() string
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}

// Package pubsub fans in-process events out to subscribers. The registry
// publishes layout changes on it and the log package publishes entries.
package pubsub

import (
	"context"
	"time"
)

// EventType names what happened. Subscribers filter on it.
type EventType string

// Layout lifecycle.
const (
	CreatedEvent EventType = "created"
	UpdatedEvent EventType = "updated"
	DeletedEvent EventType = "deleted"
	OpenedEvent  EventType = "opened"
)

// LogEntryEvent carries one formatted log line.
const LogEntryEvent EventType = "log"

// Event is one published value and when it was published.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber is the read side of a Broker, accepted by consumers that
// only listen.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context, types ...EventType) <-chan Event[T]
}

var _ Subscriber[string] = (*Broker[string])(nil)

// Package events bridges registry change events to an external message bus.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/zjrosen/dockyard/internal/layouts/domain"
	"github.com/zjrosen/dockyard/internal/layouts/snapshot"
	"github.com/zjrosen/dockyard/internal/pubsub"
)

// TopicPrefix is prepended to the event type to form the subject.
const TopicPrefix = "dockyard.layout."

// Topic constants
const (
	TopicLayoutCreated = TopicPrefix + string(pubsub.CreatedEvent)
	TopicLayoutUpdated = TopicPrefix + string(pubsub.UpdatedEvent)
	TopicLayoutDeleted = TopicPrefix + string(pubsub.DeletedEvent)
	TopicLayoutOpened  = TopicPrefix + string(pubsub.OpenedEvent)
)

// Topic returns the subject an event of type t is published on.
func Topic(t pubsub.EventType) string {
	return TopicPrefix + string(t)
}

// LayoutMessage is the JSON body published for each registry event.
// Snapshot holds the record in portable snapshot form; it is omitted for
// a deletion of a key that never existed.
type LayoutMessage struct {
	Type      pubsub.EventType `json:"type"`
	Key       string           `json:"key"`
	Snapshot  json.RawMessage  `json:"snapshot,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewLayoutMessage converts a broker event into its wire message.
func NewLayoutMessage(ev pubsub.Event[domain.LayoutEvent]) LayoutMessage {
	msg := LayoutMessage{
		Type:      ev.Type,
		Key:       ev.Payload.Key,
		Timestamp: ev.Timestamp.UTC(),
	}
	if ev.Payload.Layout.Key != "" {
		l := ev.Payload.Layout
		msg.Snapshot = json.RawMessage(snapshot.Encode(&l))
	}
	return msg
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

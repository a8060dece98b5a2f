package events

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/zjrosen/dockyard/internal/layouts/domain"
	"github.com/zjrosen/dockyard/internal/log"
	"github.com/zjrosen/dockyard/internal/pubsub"
)

// Forwarder relays registry events from the in-process broker to a
// Publisher. Publish failures are logged and counted; they never reach
// the registry.
type Forwarder struct {
	source pubsub.Subscriber[domain.LayoutEvent]
	pub    Publisher

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	forwarded atomic.Int64
	failures  atomic.Int64
}

// NewForwarder creates a forwarder; call Start to begin relaying.
func NewForwarder(source pubsub.Subscriber[domain.LayoutEvent], pub Publisher) *Forwarder {
	return &Forwarder{source: source, pub: pub}
}

// Start subscribes and relays in the background until ctx is done, Stop
// is called, or the broker closes. Events published after Start returns
// are never missed. Calling Start twice is a no-op.
func (f *Forwarder) Start(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done != nil {
		return
	}

	ctx, f.cancel = context.WithCancel(ctx)
	f.done = make(chan struct{})
	ch := f.source.Subscribe(ctx)

	go func() {
		defer close(f.done)
		for ev := range ch {
			f.forward(ctx, ev)
		}
	}()
}

func (f *Forwarder) forward(ctx context.Context, ev pubsub.Event[domain.LayoutEvent]) {
	topic := Topic(ev.Type)
	if err := f.pub.Publish(ctx, topic, NewLayoutMessage(ev)); err != nil {
		f.failures.Add(1)
		log.ErrorErr(log.CatEvents, "failed to forward layout event", err, "topic", topic, "key", ev.Payload.Key)
		return
	}
	f.forwarded.Add(1)
	log.Debug(log.CatEvents, "forwarded layout event", "topic", topic, "key", ev.Payload.Key)
}

// Stop ends relaying and waits for the loop to exit. Safe to call twice
// or before Start.
func (f *Forwarder) Stop() {
	f.mu.Lock()
	cancel, done := f.cancel, f.done
	f.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Forwarded returns how many events were published successfully.
func (f *Forwarder) Forwarded() int64 {
	return f.forwarded.Load()
}

// Failures returns how many events could not be published.
func (f *Forwarder) Failures() int64 {
	return f.failures.Load()
}

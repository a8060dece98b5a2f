package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/dockyard/internal/layouts/domain"
	"github.com/zjrosen/dockyard/internal/layouts/snapshot"
	"github.com/zjrosen/dockyard/internal/pubsub"
)

type published struct {
	topic string
	event any
}

// recordingPublisher captures everything it is asked to publish.
type recordingPublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{topic: topic, event: event})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs)
}

func (p *recordingPublisher) snapshot() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.msgs...)
}

func sampleLayout() domain.Layout {
	return domain.NewLayout("k1", "Ops", domain.KindLocal, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

func TestNoopPublisher(t *testing.T) {
	pub := &NoopPublisher{}
	require.NoError(t, pub.Publish(context.Background(), TopicLayoutCreated, LayoutMessage{}))
	require.NoError(t, pub.Close())
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "dockyard.layout.created", Topic(pubsub.CreatedEvent))
	assert.Equal(t, TopicLayoutDeleted, Topic(pubsub.DeletedEvent))
	assert.Equal(t, TopicLayoutOpened, Topic(pubsub.OpenedEvent))
	assert.Equal(t, TopicLayoutUpdated, Topic(pubsub.UpdatedEvent))
}

func TestNewLayoutMessage_CarriesSnapshot(t *testing.T) {
	l := sampleLayout()
	ts := time.Date(2024, 2, 3, 4, 5, 6, 0, time.FixedZone("X", 3600))

	msg := NewLayoutMessage(pubsub.Event[domain.LayoutEvent]{
		Type:      pubsub.UpdatedEvent,
		Payload:   domain.LayoutEvent{Key: "k1", Layout: l},
		Timestamp: ts,
	})

	assert.Equal(t, pubsub.UpdatedEvent, msg.Type)
	assert.Equal(t, "k1", msg.Key)
	assert.Equal(t, time.UTC, msg.Timestamp.Location())
	decoded, err := snapshot.Decode(string(msg.Snapshot))
	require.NoError(t, err)
	assert.True(t, l.Equal(decoded))
}

func TestNewLayoutMessage_DeletedUnknownKeyOmitsSnapshot(t *testing.T) {
	msg := NewLayoutMessage(pubsub.Event[domain.LayoutEvent]{
		Type:    pubsub.DeletedEvent,
		Payload: domain.LayoutEvent{Key: "ghost"},
	})

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "snapshot")
}

func TestForwarder_RelaysEvents(t *testing.T) {
	broker := pubsub.NewBroker[domain.LayoutEvent]()
	defer broker.Close()
	pub := &recordingPublisher{}

	fwd := NewForwarder(broker, pub)
	fwd.Start(context.Background())
	defer fwd.Stop()

	broker.Publish(pubsub.CreatedEvent, domain.LayoutEvent{Key: "k1", Layout: sampleLayout()})
	broker.Publish(pubsub.DeletedEvent, domain.LayoutEvent{Key: "k1", Layout: sampleLayout()})

	require.Eventually(t, func() bool { return pub.count() == 2 }, time.Second, 5*time.Millisecond)
	msgs := pub.snapshot()
	assert.Equal(t, TopicLayoutCreated, msgs[0].topic)
	assert.Equal(t, TopicLayoutDeleted, msgs[1].topic)
	assert.Equal(t, "k1", msgs[1].event.(LayoutMessage).Key)
	assert.Equal(t, int64(2), fwd.Forwarded())
}

func TestForwarder_CountsFailures(t *testing.T) {
	broker := pubsub.NewBroker[domain.LayoutEvent]()
	defer broker.Close()
	pub := &recordingPublisher{err: errors.New("bus down")}

	fwd := NewForwarder(broker, pub)
	fwd.Start(context.Background())
	defer fwd.Stop()

	broker.Publish(pubsub.UpdatedEvent, domain.LayoutEvent{Key: "k1", Layout: sampleLayout()})

	require.Eventually(t, func() bool { return fwd.Failures() == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, fwd.Forwarded())
}

func TestForwarder_StopIsIdempotent(t *testing.T) {
	broker := pubsub.NewBroker[domain.LayoutEvent]()
	defer broker.Close()
	fwd := NewForwarder(broker, &NoopPublisher{})

	fwd.Stop() // before Start
	fwd.Start(context.Background())
	fwd.Start(context.Background())
	fwd.Stop()
	fwd.Stop()

	require.Eventually(t, func() bool { return broker.SubscriberCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestForwarder_ExitsWhenBrokerCloses(t *testing.T) {
	broker := pubsub.NewBroker[domain.LayoutEvent]()
	fwd := NewForwarder(broker, &NoopPublisher{})
	fwd.Start(context.Background())

	broker.Close()

	stopped := make(chan struct{})
	go func() {
		fwd.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("forwarder did not stop after broker closed")
	}
}

// startTestNATS starts an embedded NATS server and returns its client URL.
func startTestNATS(t *testing.T) string {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: -1})
	require.NoError(t, err, "starting embedded NATS")
	srv.Start()
	t.Cleanup(srv.Shutdown)
	require.True(t, srv.ReadyForConnections(5*time.Second), "embedded NATS not ready")
	return srv.ClientURL()
}

func TestNATSPublisher_EndToEnd(t *testing.T) {
	url := startTestNATS(t)

	sub, err := nats.Connect(url)
	require.NoError(t, err)
	defer sub.Close()
	ch := make(chan *nats.Msg, 4)
	_, err = sub.ChanSubscribe(TopicPrefix+">", ch)
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	pub, err := NewNATSPublisher(url)
	require.NoError(t, err)

	broker := pubsub.NewBroker[domain.LayoutEvent]()
	defer broker.Close()
	fwd := NewForwarder(broker, pub)
	fwd.Start(context.Background())

	broker.Publish(pubsub.OpenedEvent, domain.LayoutEvent{Key: "k1", Layout: sampleLayout()})

	select {
	case msg := <-ch:
		assert.Equal(t, TopicLayoutOpened, msg.Subject)
		var got LayoutMessage
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, "k1", got.Key)
		assert.Equal(t, pubsub.OpenedEvent, got.Type)
		decoded, err := snapshot.Decode(string(got.Snapshot))
		require.NoError(t, err)
		assert.Equal(t, "Ops", decoded.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	fwd.Stop()
	require.NoError(t, pub.Close())
}

func TestNewNATSPublisher_BadURL(t *testing.T) {
	_, err := NewNATSPublisher("nats://127.0.0.1:1", nats.Timeout(100*time.Millisecond), nats.NoReconnect())
	require.Error(t, err)
}

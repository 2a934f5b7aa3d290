package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alem-hub/spectrum/internal/domain/shared"
	"github.com/alem-hub/spectrum/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)

func ratingChanged(id string) shared.Event {
	return shared.NewRatingChangedEvent(id, "KUDOS", 1000, 1005, "Kudos: +5", at)
}

func TestInMemoryEventBus_Sync(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{Logger: logger.Discard()})

	var typed, all []string
	require.NoError(t, bus.Subscribe(shared.EventRatingChanged, func(e shared.Event) error {
		typed = append(typed, e.AggregateID())
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		all = append(all, string(e.EventType()))
		return errors.New("ignored")
	}))

	require.NoError(t, bus.Publish(ratingChanged("s-1")))
	require.NoError(t, bus.Publish(shared.NewAlertResolvedEvent("a-1", at)))

	assert.Equal(t, []string{"s-1"}, typed)
	assert.Equal(t, []string{"rating.changed", "security.alert_resolved"}, all)
}

func TestInMemoryEventBus_RecoversPanics(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{Logger: logger.Discard()})
	called := false
	require.NoError(t, bus.Subscribe(shared.EventRatingChanged, func(shared.Event) error { panic("boom") }))
	require.NoError(t, bus.Subscribe(shared.EventRatingChanged, func(shared.Event) error {
		called = true
		return nil
	}))

	assert.NoError(t, bus.Publish(ratingChanged("s-1")))
	assert.True(t, called)
}

func TestInMemoryEventBus_AsyncCloseWaits(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2, Logger: logger.Discard()})

	var handled atomic.Int32
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		time.Sleep(5 * time.Millisecond)
		handled.Add(1)
		return nil
	}))

	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(ratingChanged("s")))
	}
	require.NoError(t, bus.Close())
	assert.Equal(t, int32(10), handled.Load())

	assert.ErrorIs(t, bus.Publish(ratingChanged("s")), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventRatingChanged, func(shared.Event) error { return nil }), ErrEventBusClosed)
}

func TestInMemoryEventBus_RejectsNil(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	assert.Error(t, bus.Publish(nil))
	assert.Error(t, bus.Subscribe(shared.EventRatingChanged, nil))
}

// fakeRedis loops published messages back to the subscriber.
type fakeRedis struct {
	mu        sync.Mutex
	published []string
	ch        chan RedisMessage
}

func newFakeRedis() *fakeRedis { return &fakeRedis{ch: make(chan RedisMessage, 16)} }

func (f *fakeRedis) Publish(_ context.Context, channel string, message interface{}) error {
	f.mu.Lock()
	f.published = append(f.published, message.(string))
	f.mu.Unlock()
	f.ch <- RedisMessage{Channel: channel, Payload: message.(string)}
	return nil
}

func (f *fakeRedis) Subscribe(context.Context, ...string) (<-chan RedisMessage, error) {
	return f.ch, nil
}

func (f *fakeRedis) Close() error { return nil }

func TestRedisEventBus_DeliversLocallyOnceAndAcceptsRemote(t *testing.T) {
	client := newFakeRedis()
	bus, err := NewRedisEventBus(RedisEventBusConfig{
		Client:     client,
		InstanceID: "node-a",
		Logger:     logger.Discard(),
	})
	require.NoError(t, err)
	defer bus.Close()

	got := make(chan shared.Event, 4)
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		got <- e
		return nil
	}))

	require.NoError(t, bus.Publish(ratingChanged("s-1")))
	first := <-got
	assert.Equal(t, "s-1", first.AggregateID())

	remote, err := json.Marshal(eventEnvelope{
		InstanceID:  "node-b",
		EventType:   shared.EventAlertRaised,
		AggregateID: "s-2",
		OccurredAt:  at,
		Payload:     map[string]interface{}{"level": "CRITICAL"},
	})
	require.NoError(t, err)
	client.ch <- RedisMessage{Channel: DefaultChannel, Payload: string(remote)}

	select {
	case e := <-got:
		assert.Equal(t, shared.EventAlertRaised, e.EventType())
		assert.Equal(t, "CRITICAL", e.Payload()["level"])
	case <-time.After(time.Second):
		t.Fatal("remote event not delivered")
	}

	// The looped-back copy of our own event must not be delivered again.
	select {
	case e := <-got:
		t.Fatalf("unexpected event %s", e.EventType())
	case <-time.After(50 * time.Millisecond):
	}

	client.mu.Lock()
	assert.Len(t, client.published, 1)
	client.mu.Unlock()
}

package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub *Subscriber) Event {
	t.Helper()
	select {
	case e, ok := <-sub.Events:
		require.True(t, ok, "subscriber channel closed")
		return e
	case <-time.After(time.Second):
		require.FailNow(t, "timed out waiting for event")
	}
	return Event{}
}

func waitClosed(t *testing.T, sub *Subscriber) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-sub.Events:
			if !ok {
				return
			}
		case <-deadline:
			require.FailNow(t, "subscriber channel not closed")
		}
	}
}

func TestPublishAssignsMonotonicIDsPerTransmitter(t *testing.T) {
	hub := NewHub(10)
	defer hub.Stop()

	sub, err := hub.Subscribe(context.Background(), "", 0)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, hub.PublishTransmitter("TxAll", Event{Type: EventState}))
	}
	require.NoError(t, hub.PublishTransmitter("Tx1", Event{Type: EventLatency}))

	for i, want := range []int64{1, 2, 3, 1} {
		e := receive(t, sub)
		assert.Equal(t, want, e.ID, "event %d", i)
		assert.False(t, e.Timestamp.IsZero(), "event %d has a timestamp", i)
	}
}

func TestSubscriberFiltersByTransmitter(t *testing.T) {
	hub := NewHub(10)
	defer hub.Stop()

	sub, err := hub.Subscribe(context.Background(), "Tx1", 0)
	require.NoError(t, err)

	_ = hub.PublishTransmitter("Tx2", Event{Type: EventState})
	_ = hub.PublishTransmitter("Tx1", Event{Type: EventTimeout})
	_ = hub.Publish(Event{Type: EventCommand})

	e := receive(t, sub)
	assert.Equal(t, EventTimeout, e.Type)
	assert.Equal(t, "Tx1", e.Transmitter)
	assert.Equal(t, EventCommand, receive(t, sub).Type, "global events reach filtered subscribers")
}

func TestSubscribeReplaysAfterLastEventID(t *testing.T) {
	hub := NewHub(3)
	defer hub.Stop()

	for i := 0; i < 5; i++ {
		_ = hub.PublishTransmitter("TxAll", Event{Type: EventState, Data: map[string]interface{}{"n": i}})
	}
	require.Equal(t, 3, hub.Buffer("TxAll").GetSize())

	sub, err := hub.Subscribe(context.Background(), "TxAll", 3)
	require.NoError(t, err)
	for _, want := range []int64{4, 5} {
		assert.Equal(t, want, receive(t, sub).ID, "replayed ID")
	}

	_ = hub.PublishTransmitter("TxAll", Event{Type: EventState})
	assert.Equal(t, int64(6), receive(t, sub).ID, "live ID after replay")
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(10)
	defer hub.Stop()

	sub, err := hub.Subscribe(context.Background(), "", 0)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberQueueSize+25; i++ {
			_ = hub.Publish(Event{Type: EventState})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "Publish blocked on a slow subscriber")
	}
	assert.EqualValues(t, 25, sub.Dropped())
}

func TestUnsubscribeOnContextCancel(t *testing.T) {
	hub := NewHub(10)
	defer hub.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := hub.Subscribe(ctx, "", 0)
	require.NoError(t, err)
	require.Equal(t, 1, hub.SubscriberCount())

	cancel()
	waitClosed(t, sub)
	assert.Equal(t, 0, hub.SubscriberCount())

	// Publishing after the subscriber left must not panic.
	assert.NoError(t, hub.Publish(Event{Type: EventState}))
	hub.Unsubscribe(sub.ID)
	hub.Unsubscribe("unknown")
}

func TestStop(t *testing.T) {
	hub := NewHub(10)
	sub, err := hub.Subscribe(context.Background(), "", 0)
	require.NoError(t, err)

	hub.Stop()
	hub.Stop()
	waitClosed(t, sub)

	assert.ErrorIs(t, hub.Publish(Event{Type: EventState}), ErrHubStopped)
	_, err = hub.Subscribe(context.Background(), "", 0)
	assert.ErrorIs(t, err, ErrHubStopped)
}

func TestEventBuffer(t *testing.T) {
	b := NewEventBuffer(2)
	assert.Equal(t, 2, b.GetCapacity())
	for id := int64(1); id <= 3; id++ {
		b.AddEvent(Event{ID: id})
	}
	got := b.GetEventsAfter(0)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].ID)
	assert.Equal(t, int64(3), got[1].ID)
	assert.Empty(t, b.GetEventsAfter(3), "no events after the newest ID")
}

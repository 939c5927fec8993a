package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishDelivers(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	ch, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	hub.Publish(Event{Type: EventStepParallel, ModuleID: "auth", Step: "upgrade"})

	select {
	case received := <-ch:
		assert.Equal(t, EventStepParallel, received.Type)
		assert.Equal(t, "auth", received.ModuleID)
		assert.False(t, received.Timestamp.IsZero(), "timestamp should be stamped on publish")
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	ch, unsubscribe := hub.Subscribe()
	unsubscribe()

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")

	assert.NotPanics(t, func() { unsubscribe() })
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	// Never drained; buffer fills and further publishes must drop, not block.
	_, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			hub.Publish(Event{Type: EventStepCompleted})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestHub_PublishAfterClose(t *testing.T) {
	hub := NewHub()
	ch, _ := hub.Subscribe()
	hub.Close()

	_, ok := <-ch
	require.False(t, ok, "subscriber channel should close with the hub")

	assert.NotPanics(t, func() {
		hub.Publish(Event{Type: EventRunCompleted})
		hub.Close()
	})
}

func TestHub_ConcurrentPublishSubscribe(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch, unsubscribe := hub.Subscribe()
			for j := 0; j < 50; j++ {
				hub.Publish(Event{Type: EventStepStarted})
			}
			for len(ch) > 0 {
				<-ch
			}
			unsubscribe()
		}()
	}
	wg.Wait()
}

func TestHub_NilHubIsSafe(t *testing.T) {
	var hub *Hub
	assert.NotPanics(t, func() {
		hub.Publish(Event{Type: EventRunStarted})
	})
}

package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
	return Event{}
}

func TestHubPublishStampsEvent(t *testing.T) {
	hub := NewHub("run-1")
	defer hub.Close()

	ch, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	hub.Emit(EventSessionAuthenticated, map[string]any{"user": "alice"})

	ev := receive(t, ch)
	assert.Equal(t, EventSessionAuthenticated, ev.Type)
	assert.Equal(t, "run-1", ev.RunID)
	assert.NotEmpty(t, ev.ID)
	assert.False(t, ev.Timestamp.IsZero())
	assert.Equal(t, "alice", ev.Data["user"])
}

func TestHubFanOut(t *testing.T) {
	hub := NewHub("")
	defer hub.Close()

	a, unsubA := hub.Subscribe()
	b, unsubB := hub.Subscribe()
	defer unsubB()

	hub.Emit(EventReposLoaded, nil)
	assert.Equal(t, EventReposLoaded, receive(t, a).Type)
	assert.Equal(t, EventReposLoaded, receive(t, b).Type)

	unsubA()
	_, ok := <-a
	assert.False(t, ok, "unsubscribed channel should be closed")
	assert.NotPanics(t, unsubA)
}

func TestHubDropsWhenSubscriberIsFull(t *testing.T) {
	hub := NewHub("")
	defer hub.Close()

	_, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			hub.Emit(EventScanCompleted, nil)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestHubClose(t *testing.T) {
	hub := NewHub("")
	ch, _ := hub.Subscribe()
	hub.Close()

	_, ok := <-ch
	assert.False(t, ok)

	late, _ := hub.Subscribe()
	_, ok = <-late
	assert.False(t, ok, "subscribe after close returns a closed channel")

	assert.NotPanics(t, func() {
		hub.Emit(EventSessionLogout, nil)
		hub.Close()
	})
}

func TestNilHubIsNoop(t *testing.T) {
	var hub *Hub
	assert.NotPanics(t, func() {
		hub.Emit(EventSessionLoading, nil)
		hub.Close()
	})
}

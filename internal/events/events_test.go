package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, s *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-s.C:
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestBusFanOut(t *testing.T) {
	bus := NewBus(nil)
	all := bus.Subscribe(4)
	pasteOnly := bus.Subscribe(4, PasteFailed, PasteDelivered)

	bus.Publish(Event{Type: HistoryUpdated})
	bus.Publish(Event{Type: PasteFailed, Payload: PasteResultPayload{EntryID: "e1", Err: errors.New("x")}})

	assert.Equal(t, HistoryUpdated, receive(t, all).Type)
	assert.Equal(t, PasteFailed, receive(t, all).Type)

	ev := receive(t, pasteOnly)
	assert.Equal(t, PasteFailed, ev.Type)
	payload, ok := ev.Payload.(PasteResultPayload)
	require.True(t, ok)
	assert.Equal(t, "e1", payload.EntryID)
	assert.Len(t, pasteOnly.C, 0)
}

func TestBusDropsWhenFull(t *testing.T) {
	bus := NewBus(nil)
	s := bus.Subscribe(1)
	bus.Publish(Event{Type: EntryAdded})
	bus.Publish(Event{Type: HistoryUpdated})

	assert.Equal(t, EntryAdded, receive(t, s).Type)
	assert.Len(t, s.C, 0)
}

func TestSubscriptionCancel(t *testing.T) {
	bus := NewBus(nil)
	s := bus.Subscribe(1)
	s.Cancel()
	s.Cancel()

	_, ok := <-s.C
	assert.False(t, ok)

	assert.NotPanics(t, func() { bus.Publish(Event{Type: HistoryUpdated}) })
}

func TestBusClose(t *testing.T) {
	bus := NewBus(nil)
	a := bus.Subscribe(1)
	b := bus.Subscribe(1)
	bus.Close()

	_, ok := <-a.C
	assert.False(t, ok)
	_, ok = <-b.C
	assert.False(t, ok)
	assert.NotPanics(t, a.Cancel)
}

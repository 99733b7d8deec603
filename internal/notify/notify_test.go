package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berrythewa/clipstack/internal/events"
)

type sent struct {
	mu    sync.Mutex
	items []string
	ch    chan struct{}
}

func (s *sent) send(title, body string) error {
	s.mu.Lock()
	s.items = append(s.items, title+"|"+body)
	s.mu.Unlock()
	s.ch <- struct{}{}
	return nil
}

func run(t *testing.T, onCopy bool) (*events.Bus, *sent) {
	t.Helper()
	bus := events.NewBus(nil)
	s := &sent{ch: make(chan struct{}, 8)}
	n := New(bus, s.send, func() bool { return onCopy }, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = n.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return bus, s
}

func wait(t *testing.T, s *sent) {
	t.Helper()
	select {
	case <-s.ch:
	case <-time.After(time.Second):
		t.Fatal("no notification")
	}
}

func TestNotifyOnCopy(t *testing.T) {
	bus, s := run(t, true)
	bus.Publish(events.Event{Type: events.EntryAdded, Payload: events.EntryAddedPayload{EntryID: "1", Preview: "hello\nthere"}})
	wait(t, s)
	assert.Equal(t, []string{"Clipstack - Copied|hello there"}, s.items)
}

func TestCopySilentWhenDisabled(t *testing.T) {
	bus, s := run(t, false)
	bus.Publish(events.Event{Type: events.EntryAdded, Payload: events.EntryAddedPayload{Preview: "x"}})
	bus.Publish(events.Event{Type: events.PasteFailed, Payload: events.PasteResultPayload{Target: "com.apple.TextEdit", Err: errors.New("x")}})
	wait(t, s)

	s.mu.Lock()
	defer s.mu.Unlock()
	require.Len(t, s.items, 1)
	assert.Contains(t, s.items[0], "Could not paste into com.apple.TextEdit automatically")
}

func TestPermissionNeeded(t *testing.T) {
	bus, s := run(t, false)
	bus.Publish(events.Event{Type: events.PermissionNeeded})
	wait(t, s)
	assert.Contains(t, s.items[0], "Permission needed")
}

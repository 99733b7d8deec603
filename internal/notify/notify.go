// Package notify turns bus events into desktop notifications.
package notify

import (
	"context"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"

	"github.com/berrythewa/clipstack/internal/events"
	"github.com/berrythewa/clipstack/pkg/format"
)

const appName = "Clipstack"

// SendFunc shows one notification
type SendFunc func(title, body string) error

// Beeep sends through the native notification center
func Beeep(title, body string) error {
	return beeep.Notify(title, body, "")
}

// Notifier shows copy confirmations, paste failures and permission prompts
type Notifier struct {
	sub          *events.Subscription
	send         SendFunc
	notifyOnCopy func() bool
	logger       *zap.Logger
}

// New creates a notifier subscribed to bus. notifyOnCopy is read per event.
func New(bus *events.Bus, send SendFunc, notifyOnCopy func() bool, logger *zap.Logger) *Notifier {
	if send == nil {
		send = Beeep
	}
	if notifyOnCopy == nil {
		notifyOnCopy = func() bool { return false }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		sub:          bus.Subscribe(16, events.EntryAdded, events.PasteFailed, events.PermissionNeeded),
		send:         send,
		notifyOnCopy: notifyOnCopy,
		logger:       logger,
	}
}

// Run delivers notifications until ctx is done
func (n *Notifier) Run(ctx context.Context) error {
	defer n.sub.Cancel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-n.sub.C:
			if !ok {
				return nil
			}
			n.handle(ev)
		}
	}
}

func (n *Notifier) handle(ev events.Event) {
	var title, body string
	switch ev.Type {
	case events.EntryAdded:
		if !n.notifyOnCopy() {
			return
		}
		p, _ := ev.Payload.(events.EntryAddedPayload)
		title = appName + " - Copied"
		body = format.Preview(p.Preview, 80)
	case events.PasteFailed:
		p, _ := ev.Payload.(events.PasteResultPayload)
		title = appName
		body = "Could not paste automatically, paste manually with ⌘V."
		if p.Target != "" {
			body = "Could not paste into " + p.Target + " automatically, paste manually with ⌘V."
		}
	case events.PermissionNeeded:
		title = appName + " - Permission needed"
		body = "Allow Clipstack under System Settings › Privacy & Security › Accessibility to paste automatically."
	default:
		return
	}
	if err := n.send(title, body); err != nil {
		n.logger.Warn("Failed to show notification", zap.String("event", string(ev.Type)), zap.Error(err))
	}
}

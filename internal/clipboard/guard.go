// Package clipboard samples the system pasteboard, turns what it finds into
// history entries, and writes entries back.
package clipboard

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Guard marks the next pasteboard change as our own write. It expires on its
// own so a write that never lands cannot leave the poller deaf.
type Guard struct {
	mu    sync.Mutex
	until time.Time
	clock clock.Clock
}

// NewGuard returns a disarmed guard
func NewGuard(clk clock.Clock) *Guard {
	if clk == nil {
		clk = clock.New()
	}
	return &Guard{clock: clk}
}

// Arm sets the guard for ttl from now
func (g *Guard) Arm(ttl time.Duration) {
	g.mu.Lock()
	g.until = g.clock.Now().Add(ttl)
	g.mu.Unlock()
}

// Consume reports whether the guard was armed and unexpired, and disarms it
// in either case
func (g *Guard) Consume() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.until.IsZero() {
		return false
	}
	live := g.clock.Now().Before(g.until)
	g.until = time.Time{}
	return live
}

// Armed reports whether the guard is currently live without consuming it
func (g *Guard) Armed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.until.IsZero() && g.clock.Now().Before(g.until)
}

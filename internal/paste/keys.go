package paste

import (
	"fmt"
	"time"

	"github.com/go-vgo/robotgo"
)

// DefaultKeyHold is how long synthesized keys stay down
const DefaultKeyHold = 30 * time.Millisecond

// KeySender synthesizes a key chord
type KeySender interface {
	Press(key string, modifiers []string, hold time.Duration) error
}

// RobotgoKeys sends key events through robotgo
type RobotgoKeys struct{}

func (RobotgoKeys) Press(key string, modifiers []string, hold time.Duration) error {
	down := []interface{}{"down"}
	up := []interface{}{"up"}
	for _, m := range modifiers {
		down = append(down, m)
		up = append(up, m)
	}
	if err := robotgo.KeyToggle(key, down...); err != nil {
		return fmt.Errorf("key down %s: %w", key, err)
	}
	if hold > 0 {
		time.Sleep(hold)
	}
	if err := robotgo.KeyToggle(key, up...); err != nil {
		return fmt.Errorf("key up %s: %w", key, err)
	}
	return nil
}

package paste

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/berrythewa/clipstack/internal/platform"
	"github.com/berrythewa/clipstack/internal/types"
)

// MenuStrategy presses the target's Edit menu paste item through the
// accessibility tree. It only runs for rich text and images, where the
// keystroke path may lose formatting, unless an override prefers it.
type MenuStrategy struct {
	System platform.System
}

func (MenuStrategy) Name() string { return StrategyMenu }

func (MenuStrategy) Applies(a Attempt) bool {
	if a.Override.PreferMenu {
		return true
	}
	t := a.Entry.Type()
	return t == types.TypeRTF || t == types.TypeImage
}

func (s MenuStrategy) Deliver(_ context.Context, a Attempt) error {
	_, err := s.System.InvokeMenuItem(a.Target, defaultMenu, a.Override.menuItems())
	return err
}

// KeystrokeStrategy synthesizes the paste shortcut
type KeystrokeStrategy struct {
	Keys KeySender
	// Hold returns how long the keys stay down
	Hold func() time.Duration
}

func (KeystrokeStrategy) Name() string { return StrategyKeystroke }

func (KeystrokeStrategy) Applies(Attempt) bool { return true }

func (s KeystrokeStrategy) Deliver(_ context.Context, a Attempt) error {
	var hold time.Duration
	if s.Hold != nil {
		hold = s.Hold()
	}
	return s.Keys.Press(a.Override.key(), a.Override.modifiers(), hold)
}

// ScriptStrategy runs an in-process AppleScript that activates the target
// and sends the shortcut through System Events
type ScriptStrategy struct {
	System platform.System
}

func (ScriptStrategy) Name() string { return StrategyScript }

func (ScriptStrategy) Applies(Attempt) bool { return true }

func (s ScriptStrategy) Deliver(_ context.Context, a Attempt) error {
	return s.System.RunScript(PasteScript(a.Target, a.Override))
}

// HelperStrategy runs the same script in a separate osascript process
type HelperStrategy struct {
	Runner CommandRunner
	// Timeout bounds the helper process
	Timeout func() time.Duration
	TempDir string
}

func (HelperStrategy) Name() string { return StrategyHelper }

func (HelperStrategy) Applies(Attempt) bool { return true }

func (s HelperStrategy) Deliver(ctx context.Context, a Attempt) error {
	f, err := os.CreateTemp(s.TempDir, "clipstack-paste-*.applescript")
	if err != nil {
		return fmt.Errorf("failed to create helper script: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.WriteString(PasteScript(a.Target, a.Override)); err != nil {
		f.Close()
		return fmt.Errorf("failed to write helper script: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write helper script: %w", err)
	}

	timeout := DefaultHelperTimeout
	if s.Timeout != nil {
		if t := s.Timeout(); t > 0 {
			timeout = t
		}
	}
	out, err := s.Runner.Run(ctx, timeout, "osascript", path)
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("osascript: %w: %s", err, msg)
		}
		return fmt.Errorf("osascript: %w", err)
	}
	return nil
}

// ResponderStrategy sends paste: to this process's first responder. It
// carries plain text only.
type ResponderStrategy struct {
	System platform.System
}

func (ResponderStrategy) Name() string { return StrategyResponder }

func (ResponderStrategy) Applies(a Attempt) bool { return a.Entry.Type() == types.TypeText }

func (s ResponderStrategy) Deliver(context.Context, Attempt) error {
	return s.System.SendPasteAction()
}

var scriptModifiers = map[string]string{
	"cmd":     "command down",
	"command": "command down",
	"shift":   "shift down",
	"alt":     "option down",
	"option":  "option down",
	"ctrl":    "control down",
	"control": "control down",
}

// PasteScript builds the AppleScript that focuses app and types the paste
// shortcut from ov
func PasteScript(app types.App, ov Override) string {
	var b strings.Builder
	switch {
	case app.PID != 0:
		fmt.Fprintf(&b, "tell application \"System Events\" to set frontmost of (first process whose unix id is %d) to true\n", app.PID)
	case app.BundleID != "":
		fmt.Fprintf(&b, "tell application id %s to activate\n", quoteScript(app.BundleID))
	case app.Name != "":
		fmt.Fprintf(&b, "tell application %s to activate\n", quoteScript(app.Name))
	}
	b.WriteString("delay 0.1\n")

	var mods []string
	for _, m := range ov.modifiers() {
		if s, ok := scriptModifiers[strings.ToLower(m)]; ok {
			mods = append(mods, s)
		}
	}
	fmt.Fprintf(&b, "tell application \"System Events\" to keystroke %s", quoteScript(ov.key()))
	if len(mods) > 0 {
		fmt.Fprintf(&b, " using {%s}", strings.Join(mods, ", "))
	}
	b.WriteString("\n")
	return b.String()
}

func quoteScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

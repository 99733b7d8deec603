//go:build darwin

package darwin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/berrythewa/clipstack/internal/types"
)

// System drives NSWorkspace, the accessibility tree and NSAppleScript
type System struct {
	self   types.App
	logger *zap.Logger
}

// NewSystem describes the current process and returns the bridge
func NewSystem(logger *zap.Logger) *System {
	if logger == nil {
		logger = zap.NewNop()
	}
	self := selfApp()
	if self.PID == 0 {
		self.PID = os.Getpid()
	}
	if self.Name == "" {
		exe, _ := os.Executable()
		self.Name = filepath.Base(exe)
	}
	return &System{self: self, logger: logger}
}

func (s *System) Self() types.App { return s.self }

func (s *System) FrontmostApp() (types.App, error) {
	return frontmost()
}

func (s *System) RunningApps() ([]types.App, error) {
	apps := runningApps()
	if len(apps) == 0 {
		return nil, errors.New("no running applications reported")
	}
	return apps, nil
}

func (s *System) Activate(app types.App) error {
	if !activate(app.PID) {
		return fmt.Errorf("failed to activate %s", app)
	}
	return nil
}

func (s *System) AccessibilityTrusted(prompt bool) bool {
	return axTrusted(prompt)
}

func (s *System) InvokeMenuItem(app types.App, menu string, items []string) (string, error) {
	title, err := pressMenu(app.PID, menu, items)
	if err != nil {
		return "", fmt.Errorf("menu %q in %s: %w", menu, app, err)
	}
	s.logger.Debug("Pressed menu item", zap.String("app", app.String()), zap.String("item", title))
	return title, nil
}

func (s *System) RunScript(source string) error {
	return runScript(source)
}

func (s *System) SendPasteAction() error {
	if !sendPaste() {
		return errors.New("no responder accepted paste:")
	}
	return nil
}

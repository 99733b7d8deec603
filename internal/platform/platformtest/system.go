// Package platformtest provides a scriptable platform.System for tests.
package platformtest

import (
	"errors"
	"sync"

	"github.com/berrythewa/clipstack/internal/types"
)

// System is an in-memory platform.System. Activating an app makes it
// frontmost unless StealFocus is set.
type System struct {
	mu sync.Mutex

	SelfApp    types.App
	Front      types.App
	Apps       []types.App
	Trusted    bool
	StealFocus *types.App // frontmost after every activation when set
	FrontErr   error

	MenuErr      error
	ScriptErr    error
	ResponderErr error

	Prompts     int
	Activations []types.App
	MenuCalls   []string
	Scripts     []string
	Responder   int
}

// New returns a system where this process is "Clipstack" (pid 1000)
func New() *System {
	return &System{
		SelfApp: types.App{PID: 1000, BundleID: "com.example.clipstack", Name: "Clipstack", Regular: true},
		Trusted: true,
	}
}

func (s *System) Self() types.App {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.SelfApp
}

func (s *System) SetFront(app types.App) {
	s.mu.Lock()
	s.Front = app
	s.mu.Unlock()
}

// SetTrusted changes the accessibility grant
func (s *System) SetTrusted(trusted bool) {
	s.mu.Lock()
	s.Trusted = trusted
	s.mu.Unlock()
}

// PromptCount returns how many permission prompts were requested
func (s *System) PromptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Prompts
}

func (s *System) FrontmostApp() (types.App, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FrontErr != nil {
		return types.App{}, s.FrontErr
	}
	if s.Front.IsZero() {
		return types.App{}, errors.New("no frontmost application")
	}
	return s.Front, nil
}

func (s *System) RunningApps() ([]types.App, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.App(nil), s.Apps...), nil
}

func (s *System) Activate(app types.App) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Activations = append(s.Activations, app)
	if s.StealFocus != nil {
		s.Front = *s.StealFocus
		return nil
	}
	s.Front = app
	return nil
}

func (s *System) AccessibilityTrusted(prompt bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prompt {
		s.Prompts++
	}
	return s.Trusted
}

func (s *System) InvokeMenuItem(app types.App, menu string, items []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.MenuCalls = append(s.MenuCalls, menu)
	if s.MenuErr != nil {
		return "", s.MenuErr
	}
	return items[0], nil
}

func (s *System) RunScript(source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Scripts = append(s.Scripts, source)
	return s.ScriptErr
}

func (s *System) SendPasteAction() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Responder++
	return s.ResponderErr
}

// ActivationCount returns how many activations were requested
func (s *System) ActivationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Activations)
}

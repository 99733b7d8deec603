package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/berrythewa/clipstack/internal/pasteboard"
	"github.com/berrythewa/clipstack/internal/types"
)

// ErrUnsupported is returned by operations this platform cannot perform
var ErrUnsupported = errors.New("operation not supported on this platform")

// System is the OS surface used for target resolution and paste delivery
type System interface {
	// Self identifies this process
	Self() types.App

	// FrontmostApp returns the application currently owning keyboard focus
	FrontmostApp() (types.App, error)

	// RunningApps lists applications, most recently active first
	RunningApps() ([]types.App, error)

	// Activate brings app to the front
	Activate(app types.App) error

	// AccessibilityTrusted reports whether input synthesis and the
	// accessibility tree are usable. With prompt the OS asks the user.
	AccessibilityTrusted(prompt bool) bool

	// InvokeMenuItem presses the first enabled item titled one of items in
	// the menu bar menu of app, returning the title pressed
	InvokeMenuItem(app types.App, menu string, items []string) (string, error)

	// RunScript executes AppleScript source inside this process
	RunScript(source string) error

	// SendPasteAction sends paste: to this process's first responder
	SendPasteAction() error
}

// Daemonizer defines the interface for platform-specific daemonization
type Daemonizer interface {
	// Daemonize starts executable detached from the terminal and returns
	// its pid
	Daemonize(executable string, args []string, workDir string, logFile string) (int, error)

	// IsRunningAsDaemon returns true if the current process is detached
	IsRunningAsDaemon() bool
}

// SystemFactory creates a System with a logger
type SystemFactory func(*zap.Logger) System

// PasteboardFactory creates the native pasteboard with a logger
type PasteboardFactory func(*zap.Logger) (pasteboard.Pasteboard, error)

// Package variables to hold the platform-specific implementations
var (
	systemFactory     SystemFactory
	pasteboardFactory PasteboardFactory
	defaultDaemonizer Daemonizer
)

// RegisterSystemFactory allows platform-specific code to register its System
func RegisterSystemFactory(factory SystemFactory) {
	systemFactory = factory
}

// RegisterPasteboardFactory allows platform-specific code to register its
// native pasteboard
func RegisterPasteboardFactory(factory PasteboardFactory) {
	pasteboardFactory = factory
}

// RegisterDaemonizer allows platform-specific code to register its daemonizer
func RegisterDaemonizer(daemonizer Daemonizer) {
	defaultDaemonizer = daemonizer
}

// GetSystem returns the platform System, or one that reports every
// operation as unsupported
func GetSystem(logger *zap.Logger) System {
	if logger == nil {
		logger = zap.NewNop()
	}
	if systemFactory != nil {
		sys := systemFactory(logger)
		logger.Debug("Using native system bridge", zap.String("type", fmt.Sprintf("%T", sys)))
		return sys
	}
	logger.Warn("No native system bridge for this platform, paste delivery is unavailable")
	return NewUnsupported()
}

// GetPasteboard returns the native pasteboard, falling back to the portable
// implementation
func GetPasteboard(logger *zap.Logger) pasteboard.Pasteboard {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pasteboardFactory != nil {
		pb, err := pasteboardFactory(logger)
		if err == nil {
			return pb
		}
		logger.Warn("Native pasteboard unavailable, using portable fallback", zap.Error(err))
	}
	return pasteboard.NewGeneric(logger)
}

// GetPlatformDaemonizer returns the registered daemonizer
func GetPlatformDaemonizer() (Daemonizer, error) {
	if defaultDaemonizer == nil {
		return nil, ErrUnsupported
	}
	return defaultDaemonizer, nil
}

// Unsupported is a System for platforms without a native bridge
type Unsupported struct {
	self types.App
}

// NewUnsupported describes this process and nothing else
func NewUnsupported() *Unsupported {
	exe, _ := os.Executable()
	return &Unsupported{self: types.App{PID: os.Getpid(), Name: filepath.Base(exe), Regular: false}}
}

func (u *Unsupported) Self() types.App                  { return u.self }
func (u *Unsupported) FrontmostApp() (types.App, error) { return types.App{}, ErrUnsupported }
func (u *Unsupported) RunningApps() ([]types.App, error) {
	return nil, ErrUnsupported
}
func (u *Unsupported) Activate(types.App) error         { return ErrUnsupported }
func (u *Unsupported) AccessibilityTrusted(bool) bool   { return false }
func (u *Unsupported) RunScript(string) error           { return ErrUnsupported }
func (u *Unsupported) SendPasteAction() error           { return ErrUnsupported }
func (u *Unsupported) InvokeMenuItem(types.App, string, []string) (string, error) {
	return "", ErrUnsupported
}

// Package target decides which application receives a paste and brings it
// to the front.
package target

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"

	"github.com/berrythewa/clipstack/internal/platform"
	"github.com/berrythewa/clipstack/internal/types"
)

var (
	// ErrTargetUnavailable is returned when no application other than this
	// tool can receive the paste
	ErrTargetUnavailable = errors.New("no target application available")
	// ErrActivationFailed is returned when the target would not stay frontmost
	ErrActivationFailed = errors.New("target application could not be activated")
)

// DefaultSettleDelay is the wait between activation and input synthesis
const DefaultSettleDelay = 200 * time.Millisecond

// Options wire a Resolver
type Options struct {
	System platform.System
	Clock  clock.Clock
	Logger *zap.Logger

	// SettleDelay returns the current post-activation wait
	SettleDelay func() time.Duration

	// Alive reports whether pid is still running. Defaults to gopsutil.
	Alive func(pid int) bool
}

// Resolver holds the target captured for the current paste session
type Resolver struct {
	mu       sync.Mutex
	captured types.App

	sys    platform.System
	clock  clock.Clock
	settle func() time.Duration
	alive  func(pid int) bool
	logger *zap.Logger
}

// NewResolver creates a resolver with nothing captured
func NewResolver(opts Options) *Resolver {
	r := &Resolver{
		sys:    opts.System,
		clock:  opts.Clock,
		settle: opts.SettleDelay,
		alive:  opts.Alive,
		logger: opts.Logger,
	}
	if r.clock == nil {
		r.clock = clock.New()
	}
	if r.settle == nil {
		r.settle = func() time.Duration { return DefaultSettleDelay }
	}
	if r.alive == nil {
		r.alive = pidAlive
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

func pidAlive(pid int) bool {
	ok, err := process.PidExists(int32(pid))
	return err == nil && ok
}

// Capture records the frontmost application as the target for the next
// paste. When the frontmost application is this tool the previous capture
// is kept.
func (r *Resolver) Capture() (types.App, error) {
	front, err := r.sys.FrontmostApp()
	if err != nil {
		return types.App{}, fmt.Errorf("failed to read frontmost application: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isSelf(front) {
		r.logger.Debug("Frontmost application is this tool, keeping previous target",
			zap.String("previous", r.captured.String()))
		if r.captured.IsZero() {
			return types.App{}, ErrTargetUnavailable
		}
		return r.captured, nil
	}
	r.captured = front
	r.logger.Debug("Captured paste target", zap.String("app", front.String()), zap.Int("pid", front.PID))
	return front, nil
}

// SetTarget overrides the captured target
func (r *Resolver) SetTarget(app types.App) {
	r.mu.Lock()
	r.captured = app
	r.mu.Unlock()
}

// Captured returns the current capture, if any
func (r *Resolver) Captured() (types.App, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.captured, !r.captured.IsZero()
}

// Release forgets the captured target once a paste attempt is over
func (r *Resolver) Release() {
	r.mu.Lock()
	r.captured = types.App{}
	r.mu.Unlock()
}

// Resolve returns the application that should receive the paste: the
// captured target, else the frontmost application. A target that is this
// tool, has exited, or cannot take focus is replaced by the most recently
// active regular application.
func (r *Resolver) Resolve() (types.App, error) {
	r.mu.Lock()
	candidate := r.captured
	r.mu.Unlock()

	if candidate.IsZero() {
		front, err := r.sys.FrontmostApp()
		if err != nil {
			r.logger.Debug("Frontmost application unknown", zap.Error(err))
		} else {
			candidate = front
		}
	}
	if r.usable(candidate) {
		return candidate, nil
	}

	r.logger.Debug("Target not usable, looking for a substitute",
		zap.String("candidate", candidate.String()),
		zap.Bool("self", r.isSelf(candidate)))
	apps, err := r.sys.RunningApps()
	if err != nil {
		return types.App{}, fmt.Errorf("%w: %v", ErrTargetUnavailable, err)
	}
	for _, app := range apps {
		if r.usable(app) {
			r.logger.Info("Substituting paste target", zap.String("app", app.String()))
			return app, nil
		}
	}
	return types.App{}, ErrTargetUnavailable
}

func (r *Resolver) usable(app types.App) bool {
	if app.IsZero() || r.isSelf(app) || !app.Regular {
		return false
	}
	return app.PID == 0 || r.alive(app.PID)
}

func (r *Resolver) isSelf(app types.App) bool {
	return app.Same(r.sys.Self())
}

// SelfFrontmost reports whether this tool currently holds focus
func (r *Resolver) SelfFrontmost() bool {
	front, err := r.sys.FrontmostApp()
	return err == nil && r.isSelf(front)
}

// Activate brings app to the front, waits the settle delay and confirms it
// stayed there, retrying once when another application took focus
func (r *Resolver) Activate(app types.App) error {
	var front types.App
	for attempt := 1; attempt <= 2; attempt++ {
		if err := r.sys.Activate(app); err != nil {
			r.logger.Debug("Activation request failed", zap.String("app", app.String()),
				zap.Int("attempt", attempt), zap.Error(err))
		}
		if d := r.settle(); d > 0 {
			r.clock.Sleep(d)
		}
		var err error
		front, err = r.sys.FrontmostApp()
		if err == nil && front.Same(app) {
			return nil
		}
		r.logger.Debug("Target not frontmost after activation",
			zap.String("app", app.String()),
			zap.String("frontmost", front.String()),
			zap.Int("attempt", attempt))
	}
	return fmt.Errorf("%w: %s lost focus to %s", ErrActivationFailed, app, front)
}

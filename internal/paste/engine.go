package paste

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/berrythewa/clipstack/internal/events"
	"github.com/berrythewa/clipstack/internal/history"
	"github.com/berrythewa/clipstack/internal/metrics"
	"github.com/berrythewa/clipstack/internal/platform"
	"github.com/berrythewa/clipstack/internal/target"
	"github.com/berrythewa/clipstack/internal/types"
)

// State is a step of a paste session
type State int

const (
	NotStarted State = iota
	PermissionCheck
	TargetResolved
	Delivering
	Delivered
	AllStrategiesFailed
	Aborted
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case PermissionCheck:
		return "permission_check"
	case TargetResolved:
		return "target_resolved"
	case Delivering:
		return "delivering"
	case Delivered:
		return "delivered"
	case AllStrategiesFailed:
		return "all_strategies_failed"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for st := NotStarted; st <= Aborted; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown paste state %q", b)
}

// EntrySource looks entries up by id
type EntrySource interface {
	Get(id string) (*types.Entry, bool)
}

// Settings are the live knobs of the chain
type Settings struct {
	// Order lists strategy names in the order they are tried
	Order []string
	// Disabled strategies are never tried
	Disabled  []string
	Overrides Overrides
}

// AttemptResult records one strategy in a session
type AttemptResult struct {
	Strategy string `json:"strategy"`
	Skipped  bool   `json:"skipped,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Result describes a finished paste session
type Result struct {
	EntryID  string          `json:"entry_id"`
	Target   types.App       `json:"target"`
	State    State           `json:"state"`
	Strategy string          `json:"strategy,omitempty"`
	Attempts []AttemptResult `json:"attempts"`
	Elapsed  time.Duration   `json:"elapsed"`
}

// Options wire an Engine
type Options struct {
	Entries    EntrySource
	Writer     history.ContentWriter
	System     platform.System
	Resolver   *target.Resolver
	Strategies []Strategy
	Settings   func() Settings
	Events     events.Publisher
	Metrics    *metrics.Metrics
	Clock      clock.Clock
	Logger     *zap.Logger
}

// Engine runs paste sessions one at a time
type Engine struct {
	entries    EntrySource
	writer     history.ContentWriter
	sys        platform.System
	resolver   *target.Resolver
	strategies map[string]Strategy
	settings   func() Settings
	events     events.Publisher
	metrics    *metrics.Metrics
	clock      clock.Clock
	logger     *zap.Logger

	sem *semaphore.Weighted

	mu   sync.Mutex
	last *Result
}

// NewEngine creates an engine. Strategies are looked up by name from the
// configured order.
func NewEngine(opts Options) *Engine {
	e := &Engine{
		entries:    opts.Entries,
		writer:     opts.Writer,
		sys:        opts.System,
		resolver:   opts.Resolver,
		strategies: make(map[string]Strategy, len(opts.Strategies)),
		settings:   opts.Settings,
		events:     opts.Events,
		metrics:    opts.Metrics,
		clock:      opts.Clock,
		logger:     opts.Logger,
		sem:        semaphore.NewWeighted(1),
	}
	for _, s := range opts.Strategies {
		e.strategies[s.Name()] = s
	}
	if e.settings == nil {
		e.settings = func() Settings { return Settings{} }
	}
	if e.events == nil {
		e.events = events.Nop{}
	}
	if e.clock == nil {
		e.clock = clock.New()
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// DefaultStrategies builds the full chain on sys
func DefaultStrategies(sys platform.System, keys KeySender, runner CommandRunner, keyHold, helperTimeout func() time.Duration) []Strategy {
	return []Strategy{
		MenuStrategy{System: sys},
		KeystrokeStrategy{Keys: keys, Hold: keyHold},
		ScriptStrategy{System: sys},
		HelperStrategy{Runner: runner, Timeout: helperTimeout},
		ResponderStrategy{System: sys},
	}
}

// Paste delivers entryID, discarding the session detail
func (e *Engine) Paste(ctx context.Context, entryID string) error {
	_, err := e.Deliver(ctx, entryID)
	return err
}

// Last returns the most recent finished session
func (e *Engine) Last() (*Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last, e.last != nil
}

// Deliver writes the entry to the pasteboard and runs the strategy chain
// against the resolved target. A request arriving while another session
// runs is dropped with ErrPasteInProgress. The entry stays on the
// pasteboard whatever the outcome.
func (e *Engine) Deliver(ctx context.Context, entryID string) (*Result, error) {
	if !e.sem.TryAcquire(1) {
		e.logger.Info("Dropping paste request, another paste is running", zap.String("entry_id", entryID))
		e.metrics.PasteResult("dropped", 0)
		return nil, ErrPasteInProgress
	}
	defer e.sem.Release(1)
	defer e.resolver.Release()

	// strategies run to completion once started
	ctx = context.WithoutCancel(ctx)
	start := e.clock.Now()
	res := &Result{EntryID: entryID, State: NotStarted}

	err := e.run(ctx, res)
	res.Elapsed = e.clock.Since(start)

	e.mu.Lock()
	e.last = res
	e.mu.Unlock()

	e.metrics.PasteResult(res.State.String(), res.Elapsed)
	if err != nil {
		e.logger.Warn("Paste failed",
			zap.String("entry_id", entryID),
			zap.String("target", res.Target.String()),
			zap.String("state", res.State.String()),
			zap.Error(err))
		if !errors.Is(err, ErrPermissionDenied) {
			e.events.Publish(events.Event{Type: events.PasteFailed, Payload: events.PasteResultPayload{
				EntryID: entryID, Target: res.Target.String(), Err: err,
			}})
		}
		return res, err
	}
	e.logger.Info("Paste delivered",
		zap.String("entry_id", entryID),
		zap.String("target", res.Target.String()),
		zap.String("strategy", res.Strategy),
		zap.Duration("elapsed", res.Elapsed))
	e.events.Publish(events.Event{Type: events.PasteDelivered, Payload: events.PasteResultPayload{
		EntryID: entryID, Target: res.Target.String(), Strategy: res.Strategy,
	}})
	return res, nil
}

func (e *Engine) run(ctx context.Context, res *Result) error {
	entry, ok := e.entries.Get(res.EntryID)
	if !ok {
		res.State = Aborted
		return fmt.Errorf("%w: %s", history.ErrNotFound, res.EntryID)
	}
	if err := e.writer.WriteEntry(entry); err != nil {
		res.State = Aborted
		return err
	}

	res.State = PermissionCheck
	if !e.sys.AccessibilityTrusted(false) {
		res.State = Aborted
		e.events.Publish(events.Event{Type: events.PermissionNeeded})
		return ErrPermissionDenied
	}

	app, err := e.resolver.Resolve()
	if err != nil {
		res.State = Aborted
		return err
	}
	res.Target = app
	if err := e.resolver.Activate(app); err != nil {
		res.State = Aborted
		return err
	}
	res.State = TargetResolved

	settings := e.settings()
	ov := settings.Overrides.Lookup(app.BundleID)
	if ov.ExtraSettle > 0 {
		e.clock.Sleep(ov.ExtraSettle)
	}
	attempt := Attempt{Entry: entry, Target: app, Override: ov}

	var errs error
	for _, s := range e.chain(settings, ov) {
		if !s.Applies(attempt) {
			res.Attempts = append(res.Attempts, AttemptResult{Strategy: s.Name(), Skipped: true})
			continue
		}
		res.State = Delivering
		err := e.try(ctx, s, attempt)
		e.metrics.StrategyAttempt(s.Name(), err == nil)
		if err == nil {
			res.Attempts = append(res.Attempts, AttemptResult{Strategy: s.Name()})
			res.Strategy = s.Name()
			res.State = Delivered
			return nil
		}
		e.logger.Debug("Paste strategy failed",
			zap.String("strategy", s.Name()),
			zap.String("target", app.String()),
			zap.Error(err))
		res.Attempts = append(res.Attempts, AttemptResult{Strategy: s.Name(), Error: err.Error()})
		errs = multierr.Append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	res.State = AllStrategiesFailed
	if errs == nil {
		return ErrAllStrategiesExhausted
	}
	return fmt.Errorf("%w: %v", ErrAllStrategiesExhausted, errs)
}

// try runs one strategy, bringing the target back first when this tool
// took focus
func (e *Engine) try(ctx context.Context, s Strategy, a Attempt) error {
	if e.resolver.SelfFrontmost() {
		e.logger.Debug("This tool is frontmost, reactivating target",
			zap.String("strategy", s.Name()), zap.String("target", a.Target.String()))
		if err := e.resolver.Activate(a.Target); err != nil || e.resolver.SelfFrontmost() {
			return ErrSelfFrontmost
		}
	}
	return s.Deliver(ctx, a)
}

func (e *Engine) chain(settings Settings, ov Override) []Strategy {
	order := settings.Order
	if len(order) == 0 {
		order = DefaultOrder
	}
	disabled := make(map[string]bool, len(settings.Disabled))
	for _, d := range settings.Disabled {
		disabled[d] = true
	}
	var out []Strategy
	seen := make(map[string]bool, len(order))
	for _, name := range order {
		s, ok := e.strategies[name]
		if !ok || seen[name] || disabled[name] || ov.disables(name) {
			continue
		}
		seen[name] = true
		out = append(out, s)
	}
	return out
}

// RequestPermission asks the OS to prompt for accessibility access and
// reports the current grant
func (e *Engine) RequestPermission() bool {
	trusted := e.sys.AccessibilityTrusted(true)
	if !trusted {
		e.events.Publish(events.Event{Type: events.PermissionNeeded})
	}
	return trusted
}

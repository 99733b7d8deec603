package clipboard

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/berrythewa/clipstack/internal/dedup"
	"github.com/berrythewa/clipstack/internal/events"
	"github.com/berrythewa/clipstack/internal/history"
	"github.com/berrythewa/clipstack/internal/metrics"
	"github.com/berrythewa/clipstack/internal/pasteboard"
	"github.com/berrythewa/clipstack/internal/types"
	"github.com/berrythewa/clipstack/pkg/format"
)

// DefaultInterval is the pasteboard sampling period
const DefaultInterval = 500 * time.Millisecond

const previewLength = 80

// Settings are the live preferences the poller reads every cycle
type Settings struct {
	Interval       time.Duration
	AutoPaste      bool
	AutoPasteDelay time.Duration
}

// AutoPaster delivers a freshly captured entry when auto-paste is on
type AutoPaster interface {
	Paste(ctx context.Context, entryID string) error
}

// PollerOptions wires a Poller
type PollerOptions struct {
	Pasteboard pasteboard.Pasteboard
	Store      *history.Store
	Decider    *dedup.Decider
	Guard      *Guard
	Events     events.Publisher
	Clock      clock.Clock
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
	Settings   func() Settings
	AutoPaster AutoPaster
}

// Poller samples the pasteboard on a fixed interval and feeds new content
// into the history
type Poller struct {
	pb       pasteboard.Pasteboard
	store    *history.Store
	decider  *dedup.Decider
	guard    *Guard
	events   events.Publisher
	clock    clock.Clock
	metrics  *metrics.Metrics
	logger   *zap.Logger
	settings func() Settings
	paster   AutoPaster

	// confined to the polling goroutine
	lastChange int64
	trackers   dedup.Trackers

	statusMu sync.Mutex
	status   types.MonitoringStatus
	wg       sync.WaitGroup
}

// NewPoller creates a poller. The current change count is taken as seen so
// content already on the pasteboard at startup is not ingested.
func NewPoller(opts PollerOptions) *Poller {
	p := &Poller{
		pb:       opts.Pasteboard,
		store:    opts.Store,
		decider:  opts.Decider,
		guard:    opts.Guard,
		events:   opts.Events,
		clock:    opts.Clock,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		settings: opts.Settings,
		paster:   opts.AutoPaster,
	}
	if p.clock == nil {
		p.clock = clock.New()
	}
	if p.guard == nil {
		p.guard = NewGuard(p.clock)
	}
	if p.events == nil {
		p.events = events.Nop{}
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if p.decider == nil {
		p.decider = dedup.NewDecider(dedup.DefaultOptions(), p.logger)
	}
	if p.settings == nil {
		p.settings = func() Settings { return Settings{Interval: DefaultInterval} }
	}
	p.lastChange = p.pb.ChangeCount()
	return p
}

func (p *Poller) interval() time.Duration {
	if d := p.settings().Interval; d > 0 {
		return d
	}
	return DefaultInterval
}

// Run polls until ctx is cancelled. Auto-paste goroutines are waited for
// before returning.
func (p *Poller) Run(ctx context.Context) error {
	interval := p.interval()
	ticker := p.clock.Ticker(interval)
	defer ticker.Stop()

	p.setRunning(true, interval)
	defer p.setRunning(false, interval)
	defer p.wg.Wait()

	p.logger.Info("Starting pasteboard poller", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Pasteboard poller stopped")
			return nil
		case <-ticker.C:
			p.Poll(ctx)
			if next := p.interval(); next != interval {
				p.logger.Info("Poll interval changed", zap.Duration("from", interval), zap.Duration("to", next))
				interval = next
				ticker.Reset(interval)
				p.setRunning(true, interval)
			}
		}
	}
}

// Poll runs a single cycle
func (p *Poller) Poll(ctx context.Context) {
	change := p.pb.ChangeCount()
	if change == p.lastChange {
		return
	}
	p.lastChange = change
	p.metrics.PollCycle()

	// the change count moved, so the guard is spent whether or not the read works
	own := p.guard.Consume()
	snap, err := pasteboard.ReadAll(p.pb)
	if err != nil {
		p.metrics.PollError()
		p.recordError(err)
		p.logger.Warn("Failed to read pasteboard", zap.Error(err))
		return
	}
	classified := Classify(snap, p.logger)
	candidate := classified.Candidate

	if own {
		p.trackers.Observe(candidate)
		p.logger.Debug("Skipping own pasteboard write", zap.Int64("change_count", change))
		return
	}

	entries := p.store.List()
	dec := p.decider.Decide(candidate, entries, p.trackers)
	p.trackers.Observe(candidate)
	p.metrics.Decision(dec.Kind.String(), string(classified.Kind))
	p.touch()

	switch dec.Kind {
	case dedup.New:
		entry := p.store.Insert(classified.Entry(p.clock.Now()), dec)
		p.ingested()
		p.logger.Info("Captured clipboard entry",
			zap.String("entry_id", entry.ID),
			zap.String("type", string(entry.Type())),
			zap.Int("formats", len(entry.Formats)))
		p.events.Publish(events.Event{Type: events.EntryAdded, Payload: events.EntryAddedPayload{
			EntryID: entry.ID,
			Preview: format.Preview(entry.Text, previewLength),
			Kind:    string(entry.Type()),
		}})
		p.maybeAutoPaste(ctx, entry.ID)

	case dedup.Duplicate:
		// the stored content wins: a repeat of the newest entry changes
		// nothing and an older one moves to the front unchanged
		if len(entries) > 0 && mostRecentID(entries) == dec.ID {
			return
		}
		stored, ok := p.store.Get(dec.ID)
		if !ok {
			stored = classified.Entry(p.clock.Now())
		}
		entry := p.store.Insert(stored, dec)
		p.logger.Debug("Promoted duplicate entry",
			zap.String("duplicate_of", dec.ID),
			zap.String("entry_id", entry.ID),
			zap.String("reason", dec.Reason))
	}
}

func mostRecentID(entries []*types.Entry) string {
	var latest *types.Entry
	for _, e := range entries {
		if latest == nil || e.CreatedAt.After(latest.CreatedAt) {
			latest = e
		}
	}
	return latest.ID
}

func (p *Poller) maybeAutoPaste(ctx context.Context, id string) {
	s := p.settings()
	if !s.AutoPaste || p.paster == nil {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if s.AutoPasteDelay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-p.clock.After(s.AutoPasteDelay):
			}
		}
		if err := p.paster.Paste(ctx, id); err != nil {
			p.logger.Warn("Auto-paste failed", zap.String("entry_id", id), zap.Error(err))
		}
	}()
}

// Wait blocks until pending auto-paste attempts finish
func (p *Poller) Wait() { p.wg.Wait() }

// Status reports monitoring statistics
func (p *Poller) Status() types.MonitoringStatus {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	return p.status
}

func (p *Poller) setRunning(running bool, interval time.Duration) {
	p.statusMu.Lock()
	p.status.IsRunning = running
	p.status.Interval = interval.String()
	p.statusMu.Unlock()
}

func (p *Poller) touch() {
	p.statusMu.Lock()
	p.status.Cycles++
	p.status.LastActivity = p.clock.Now()
	p.statusMu.Unlock()
}

func (p *Poller) ingested() {
	p.statusMu.Lock()
	p.status.Ingested++
	p.statusMu.Unlock()
}

func (p *Poller) recordError(err error) {
	p.statusMu.Lock()
	p.status.ErrorCount++
	p.status.LastError = err.Error()
	p.statusMu.Unlock()
}

// Package daemon assembles the clipboard core and serves it to the CLI.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/berrythewa/clipstack/internal/clipboard"
	"github.com/berrythewa/clipstack/internal/config"
	"github.com/berrythewa/clipstack/internal/dedup"
	"github.com/berrythewa/clipstack/internal/events"
	"github.com/berrythewa/clipstack/internal/history"
	"github.com/berrythewa/clipstack/internal/ipc"
	"github.com/berrythewa/clipstack/internal/metrics"
	"github.com/berrythewa/clipstack/internal/notify"
	"github.com/berrythewa/clipstack/internal/paste"
	"github.com/berrythewa/clipstack/internal/pasteboard"
	"github.com/berrythewa/clipstack/internal/platform"
	"github.com/berrythewa/clipstack/internal/storage"
	"github.com/berrythewa/clipstack/internal/target"
	"github.com/berrythewa/clipstack/pkg/utils"
)

// staleScriptAge is how old a leftover helper script must be to be removed
const staleScriptAge = time.Hour

// Deps are the OS-facing pieces; zero fields use the platform defaults
type Deps struct {
	Pasteboard pasteboard.Pasteboard
	System     platform.System
	Keys       paste.KeySender
	Runner     paste.CommandRunner
	Persister  storage.Persister
	Notify     notify.SendFunc
	Clock      clock.Clock
}

// Service owns every component of the running daemon
type Service struct {
	live   *config.Live
	logger *zap.Logger
	clock  clock.Clock

	bus       *events.Bus
	persister storage.Persister
	store     *history.Store
	guard     *clipboard.Guard
	writer    *clipboard.Writer
	poller    *clipboard.Poller
	resolver  *target.Resolver
	engine    *paste.Engine
	system    platform.System
	metrics   *metrics.Metrics
	notifier  *notify.Notifier
	server    *ipc.Server

	started time.Time
	cancel  context.CancelFunc
}

// New builds the service from the current preferences
func New(live *config.Live, logger *zap.Logger, deps Deps) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := live.Get()
	clk := deps.Clock
	if clk == nil {
		clk = clock.New()
	}
	s := &Service{live: live, logger: logger, clock: clk}

	if deps.Pasteboard == nil {
		deps.Pasteboard = platform.GetPasteboard(logger.Named("pasteboard"))
	}
	if deps.System == nil {
		deps.System = platform.GetSystem(logger.Named("system"))
	}
	if deps.Keys == nil {
		deps.Keys = paste.RobotgoKeys{}
	}
	if deps.Runner == nil {
		deps.Runner = paste.ExecRunner{}
	}
	if deps.Persister == nil {
		p, err := storage.Open(storage.StorageConfig{
			Backend: cfg.Storage.Backend,
			Path:    cfg.HistoryPath(),
			DataDir: cfg.SystemPaths.DataDir,
			Logger:  logger.Named("storage"),
		})
		if err != nil {
			return nil, err
		}
		deps.Persister = p
	}
	s.persister = deps.Persister
	s.system = deps.System

	s.bus = events.NewBus(logger.Named("events"))
	s.metrics = metrics.New()
	s.store = history.NewStore(history.Options{
		Persister: deps.Persister,
		Events:    s.bus,
		Clock:     clk,
		Logger:    logger.Named("history"),
		MaxItems:  func() int { return live.Get().MaxHistoryItems },
	})
	s.guard = clipboard.NewGuard(clk)
	s.writer = clipboard.NewWriter(deps.Pasteboard, s.guard, cfg.Paste.GuardTTL, logger.Named("writer"))
	s.store.SetWriter(s.writer)

	s.resolver = target.NewResolver(target.Options{
		System:      deps.System,
		Clock:       clk,
		Logger:      logger.Named("target"),
		SettleDelay: func() time.Duration { return live.Get().Paste.SettleDelay },
	})
	helper := paste.HelperStrategy{
		Runner:  deps.Runner,
		Timeout: func() time.Duration { return live.Get().Paste.HelperTimeout },
		TempDir: cfg.SystemPaths.TempDir,
	}
	s.engine = paste.NewEngine(paste.Options{
		Entries:  s.store,
		Writer:   s.writer,
		System:   deps.System,
		Resolver: s.resolver,
		Strategies: []paste.Strategy{
			paste.MenuStrategy{System: deps.System},
			paste.KeystrokeStrategy{Keys: deps.Keys, Hold: func() time.Duration { return live.Get().Paste.KeyHold }},
			paste.ScriptStrategy{System: deps.System},
			helper,
			paste.ResponderStrategy{System: deps.System},
		},
		Settings: func() paste.Settings { return pasteSettings(live.Get()) },
		Events:   s.bus,
		Metrics:  s.metrics,
		Clock:    clk,
		Logger:   logger.Named("paste"),
	})

	s.poller = clipboard.NewPoller(clipboard.PollerOptions{
		Pasteboard: deps.Pasteboard,
		Store:      s.store,
		Decider:    dedup.NewDecider(cfg.Dedup, logger.Named("dedup")),
		Guard:      s.guard,
		Events:     s.bus,
		Clock:      clk,
		Metrics:    s.metrics,
		Logger:     logger.Named("poller"),
		Settings: func() clipboard.Settings {
			c := live.Get()
			return clipboard.Settings{
				Interval:       c.PollInterval,
				AutoPaste:      c.AutoPaste,
				AutoPasteDelay: c.Paste.AutoPasteDelay,
			}
		},
		AutoPaster: s.engine,
	})

	s.notifier = notify.New(s.bus, deps.Notify, func() bool { return live.Get().NotifyOnCopy }, logger.Named("notify"))
	s.server = ipc.NewServer(cfg.SystemPaths.SocketPath, s.Handle, logger.Named("ipc"))

	live.OnChange(func(old, cur *config.Config) {
		if cur.MaxHistoryItems < old.MaxHistoryItems {
			if n := s.store.Trim(); n > 0 {
				logger.Info("Trimmed history to new limit", zap.Int("removed", n), zap.Int("max", cur.MaxHistoryItems))
			}
		}
	})
	return s, nil
}

func pasteSettings(c *config.Config) paste.Settings {
	return paste.Settings{
		Order:     c.Paste.Strategies,
		Disabled:  c.Paste.Disabled,
		Overrides: paste.BuiltinOverrides().Merge(c.Paste.Overrides),
	}
}

// Run takes the single-instance lock, loads history and serves until ctx is
// done or a component fails
func (s *Service) Run(ctx context.Context) error {
	cfg := s.live.Get()
	lock, err := storage.AcquireLock(cfg.SystemPaths.PIDFile)
	if err != nil {
		return err
	}
	defer lock.Release()
	defer func() {
		if err := s.persister.Close(); err != nil {
			s.logger.Warn("Failed to close history storage", zap.Error(err))
		}
	}()

	if n, err := utils.RemoveStaleTempFiles(cfg.SystemPaths.TempDir, "clipstack-paste-*.applescript", staleScriptAge, s.clock.Now()); err != nil {
		s.logger.Warn("Failed to clean helper scripts", zap.Error(err))
	} else if n > 0 {
		s.logger.Debug("Removed stale helper scripts", zap.Int("count", n))
	}

	s.store.Load()
	s.recordHistorySize()
	s.started = s.clock.Now()
	if !s.system.AccessibilityTrusted(false) {
		s.logger.Warn("Accessibility permission not granted, automatic paste is disabled until it is")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.poller.Run(ctx) })
	g.Go(func() error { return s.server.ListenAndServe(ctx) })
	g.Go(func() error { return s.notifier.Run(ctx) })
	g.Go(func() error { return s.watchHistorySize(ctx) })
	g.Go(func() error {
		if err := s.live.Watch(ctx, config.DefaultWatchInterval); err != nil {
			s.logger.Warn("Configuration hot reload unavailable", zap.Error(err))
		}
		return nil
	})
	if addr := cfg.Metrics.Listen; addr != "" {
		g.Go(func() error { return s.metrics.Serve(ctx, addr, s.logger.Named("metrics")) })
	}

	s.logger.Info("Daemon started",
		zap.String("socket", cfg.SystemPaths.SocketPath),
		zap.String("storage", cfg.Storage.Backend),
		zap.Int("entries", s.store.Stats().Total))

	err = g.Wait()
	s.store.Save()
	s.bus.Close()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("daemon stopped: %w", err)
	}
	s.logger.Info("Daemon stopped")
	return nil
}

// Shutdown stops a running service
func (s *Service) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Service) watchHistorySize(ctx context.Context) error {
	sub := s.bus.Subscribe(4, events.HistoryUpdated)
	defer sub.Cancel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-sub.C:
			if !ok {
				return nil
			}
			s.recordHistorySize()
		}
	}
}

func (s *Service) recordHistorySize() {
	st := s.store.Stats()
	s.metrics.HistorySize(st.Pinned, st.Unpinned)
}

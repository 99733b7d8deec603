package config

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/radovskyb/watcher"
	"go.uber.org/zap"
)

// DefaultWatchInterval is how often the preferences file is checked
const DefaultWatchInterval = time.Second

// Live holds the current preferences and swaps them when the file changes.
// Readers call Get on every use so changes apply without a restart.
type Live struct {
	cur    atomic.Pointer[Config]
	path   string
	logger *zap.Logger

	mu        sync.Mutex
	listeners []func(old, cur *Config)
}

// NewLive wraps cfg, reloading from cfg.SystemPaths.ConfigFile
func NewLive(cfg *Config, logger *zap.Logger) *Live {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Live{path: cfg.SystemPaths.ConfigFile, logger: logger}
	l.cur.Store(cfg)
	return l
}

// Get returns the current preferences. The value must not be modified.
func (l *Live) Get() *Config {
	return l.cur.Load()
}

// OnChange registers fn to run after every successful reload
func (l *Live) OnChange(fn func(old, cur *Config)) {
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	l.mu.Unlock()
}

// Set replaces the current preferences and notifies listeners
func (l *Live) Set(cfg *Config) {
	old := l.cur.Swap(cfg)
	l.mu.Lock()
	listeners := append([]func(old, cur *Config){}, l.listeners...)
	l.mu.Unlock()
	for _, fn := range listeners {
		fn(old, cfg)
	}
}

// Reload re-reads the file. An invalid file keeps the current preferences.
func (l *Live) Reload() error {
	cfg, err := Load(l.path)
	if err != nil {
		l.logger.Error("Ignoring invalid configuration", zap.String("file", l.path), zap.Error(err))
		return err
	}
	l.Set(cfg)
	l.logger.Info("Configuration reloaded",
		zap.String("file", l.path),
		zap.Int("max_history_items", cfg.MaxHistoryItems),
		zap.Bool("auto_paste", cfg.AutoPaste),
		zap.Duration("poll_interval", cfg.PollInterval))
	return nil
}

// Watch reloads on every write to the file until ctx is done
func (l *Live) Watch(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	w := watcher.New()
	w.SetMaxEvents(1)
	w.FilterOps(watcher.Write, watcher.Create)
	if err := w.Add(l.path); err != nil {
		return err
	}

	go func() {
		w.Wait()
		done := ctx.Done()
		// keep draining until Closed; the watcher blocks on unread events
		for {
			select {
			case ev := <-w.Event:
				if done == nil {
					continue
				}
				l.logger.Debug("Configuration file changed", zap.String("event", ev.Op.String()))
				_ = l.Reload()
			case err := <-w.Error:
				l.logger.Warn("Configuration watcher error", zap.Error(err))
			case <-w.Closed:
				return
			case <-done:
				done = nil
				go w.Close()
			}
		}
	}()

	return w.Start(interval)
}

//go:build darwin

package darwin

import (
	"sync"

	"go.uber.org/zap"

	"github.com/berrythewa/clipstack/internal/pasteboard"
)

// Pasteboard is the general NSPasteboard
type Pasteboard struct {
	mu     sync.Mutex
	logger *zap.Logger
}

// NewPasteboard returns the general pasteboard
func NewPasteboard(logger *zap.Logger) *Pasteboard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pasteboard{logger: logger}
}

func (p *Pasteboard) ChangeCount() int64 {
	return changeCount()
}

func (p *Pasteboard) Formats() ([]string, error) {
	return pasteboardTypes(), nil
}

func (p *Pasteboard) Read(format string) ([]byte, error) {
	data := readType(format)
	if data == nil {
		return nil, pasteboard.ErrFormatUnavailable
	}
	return data, nil
}

func (p *Pasteboard) Write(items []pasteboard.Item) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]writeItem, 0, len(items))
	for _, it := range items {
		out = append(out, writeItem{format: it.Format, data: it.Data})
	}
	if err := writeTypes(out); err != nil {
		return err
	}
	p.logger.Debug("Wrote pasteboard", zap.Int("formats", len(items)), zap.Int64("change_count", changeCount()))
	return nil
}

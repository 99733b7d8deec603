package clipboard

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/berrythewa/clipstack/internal/pasteboard"
	"github.com/berrythewa/clipstack/internal/richtext"
	"github.com/berrythewa/clipstack/internal/types"
)

// DefaultGuardTTL bounds how long a self-write stays unacknowledged
const DefaultGuardTTL = 1500 * time.Millisecond

// Writer puts history entries on the pasteboard and arms the guard so the
// poller does not ingest them again
type Writer struct {
	pb     pasteboard.Pasteboard
	guard  *Guard
	ttl    time.Duration
	logger *zap.Logger
}

// NewWriter creates a writer; ttl <= 0 uses DefaultGuardTTL
func NewWriter(pb pasteboard.Pasteboard, guard *Guard, ttl time.Duration, logger *zap.Logger) *Writer {
	if ttl <= 0 {
		ttl = DefaultGuardTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{pb: pb, guard: guard, ttl: ttl, logger: logger}
}

// WriteEntry publishes every representation of e
func (w *Writer) WriteEntry(e *types.Entry) error {
	items := Items(e)
	if len(items) == 0 {
		return fmt.Errorf("entry %s has no content to write", e.ID)
	}
	before := w.pb.ChangeCount()
	w.guard.Arm(w.ttl)
	if err := w.pb.Write(items); err != nil {
		w.guard.Consume()
		return fmt.Errorf("failed to write pasteboard: %w", err)
	}
	if w.pb.ChangeCount() == before {
		// content was already there; no change will come to consume the guard
		w.guard.Consume()
	}
	w.logger.Debug("Wrote entry to pasteboard",
		zap.String("entry_id", e.ID),
		zap.String("type", string(e.Type())),
		zap.Int("formats", len(items)))
	return nil
}

// Items lists the representations written for e. Fresh rich text, image and
// plain-text values come first, then any other preserved formats in capture
// order. Stale preserved copies of the fresh formats are dropped.
func Items(e *types.Entry) []pasteboard.Item {
	var items []pasteboard.Item
	fresh := make(map[string]bool)
	add := func(format string, data []byte) {
		if len(data) == 0 || fresh[format] {
			return
		}
		fresh[format] = true
		items = append(items, pasteboard.Item{Format: format, Data: data})
	}

	switch e.Type() {
	case types.TypeRTF:
		add(pasteboard.FormatRTF, e.RichText)
		if _, ok := e.Format(pasteboard.FormatHTML); !ok {
			add(pasteboard.FormatHTML, richtext.TextToHTML(e.Text))
		}
		add(pasteboard.FormatPlainText, []byte(e.Text))
	case types.TypeImage:
		add(ImageFormat(e.Image), e.Image)
	default:
		add(pasteboard.FormatPlainText, []byte(e.Text))
	}

	for _, f := range e.Formats {
		if superseded(f.Format, fresh) {
			continue
		}
		add(f.Format, f.Data)
	}
	return items
}

// superseded reports whether a preserved format is an alias of one written
// fresh
func superseded(format string, fresh map[string]bool) bool {
	switch {
	case fresh[format]:
		return true
	case pasteboard.IsRTFFormat(format):
		return fresh[pasteboard.FormatRTF]
	case pasteboard.IsPlainTextFormat(format):
		return fresh[pasteboard.FormatPlainText]
	}
	return false
}

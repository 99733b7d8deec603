// Package history holds the clipboard history in memory, enforces ordering
// and eviction, and persists every mutation.
package history

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/berrythewa/clipstack/internal/dedup"
	"github.com/berrythewa/clipstack/internal/events"
	"github.com/berrythewa/clipstack/internal/pasteboard"
	"github.com/berrythewa/clipstack/internal/richtext"
	"github.com/berrythewa/clipstack/internal/storage"
	"github.com/berrythewa/clipstack/internal/types"
)

var (
	// ErrNotFound is returned for unknown entry ids
	ErrNotFound = errors.New("history entry not found")
	// ErrNotEditable is returned when editing the content of an image entry
	ErrNotEditable = errors.New("image entries cannot be edited")
	// ErrEmptyContent is returned when an edit would leave the entry empty
	ErrEmptyContent = errors.New("entry content cannot be empty")
)

// DefaultMaxItems is used when no limit is configured
const DefaultMaxItems = 50

// ContentWriter puts an entry back on the system pasteboard
type ContentWriter interface {
	WriteEntry(e *types.Entry) error
}

// Options configure a Store
type Options struct {
	Persister storage.Persister
	Events    events.Publisher
	Clock     clock.Clock
	Logger    *zap.Logger

	// MaxItems returns the current unpinned-entry cap. It is consulted on
	// every insert so preference changes apply without a restart.
	MaxItems func() int
}

// Store is the single owner of the history. All mutations are serialized.
type Store struct {
	mu      sync.Mutex
	entries []*types.Entry // newest insert first
	writer  ContentWriter

	persister storage.Persister
	events    events.Publisher
	clock     clock.Clock
	maxItems  func() int
	logger    *zap.Logger
}

// NewStore creates an empty store
func NewStore(opts Options) *Store {
	s := &Store{
		persister: opts.Persister,
		events:    opts.Events,
		clock:     opts.Clock,
		maxItems:  opts.MaxItems,
		logger:    opts.Logger,
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.maxItems == nil {
		s.maxItems = func() int { return DefaultMaxItems }
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// SetWriter attaches the pasteboard writer used to refresh edited entries.
// The writer and the store depend on each other, so it is wired after both
// exist.
func (s *Store) SetWriter(w ContentWriter) {
	s.mu.Lock()
	s.writer = w
	s.mu.Unlock()
}

// Load replaces the in-memory history with the persisted one. A load failure
// is logged and leaves the store empty.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
	if s.persister == nil {
		return
	}
	loaded, err := s.persister.Load()
	if err != nil {
		s.logger.Error("Failed to load history, starting empty", zap.Error(err))
		return
	}

	seen := make(map[string]struct{}, len(loaded))
	for _, e := range loaded {
		if _, dup := seen[e.ID]; dup {
			s.logger.Warn("Dropping entry with duplicate id", zap.String("entry_id", e.ID))
			continue
		}
		seen[e.ID] = struct{}{}
		if e.Fingerprint == "" {
			e.Fingerprint = dedup.Fingerprint(dedup.CandidateOf(e))
		}
		s.entries = append(s.entries, e)
	}
	evicted := s.evictLocked()
	s.logger.Info("History loaded",
		zap.Int("entries", len(s.entries)),
		zap.Int("evicted", len(evicted)))
}

// Insert adds e according to dec. For a duplicate, the old entry is replaced
// by a fresh copy of e at the front that keeps the old pinned flag. Returns a
// copy of the stored entry.
func (s *Store) Insert(e *types.Entry, dec dedup.Decision) *types.Entry {
	s.mu.Lock()
	stored := e.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.clock.Now()
	}
	stored.Fingerprint = dedup.Fingerprint(dedup.CandidateOf(stored))

	if dec.Kind == dedup.Duplicate {
		if idx := s.indexLocked(dec.ID); idx >= 0 {
			old := s.entries[idx]
			s.entries = append(s.entries[:idx], s.entries[idx+1:]...)
			stored.ID = uuid.NewString()
			stored.CreatedAt = s.nowAfterLocked(old.CreatedAt)
			stored.Pinned = old.Pinned
			s.logger.Debug("Promoting duplicate entry",
				zap.String("old_id", old.ID),
				zap.String("entry_id", stored.ID),
				zap.Bool("pinned", stored.Pinned))
		}
	}
	if s.indexLocked(stored.ID) >= 0 {
		stored.ID = uuid.NewString()
	}

	s.entries = append([]*types.Entry{stored}, s.entries...)
	evicted := s.evictLocked()
	for _, ev := range evicted {
		s.logger.Debug("Evicted entry", zap.String("entry_id", ev.ID))
	}
	out := stored.Clone()
	s.commitLocked()
	s.mu.Unlock()

	s.notify()
	return out
}

// nowAfterLocked returns the current time, nudged past t so a promoted entry
// always sorts ahead of the one it replaces
func (s *Store) nowAfterLocked(t time.Time) time.Time {
	now := s.clock.Now()
	for _, e := range s.entries {
		if !e.CreatedAt.Before(now) {
			now = e.CreatedAt.Add(time.Nanosecond)
		}
	}
	if !now.After(t) {
		now = t.Add(time.Nanosecond)
	}
	return now
}

// TogglePin flips the pinned flag and returns the new value
func (s *Store) TogglePin(id string) (bool, error) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return false, ErrNotFound
	}
	e := s.entries[idx]
	e.Pinned = !e.Pinned
	pinned := e.Pinned
	if !pinned {
		s.evictLocked()
	}
	s.commitLocked()
	s.mu.Unlock()

	s.notify()
	return pinned, nil
}

// Delete removes an entry
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.entries = append(s.entries[:idx], s.entries[idx+1:]...)
	s.commitLocked()
	s.mu.Unlock()

	s.notify()
	return nil
}

// Clear removes every entry. With keepPinned only unpinned entries go.
// Returns the number removed.
func (s *Store) Clear(keepPinned bool) int {
	s.mu.Lock()
	before := len(s.entries)
	if keepPinned {
		kept := s.entries[:0]
		for _, e := range s.entries {
			if e.Pinned {
				kept = append(kept, e)
			}
		}
		s.entries = kept
	} else {
		s.entries = nil
	}
	removed := before - len(s.entries)
	s.commitLocked()
	s.mu.Unlock()

	s.notify()
	return removed
}

// UpdateContent replaces the text of an entry. Rich entries take newRich as
// their document when given, otherwise one is generated from newText; their
// text becomes the rendering of the document and every text or rich variant
// in the format snapshot is regenerated. When the entry is the most recent
// or pinned the pasteboard is refreshed.
func (s *Store) UpdateContent(id, newText string, newRich []byte) (*types.Entry, error) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	e := s.entries[idx]
	if e.Type() == types.TypeImage {
		s.mu.Unlock()
		return nil, ErrNotEditable
	}

	switch e.Type() {
	case types.TypeRTF:
		doc := newRich
		if len(doc) == 0 {
			doc = richtext.TextToRTF(newText)
		}
		text, err := richtext.RTFToText(doc)
		if err != nil {
			s.logger.Warn("Edited document is not readable, keeping supplied text",
				zap.String("entry_id", id), zap.Error(err))
			text = newText
		}
		if text == "" && newText == "" {
			s.mu.Unlock()
			return nil, ErrEmptyContent
		}
		e.RichText = doc
		e.Text = text
	default:
		if newText == "" {
			s.mu.Unlock()
			return nil, ErrEmptyContent
		}
		e.Text = newText
	}
	regenerateFormats(e)
	e.Fingerprint = dedup.Fingerprint(dedup.CandidateOf(e))

	refresh := e.Pinned || s.isMostRecentLocked(e)
	out := e.Clone()
	writer := s.writer
	s.commitLocked()
	s.mu.Unlock()

	if refresh && writer != nil {
		if err := writer.WriteEntry(out); err != nil {
			s.logger.Warn("Failed to refresh pasteboard after edit", zap.String("entry_id", id), zap.Error(err))
		}
	}
	s.notify()
	return out, nil
}

// regenerateFormats rebuilds every text-like representation from the entry
func regenerateFormats(e *types.Entry) {
	for i, f := range e.Formats {
		switch {
		case pasteboard.IsRTFFormat(f.Format):
			if len(e.RichText) > 0 {
				e.Formats[i].Data = append([]byte(nil), e.RichText...)
			} else {
				e.Formats[i].Data = richtext.TextToRTF(e.Text)
			}
		case pasteboard.IsHTMLFormat(f.Format):
			e.Formats[i].Data = richtext.TextToHTML(e.Text)
		case pasteboard.IsPlainTextFormat(f.Format):
			e.Formats[i].Data = []byte(e.Text)
		}
	}
}

// Get returns a copy of the entry with id
func (s *Store) Get(id string) (*types.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return nil, false
	}
	return s.entries[idx].Clone(), true
}

// List returns copies of every entry: pinned first, then unpinned newest
// first
func (s *Store) List() []*types.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	ordered := s.orderedLocked()
	out := make([]*types.Entry, len(ordered))
	for i, e := range ordered {
		out[i] = e.Clone()
	}
	return out
}

// Latest returns the most recently captured entry
func (s *Store) Latest() (*types.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *types.Entry
	for _, e := range s.entries {
		if latest == nil || e.CreatedAt.After(latest.CreatedAt) {
			latest = e
		}
	}
	if latest == nil {
		return nil, false
	}
	return latest.Clone(), true
}

// Stats summarizes the store
func (s *Store) Stats() types.HistoryStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := types.HistoryStats{Total: len(s.entries), MaxItems: s.maxItems()}
	for _, e := range s.entries {
		if e.Pinned {
			st.Pinned++
		}
	}
	st.Unpinned = st.Total - st.Pinned
	return st
}

// Trim applies the current cap, used after preferences change
func (s *Store) Trim() int {
	s.mu.Lock()
	evicted := s.evictLocked()
	if len(evicted) > 0 {
		s.commitLocked()
	}
	s.mu.Unlock()

	if len(evicted) > 0 {
		s.notify()
	}
	return len(evicted)
}

// Save persists the current history
func (s *Store) Save() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitLocked()
}

func (s *Store) indexLocked(id string) int {
	for i, e := range s.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) isMostRecentLocked(target *types.Entry) bool {
	for _, e := range s.entries {
		if e.CreatedAt.After(target.CreatedAt) {
			return false
		}
	}
	return true
}

func (s *Store) orderedLocked() []*types.Entry {
	ordered := make([]*types.Entry, len(s.entries))
	copy(ordered, s.entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Pinned != b.Pinned {
			return a.Pinned
		}
		if a.Pinned {
			return false
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return ordered
}

// evictLocked drops the oldest unpinned entries until the cap holds
func (s *Store) evictLocked() []*types.Entry {
	limit := s.maxItems()
	if limit < 0 {
		limit = 0
	}
	unpinned := 0
	for _, e := range s.entries {
		if !e.Pinned {
			unpinned++
		}
	}
	var evicted []*types.Entry
	for unpinned > limit {
		oldest := -1
		for i, e := range s.entries {
			if e.Pinned {
				continue
			}
			if oldest < 0 || !e.CreatedAt.After(s.entries[oldest].CreatedAt) {
				oldest = i
			}
		}
		evicted = append(evicted, s.entries[oldest])
		s.entries = append(s.entries[:oldest], s.entries[oldest+1:]...)
		unpinned--
	}
	return evicted
}

// commitLocked writes the ordered history through the persister. Failures
// are logged; memory stays authoritative.
func (s *Store) commitLocked() {
	if s.persister == nil {
		return
	}
	if err := s.persister.Save(s.orderedLocked()); err != nil {
		s.logger.Error("Failed to persist history", zap.Error(err))
	}
}

func (s *Store) notify() {
	s.events.Publish(events.Event{Type: events.HistoryUpdated})
}

package types

import (
	"bytes"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ContentType represents the semantic kind of a clipboard entry
type ContentType string

const (
	TypeText  ContentType = "text"
	TypeImage ContentType = "image"
	TypeRTF   ContentType = "rtf"
)

// FormatData is one raw pasteboard representation captured verbatim
type FormatData struct {
	Format string `json:"format"`
	Data   []byte `json:"data"`
}

// Entry is a single item of clipboard history.
//
// At most one of Image and RichText is set. When neither is set the entry is
// plain text. Text is always populated: for images it holds a synthesized
// description.
type Entry struct {
	ID        string       `json:"id"`
	Text      string       `json:"text"`
	CreatedAt time.Time    `json:"created_at"`
	Pinned    bool         `json:"pinned"`
	Image     []byte       `json:"image,omitempty"`
	RichText  []byte       `json:"rich_text,omitempty"`
	Formats   []FormatData `json:"formats,omitempty"`
	// Fingerprint is the multihash of the richest payload, kept current by
	// the history store
	Fingerprint string `json:"fingerprint,omitempty"`
}

// NewEntry creates an entry with a fresh identifier
func NewEntry(text string, created time.Time) *Entry {
	return &Entry{
		ID:        uuid.NewString(),
		Text:      text,
		CreatedAt: created,
	}
}

// Type returns the active content kind, inferred from the payload fields
func (e *Entry) Type() ContentType {
	switch {
	case len(e.RichText) > 0:
		return TypeRTF
	case len(e.Image) > 0:
		return TypeImage
	default:
		return TypeText
	}
}

// Format returns the captured bytes for format, if any
func (e *Entry) Format(format string) ([]byte, bool) {
	for _, f := range e.Formats {
		if f.Format == format {
			return f.Data, true
		}
	}
	return nil, false
}

// Clone returns a deep copy of the entry
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	c.Image = cloneBytes(e.Image)
	c.RichText = cloneBytes(e.RichText)
	if e.Formats != nil {
		c.Formats = make([]FormatData, len(e.Formats))
		for i, f := range e.Formats {
			c.Formats[i] = FormatData{Format: f.Format, Data: cloneBytes(f.Data)}
		}
	}
	return &c
}

// Equal compares two entries by content, ignoring identity and timestamps
func (e *Entry) Equal(o *Entry) bool {
	if e == nil || o == nil {
		return e == o
	}
	return e.Text == o.Text &&
		bytes.Equal(e.Image, o.Image) &&
		bytes.Equal(e.RichText, o.RichText)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// HistoryStats summarizes the history store for status reporting
type HistoryStats struct {
	Total    int `json:"total"`
	Pinned   int `json:"pinned"`
	Unpinned int `json:"unpinned"`
	MaxItems int `json:"max_items"`
}

// MonitoringStatus represents the current state of clipboard monitoring
type MonitoringStatus struct {
	IsRunning    bool      `json:"is_running"`
	Interval     string    `json:"interval"`
	LastActivity time.Time `json:"last_activity"`
	Cycles       uint64    `json:"cycles"`
	Ingested     uint64    `json:"ingested"`
	ErrorCount   int       `json:"error_count"`
	LastError    string    `json:"last_error"`
}

// App identifies a running application that can receive a paste
type App struct {
	PID      int    `json:"pid"`
	BundleID string `json:"bundle_id"`
	Name     string `json:"name"`
	// Regular is true for apps with a regular activation policy (Dock icon,
	// menu bar), the only kind that can take a paste
	Regular bool `json:"regular"`
}

// IsZero reports whether the handle is empty
func (a App) IsZero() bool { return a.PID == 0 && a.BundleID == "" }

// Same reports whether a and o refer to the same process
func (a App) Same(o App) bool {
	if a.PID != 0 && o.PID != 0 {
		return a.PID == o.PID
	}
	return a.BundleID != "" && a.BundleID == o.BundleID
}

func (a App) String() string {
	if a.BundleID != "" {
		return a.BundleID
	}
	if a.Name != "" {
		return a.Name
	}
	return "pid " + strconv.Itoa(a.PID)
}

// Package format renders history entries for the terminal.
package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/berrythewa/clipstack/internal/types"
)

// Formatter renders entries and statistics
type Formatter struct {
	options Options
	now     func() time.Time
}

// New creates a new formatter with the given options
func New(opts Options) *Formatter {
	return &Formatter{options: opts, now: time.Now}
}

// NewDefault creates a new formatter with default options
func NewDefault() *Formatter {
	return New(DefaultOptions())
}

// WithClock fixes the reference time for relative timestamps
func (f *Formatter) WithClock(now func() time.Time) *Formatter {
	f.now = now
	return f
}

// FormatEntry renders a single entry
func (f *Formatter) FormatEntry(e *types.Entry) string {
	if e == nil {
		return ColorizeIf("No entry", Gray, f.options.UseColors)
	}
	header := f.header(e)
	if f.options.Compact {
		width := f.options.MaxWidth
		if width <= 0 {
			width = 60
		}
		return header + " " + Preview(e.Text, width)
	}

	parts := []string{header}
	if f.options.ShowMetadata {
		parts = append(parts, f.metadata(e))
	}
	if body := f.body(e); body != "" {
		parts = append(parts, IndentText(body, "  "))
	}
	return strings.Join(parts, "\n")
}

// FormatEntryList renders entries in the order given, numbered from 1
func (f *Formatter) FormatEntryList(entries []*types.Entry) string {
	if len(entries) == 0 {
		return ColorizeIf("No clipboard history", Gray, f.options.UseColors)
	}
	title := fmt.Sprintf("Clipboard history (%d entries)", len(entries))
	if f.options.UseIcons {
		title = "📋 " + title
	}
	parts := []string{ColorizeIf(title, BrightBlue, f.options.UseColors), ""}

	sep := DimIf(strings.Repeat("─", 40), f.options.UseColors)
	for i, e := range entries {
		index := DimIf(fmt.Sprintf("[%d]", i+1), f.options.UseColors)
		if f.options.Compact {
			parts = append(parts, index+" "+f.FormatEntry(e))
			continue
		}
		parts = append(parts, index, f.FormatEntry(e))
		if i < len(entries)-1 {
			parts = append(parts, sep)
		}
	}
	return strings.Join(parts, "\n")
}

// FormatStats renders history and poller statistics
func (f *Formatter) FormatStats(stats types.HistoryStats, status *types.MonitoringStatus) string {
	title := "Clipboard statistics"
	if f.options.UseIcons {
		title = "📊 " + title
	}
	parts := []string{ColorizeIf(title, BrightBlue, f.options.UseColors), ""}
	parts = append(parts,
		f.statLine("Entries", fmt.Sprintf("%d of %d", stats.Total, stats.MaxItems)),
		f.statLine("Pinned", fmt.Sprintf("%d", stats.Pinned)),
		f.statLine("Unpinned", fmt.Sprintf("%d", stats.Unpinned)),
	)
	if status != nil {
		state := ColorizeIf("stopped", Red, f.options.UseColors)
		if status.IsRunning {
			state = ColorizeIf("running", Green, f.options.UseColors)
		}
		parts = append(parts, "",
			f.statLine("Monitoring", state),
			f.statLine("Interval", status.Interval),
			f.statLine("Poll cycles", fmt.Sprintf("%d", status.Cycles)),
			f.statLine("Ingested", fmt.Sprintf("%d", status.Ingested)),
		)
		if !status.LastActivity.IsZero() {
			parts = append(parts, f.statLine("Last activity", FormatRelativeTime(status.LastActivity, f.now())))
		}
		if status.ErrorCount > 0 {
			parts = append(parts, f.statLine("Errors", fmt.Sprintf("%d (last: %s)", status.ErrorCount, status.LastError)))
		}
	}
	return strings.Join(parts, "\n")
}

func (f *Formatter) header(e *types.Entry) string {
	var parts []string
	if f.options.UseIcons {
		if icon, ok := ContentIcons[e.Type()]; ok {
			parts = append(parts, icon)
		}
	}
	kind := string(e.Type())
	if color, ok := ContentColors[e.Type()]; ok {
		kind = ColorizeIf(kind, color, f.options.UseColors)
	}
	parts = append(parts, kind)
	if e.Pinned {
		parts = append(parts, ColorizeIf("pinned", Yellow, f.options.UseColors))
	}
	return strings.Join(parts, " ")
}

func (f *Formatter) metadata(e *types.Entry) string {
	parts := []string{
		"ID: " + e.ID,
		"Created: " + FormatRelativeTime(e.CreatedAt, f.now()),
	}
	switch e.Type() {
	case types.TypeImage:
		parts = append(parts, "Size: "+FormatSize(int64(len(e.Image))))
	case types.TypeRTF:
		parts = append(parts, "Size: "+FormatSize(int64(len(e.RichText))))
	default:
		parts = append(parts, "Size: "+FormatSize(int64(len(e.Text))))
	}
	if n := len(e.Formats); n > 0 {
		parts = append(parts, fmt.Sprintf("Formats: %d", n))
	}
	return DimIf(strings.Join(parts, " • "), f.options.UseColors)
}

func (f *Formatter) body(e *types.Entry) string {
	if e.Type() == types.TypeImage {
		return fmt.Sprintf("[%s]", e.Text)
	}
	text := TruncateLines(e.Text, f.options.MaxLines)
	if f.options.MaxWidth <= 0 {
		return text
	}
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = TruncateText(l, f.options.MaxWidth)
	}
	return strings.Join(lines, "\n")
}

func (f *Formatter) statLine(label, value string) string {
	if f.options.UseColors {
		return fmt.Sprintf("  %s%s:%s %s", BrightCyan, label, Reset, value)
	}
	return fmt.Sprintf("  %s: %s", label, value)
}

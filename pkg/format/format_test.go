package format

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/berrythewa/clipstack/internal/types"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func plain() *Formatter {
	return New(PlainOptions()).WithClock(func() time.Time { return now })
}

func TestFormatEntry(t *testing.T) {
	e := &types.Entry{ID: "abc", Text: "line one\nline two", CreatedAt: now.Add(-2 * time.Minute), Pinned: true}
	out := plain().FormatEntry(e)

	assert.Equal(t, "text pinned\n"+
		"ID: abc • Created: 2 minutes ago • Size: 17 B\n"+
		"  line one\n"+
		"  line two", out)
}

func TestFormatEntryImageAndRich(t *testing.T) {
	img := &types.Entry{ID: "i", Text: "Image 2x2 (PNG)", Image: make([]byte, 2048), CreatedAt: now}
	assert.Contains(t, plain().FormatEntry(img), "Size: 2.0 KB")
	assert.Contains(t, plain().FormatEntry(img), "[Image 2x2 (PNG)]")

	rich := &types.Entry{ID: "r", Text: "bold", RichText: []byte(`{\rtf1 bold}`), CreatedAt: now}
	assert.True(t, strings.HasPrefix(plain().FormatEntry(rich), "rtf\n"))
}

func TestFormatEntryCompact(t *testing.T) {
	opts := CompactOptions()
	opts.UseColors, opts.UseIcons = false, false
	opts.MaxWidth = 10
	f := New(opts)

	e := &types.Entry{Text: "hello\nwonderful world"}
	assert.Equal(t, "text hello w...", f.FormatEntry(e))
}

func TestFormatEntryList(t *testing.T) {
	f := plain()
	assert.Equal(t, "No clipboard history", f.FormatEntryList(nil))

	out := f.FormatEntryList([]*types.Entry{
		{ID: "1", Text: "first", CreatedAt: now},
		{ID: "2", Text: "second", CreatedAt: now.Add(-3 * time.Hour)},
	})
	assert.True(t, strings.HasPrefix(out, "Clipboard history (2 entries)\n\n[1]\n"))
	assert.Contains(t, out, "3 hours ago")
	assert.Equal(t, 1, strings.Count(out, "\n"+strings.Repeat("─", 40)), "one separator between two entries")
}

func TestFormatStats(t *testing.T) {
	out := plain().FormatStats(types.HistoryStats{Total: 3, Pinned: 1, Unpinned: 2, MaxItems: 50},
		&types.MonitoringStatus{IsRunning: true, Interval: "500ms", Cycles: 10, Ingested: 3, LastActivity: now})
	assert.Contains(t, out, "  Entries: 3 of 50")
	assert.Contains(t, out, "  Monitoring: running")
	assert.Contains(t, out, "  Last activity: just now")
	assert.NotContains(t, out, "Errors")
}

func TestColors(t *testing.T) {
	assert.Equal(t, "x", ColorizeIf("x", Red, false))
	assert.Equal(t, Red+"x"+Reset, ColorizeIf("x", Red, true))
	assert.Equal(t, Dim+"x"+Reset, DimIf("x", true))
}

func TestHelpers(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"size bytes", FormatSize(512), "512 B"},
		{"size mb", FormatSize(3 * 1024 * 1024), "3.0 MB"},
		{"relative minute", FormatRelativeTime(now.Add(-time.Minute), now), "1 minute ago"},
		{"relative days", FormatRelativeTime(now.Add(-50*time.Hour), now), "2 days ago"},
		{"relative old", FormatRelativeTime(now.Add(-30*24*time.Hour), now), "Apr 1, 2024"},
		{"truncate", TruncateText("héllo wörld", 8), "héllo..."},
		{"truncate short", TruncateText("abc", 8), "abc"},
		{"lines", TruncateLines("a\nb\nc", 2), "a\nb\n... (1 more lines)"},
		{"preview", Preview("  a\r\nb\tc  ", 10), "a b c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

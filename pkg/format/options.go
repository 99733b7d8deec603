package format

import "github.com/berrythewa/clipstack/internal/types"

// ANSI escape codes
const (
	Reset = "\033[0m"
	Bold  = "\033[1m"
	Dim   = "\033[2m"

	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	Gray    = "\033[37m"

	BrightBlue = "\033[94m"
	BrightCyan = "\033[96m"
)

// Options controls formatting behavior
type Options struct {
	UseColors    bool
	UseIcons     bool
	MaxWidth     int  // Max content width (0 = no limit)
	MaxLines     int  // Max content lines (0 = no limit)
	ShowMetadata bool // Show id, timestamps and sizes
	Compact      bool // One line per entry
}

// DefaultOptions returns sensible defaults
func DefaultOptions() Options {
	return Options{
		UseColors:    true,
		UseIcons:     true,
		MaxWidth:     80,
		MaxLines:     10,
		ShowMetadata: true,
	}
}

// CompactOptions returns options for single-line listings
func CompactOptions() Options {
	opts := DefaultOptions()
	opts.Compact = true
	opts.ShowMetadata = false
	opts.MaxLines = 1
	return opts
}

// PlainOptions disables colors and icons, for pipes
func PlainOptions() Options {
	opts := DefaultOptions()
	opts.UseColors = false
	opts.UseIcons = false
	return opts
}

// ContentIcons maps entry kinds to icons
var ContentIcons = map[types.ContentType]string{
	types.TypeText:  "📝",
	types.TypeImage: "🖼️",
	types.TypeRTF:   "📄",
}

// ContentColors maps entry kinds to colors
var ContentColors = map[types.ContentType]string{
	types.TypeText:  Cyan,
	types.TypeImage: Magenta,
	types.TypeRTF:   Green,
}

// ColorizeIf applies color only if useColors is true
func ColorizeIf(text, color string, useColors bool) string {
	if !useColors {
		return text
	}
	return color + text + Reset
}

// DimIf applies dim only if useColors is true
func DimIf(text string, useColors bool) string {
	return ColorizeIf(text, Dim, useColors)
}

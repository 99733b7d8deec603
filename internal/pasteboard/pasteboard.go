// Package pasteboard abstracts the system pasteboard as a set of named
// representations. Format identifiers follow macOS uniform type identifiers;
// legacy pasteboard type names are recognized when classifying.
package pasteboard

import (
	"fmt"
)

// Uniform type identifiers published by the tool when writing.
const (
	FormatPlainText = "public.utf8-plain-text"
	FormatRTF       = "public.rtf"
	FormatHTML      = "public.html"
	FormatPNG       = "public.png"
	FormatTIFF      = "public.tiff"
)

var (
	plainTextFormats = []string{FormatPlainText, "public.plain-text", "NSStringPboardType", "text/plain"}
	rtfFormats       = []string{FormatRTF, "NeXT Rich Text Format v1.0 pasteboard type", "text/rtf"}
	htmlFormats      = []string{FormatHTML, "Apple HTML pasteboard type", "text/html"}
	pngFormats       = []string{FormatPNG, "Apple PNG pasteboard type", "image/png"}
	tiffFormats      = []string{FormatTIFF, "NeXT TIFF v4.0 pasteboard type", "image/tiff"}
)

// Item is a single representation on the pasteboard
type Item struct {
	Format string
	Data   []byte
}

// Snapshot is every representation read during one poll cycle
type Snapshot []Item

// Pasteboard is the minimal surface the poller and the writer need
type Pasteboard interface {
	// ChangeCount increases every time the pasteboard contents change
	ChangeCount() int64

	// Formats lists the formats currently available, richest first when the
	// platform reports an order
	Formats() ([]string, error)

	// Read returns the bytes for a single format
	Read(format string) ([]byte, error)

	// Write replaces the pasteboard contents with items
	Write(items []Item) error
}

// ReadAll captures every available representation. Formats that fail to read
// are skipped; an error is returned only when the format list is unavailable.
func ReadAll(pb Pasteboard) (Snapshot, error) {
	formats, err := pb.Formats()
	if err != nil {
		return nil, fmt.Errorf("failed to list pasteboard formats: %w", err)
	}
	snap := make(Snapshot, 0, len(formats))
	seen := make(map[string]struct{}, len(formats))
	for _, f := range formats {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		data, err := pb.Read(f)
		if err != nil || len(data) == 0 {
			continue
		}
		snap = append(snap, Item{Format: f, Data: data})
	}
	return snap, nil
}

// Get returns the first representation matching any of formats
func (s Snapshot) Get(formats ...string) ([]byte, bool) {
	for _, want := range formats {
		for _, it := range s {
			if it.Format == want {
				return it.Data, true
			}
		}
	}
	return nil, false
}

func (s Snapshot) PlainText() ([]byte, bool) { return s.Get(plainTextFormats...) }
func (s Snapshot) RTF() ([]byte, bool)       { return s.Get(rtfFormats...) }
func (s Snapshot) HTML() ([]byte, bool)      { return s.Get(htmlFormats...) }
func (s Snapshot) PNG() ([]byte, bool)       { return s.Get(pngFormats...) }
func (s Snapshot) TIFF() ([]byte, bool)      { return s.Get(tiffFormats...) }

// IsPlainTextFormat reports whether format is a plain-text variant
func IsPlainTextFormat(format string) bool { return contains(plainTextFormats, format) }

// IsRTFFormat reports whether format is a rich-text document variant
func IsRTFFormat(format string) bool { return contains(rtfFormats, format) }

// IsHTMLFormat reports whether format is an HTML variant
func IsHTMLFormat(format string) bool { return contains(htmlFormats, format) }

// IsImageFormat reports whether format is a bitmap variant
func IsImageFormat(format string) bool {
	return contains(pngFormats, format) || contains(tiffFormats, format)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

package clipboard

import (
	"bytes"
	"fmt"
	"image"
	_ "image/png"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "golang.org/x/image/tiff"

	"github.com/berrythewa/clipstack/internal/dedup"
	"github.com/berrythewa/clipstack/internal/pasteboard"
	"github.com/berrythewa/clipstack/internal/richtext"
	"github.com/berrythewa/clipstack/internal/types"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// Classified is a snapshot reduced to its richest representation
type Classified struct {
	Candidate dedup.Candidate
	Kind      types.ContentType
	// Formats holds every representation read, in pasteboard order
	Formats []types.FormatData
}

// Classify picks the richest content in snap: an RTF document (or HTML
// converted to one), then a bitmap, then plain text. Conversion failures fall
// back to the plain-text representation.
func Classify(snap pasteboard.Snapshot, logger *zap.Logger) Classified {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := Classified{Kind: types.TypeText, Formats: make([]types.FormatData, 0, len(snap))}
	for _, it := range snap {
		c.Formats = append(c.Formats, types.FormatData{Format: it.Format, Data: it.Data})
	}

	plain, _ := snap.PlainText()
	plainText := string(plain)

	if doc, ok := snap.RTF(); ok {
		text, err := richtext.RTFToText(doc)
		if err != nil {
			logger.Debug("RTF not readable, using plain text", zap.Int("size", len(doc)), zap.Error(err))
			text = plainText
		}
		if strings.TrimSpace(text) == "" {
			text = plainText
		}
		if strings.TrimSpace(text) == "" {
			text = fmt.Sprintf("Rich text (%d bytes)", len(doc))
		}
		c.Kind = types.TypeRTF
		c.Candidate = dedup.Candidate{Text: text, RichText: doc}
		return c
	}

	if html, ok := snap.HTML(); ok {
		doc, text, err := richtext.HTMLToRTF(html)
		switch {
		case err != nil:
			logger.Debug("HTML not convertible", zap.Int("size", len(html)), zap.Error(err))
		case strings.TrimSpace(text) != "":
			c.Kind = types.TypeRTF
			c.Candidate = dedup.Candidate{Text: text, RichText: doc}
			return c
		}
	}

	if img, format, ok := imageOf(snap); ok {
		c.Kind = types.TypeImage
		c.Candidate = dedup.Candidate{Text: describeImage(img, format), Image: img}
		return c
	}

	c.Candidate = dedup.Candidate{Text: plainText}
	return c
}

func imageOf(snap pasteboard.Snapshot) ([]byte, string, bool) {
	if img, ok := snap.PNG(); ok {
		return img, "PNG", true
	}
	if img, ok := snap.TIFF(); ok {
		return img, "TIFF", true
	}
	return nil, "", false
}

// describeImage synthesizes the display text of an image entry
func describeImage(data []byte, format string) string {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Sprintf("Image (%s, %d bytes)", format, len(data))
	}
	return fmt.Sprintf("Image %d×%d (%s)", cfg.Width, cfg.Height, format)
}

// ImageFormat returns the pasteboard type matching the encoded image
func ImageFormat(data []byte) string {
	if bytes.HasPrefix(data, pngMagic) {
		return pasteboard.FormatPNG
	}
	return pasteboard.FormatTIFF
}

// Entry builds a history entry from classified content
func (c Classified) Entry(created time.Time) *types.Entry {
	e := types.NewEntry(c.Candidate.Text, created)
	e.Formats = c.Formats
	switch c.Kind {
	case types.TypeRTF:
		e.RichText = c.Candidate.RichText
	case types.TypeImage:
		e.Image = c.Candidate.Image
	}
	return e
}

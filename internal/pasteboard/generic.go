package pasteboard

import (
	"bytes"
	"crypto/sha256"
	"sync"

	atotto "github.com/atotto/clipboard"
	"go.uber.org/zap"
	"golang.design/x/clipboard"
)

// Generic is a portable pasteboard limited to plain text and PNG images.
// It uses golang.design/x/clipboard and falls back to atotto/clipboard for
// text when the native library cannot initialize (headless sessions).
//
// Neither library exposes a change counter, so one is derived from a hash of
// the readable contents.
type Generic struct {
	mu       sync.Mutex
	native   bool
	lastHash [sha256.Size]byte
	change   int64
	logger   *zap.Logger
}

// NewGeneric initializes the portable pasteboard
func NewGeneric(logger *zap.Logger) *Generic {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Generic{logger: logger}
	if err := clipboard.Init(); err != nil {
		logger.Warn("Native clipboard unavailable, using text-only fallback", zap.Error(err))
	} else {
		g.native = true
	}
	return g
}

func (g *Generic) readText() []byte {
	if g.native {
		return clipboard.Read(clipboard.FmtText)
	}
	text, err := atotto.ReadAll()
	if err != nil {
		return nil
	}
	return []byte(text)
}

func (g *Generic) readImage() []byte {
	if !g.native {
		return nil
	}
	return clipboard.Read(clipboard.FmtImage)
}

func (g *Generic) ChangeCount() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	h := sha256.New()
	h.Write(g.readText())
	h.Write([]byte{0})
	h.Write(g.readImage())
	var sum [sha256.Size]byte
	copy(sum[:], h.Sum(nil))
	if !bytes.Equal(sum[:], g.lastHash[:]) {
		g.lastHash = sum
		g.change++
	}
	return g.change
}

func (g *Generic) Formats() ([]string, error) {
	var formats []string
	if len(g.readImage()) > 0 {
		formats = append(formats, FormatPNG)
	}
	if len(g.readText()) > 0 {
		formats = append(formats, FormatPlainText)
	}
	return formats, nil
}

func (g *Generic) Read(format string) ([]byte, error) {
	var data []byte
	switch {
	case IsPlainTextFormat(format):
		data = g.readText()
	case format == FormatPNG:
		data = g.readImage()
	}
	if len(data) == 0 {
		return nil, ErrFormatUnavailable
	}
	return data, nil
}

// Write publishes the plain-text and PNG representations; other formats
// cannot be expressed through the portable libraries and are dropped.
func (g *Generic) Write(items []Item) error {
	snap := Snapshot(items)
	if img, ok := snap.PNG(); ok && g.native {
		clipboard.Write(clipboard.FmtImage, img)
	}
	text, ok := snap.PlainText()
	if !ok {
		return nil
	}
	if g.native {
		clipboard.Write(clipboard.FmtText, text)
		return nil
	}
	return atotto.WriteAll(string(text))
}

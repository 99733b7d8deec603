//go:build darwin

package platform

import (
	"go.uber.org/zap"

	"github.com/berrythewa/clipstack/internal/pasteboard"
	darwinPlatform "github.com/berrythewa/clipstack/internal/platform/darwin"
)

// init registers the macOS bridge
func init() {
	RegisterSystemFactory(func(logger *zap.Logger) System {
		return darwinPlatform.NewSystem(logger)
	})
	RegisterPasteboardFactory(func(logger *zap.Logger) (pasteboard.Pasteboard, error) {
		return darwinPlatform.NewPasteboard(logger), nil
	})
}

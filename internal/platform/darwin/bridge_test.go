//go:build darwin

package darwin

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/berrythewa/clipstack/internal/types"
)

func TestParseApp(t *testing.T) {
	app, ok := parseApp("412\tcom.apple.TextEdit\tTextEdit\t1")
	assert.True(t, ok)
	assert.Equal(t, types.App{PID: 412, BundleID: "com.apple.TextEdit", Name: "TextEdit", Regular: true}, app)

	app, ok = parseApp("88\t\tloginwindow\t0")
	assert.True(t, ok)
	assert.False(t, app.Regular)
	assert.Equal(t, "loginwindow", app.String())

	_, ok = parseApp("garbage")
	assert.False(t, ok)
	_, ok = parseApp("x\ta\tb\t1")
	assert.False(t, ok)
}

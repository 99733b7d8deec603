//go:build unix

package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnixDaemonizerRegistered(t *testing.T) {
	d, err := GetPlatformDaemonizer()
	require.NoError(t, err)
	assert.IsType(t, &UnixDaemonizer{}, d)
	// test binaries run under the go tool, never in their own session
	assert.False(t, d.IsRunningAsDaemon())
}

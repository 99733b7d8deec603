package paste

import (
	"context"
	"os/exec"
	"time"
)

// DefaultHelperTimeout bounds the external helper process
const DefaultHelperTimeout = 3 * time.Second

// CommandRunner runs an external program to completion
type CommandRunner interface {
	Run(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

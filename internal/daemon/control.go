package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/berrythewa/clipstack/internal/config"
	"github.com/berrythewa/clipstack/internal/ipc"
	"github.com/berrythewa/clipstack/internal/platform"
)

// ErrNotRunning is returned when no daemon owns the pid file
var ErrNotRunning = errors.New("daemon is not running")

// ReadPID returns the pid recorded in the pid file
func ReadPID(pidFile string) (int, error) {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNotRunning
		}
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID in file: %q", strings.TrimSpace(string(data)))
	}
	return pid, nil
}

// RunningPID returns the pid of a live daemon
func RunningPID(pidFile string) (int, error) {
	pid, err := ReadPID(pidFile)
	if err != nil {
		return 0, err
	}
	if ok, err := process.PidExists(int32(pid)); err != nil || !ok {
		return 0, ErrNotRunning
	}
	return pid, nil
}

// Start launches a detached daemon running args and returns its pid
func Start(paths config.ConfigPaths, args []string) (int, error) {
	if pid, err := RunningPID(paths.PIDFile); err == nil {
		return pid, fmt.Errorf("daemon already running with PID %d", pid)
	}
	daemonizer, err := platform.GetPlatformDaemonizer()
	if err != nil {
		return 0, err
	}
	executable, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("failed to get executable path: %w", err)
	}
	workDir, _ := os.Getwd()
	logFile := filepath.Join(paths.LogDir, "daemon.out")
	pid, err := daemonizer.Daemonize(executable, args, workDir, logFile)
	if err != nil {
		return 0, fmt.Errorf("failed to daemonize: %w", err)
	}
	return pid, nil
}

// Stop asks the daemon to shut down over IPC, falling back to SIGTERM,
// and waits up to timeout for it to exit
func Stop(ctx context.Context, paths config.ConfigPaths, timeout time.Duration) (int, error) {
	pid, err := RunningPID(paths.PIDFile)
	if err != nil {
		return 0, err
	}
	if err := ipc.Call(ctx, paths.SocketPath, ipc.CmdShutdown, nil, nil); err != nil {
		proc, err := os.FindProcess(pid)
		if err != nil {
			return pid, fmt.Errorf("failed to find process: %w", err)
		}
		if err := proc.Signal(syscall.SIGTERM); err != nil {
			return pid, fmt.Errorf("failed to signal daemon: %w", err)
		}
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if ok, err := process.PidExists(int32(pid)); err == nil && !ok {
			return pid, nil
		}
		select {
		case <-ctx.Done():
			return pid, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return pid, fmt.Errorf("daemon with PID %d did not exit within %s", pid, timeout)
}

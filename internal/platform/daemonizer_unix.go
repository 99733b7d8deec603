//go:build unix

package platform

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/unix"
)

// UnixDaemonizer starts a detached copy of the executable in a new session
type UnixDaemonizer struct{}

// NewDaemonizer creates a new platform-specific daemonizer implementation
func NewDaemonizer() *UnixDaemonizer {
	return &UnixDaemonizer{}
}

func init() {
	RegisterDaemonizer(NewDaemonizer())
}

// Daemonize starts executable with args in a new session. Output goes to
// logFile; the --detach flag is removed to avoid recursion.
func (d *UnixDaemonizer) Daemonize(executable string, args []string, workDir string, logFile string) (int, error) {
	filtered := make([]string, 0, len(args))
	for _, arg := range args {
		if arg != "--detach" && arg != "-d" {
			filtered = append(filtered, arg)
		}
	}

	if err := os.MkdirAll(filepath.Dir(logFile), 0700); err != nil {
		return 0, fmt.Errorf("failed to create log directory: %w", err)
	}
	logF, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return 0, fmt.Errorf("failed to open log file: %w", err)
	}
	defer logF.Close()

	nullDev, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", os.DevNull, err)
	}
	defer nullDev.Close()

	cmd := exec.Command(executable, filtered...)
	cmd.Dir = workDir
	cmd.Stdin = nullDev
	cmd.Stdout = logF
	cmd.Stderr = logF
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start daemon process: %w", err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("failed to release daemon process: %w", err)
	}
	return pid, nil
}

// IsRunningAsDaemon returns true if the current process leads its own
// session and was reparented to init/launchd
func (d *UnixDaemonizer) IsRunningAsDaemon() bool {
	pid := os.Getpid()
	sid, err := unix.Getsid(pid)
	if err != nil || sid != pid {
		return false
	}
	return os.Getppid() == 1
}

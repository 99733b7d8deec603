package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/berrythewa/clipstack/internal/config"
	"github.com/berrythewa/clipstack/internal/daemon"
	"github.com/berrythewa/clipstack/internal/ipc"
	"github.com/berrythewa/clipstack/internal/platform"
	"github.com/berrythewa/clipstack/pkg/utils"
)

const stopTimeout = 10 * time.Second

func newDaemonCmd() *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the clipstack daemon",
		Long: `Start, stop and inspect the background process that watches the
clipboard, keeps history and pastes entries back.`,
	}
	daemonCmd.AddCommand(newDaemonStartCmd(), newDaemonStopCmd(), newDaemonStatusCmd(), newDaemonRestartCmd())
	return daemonCmd
}

func newDaemonStartCmd() *cobra.Command {
	var detach bool
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon",
		Long:  "Start the daemon in the foreground, or detached from the terminal with --detach.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if detach {
				pid, err := daemon.Start(cfg.SystemPaths, os.Args[1:])
				if err != nil {
					return err
				}
				if !quiet {
					fmt.Fprintf(cmd.OutOrStdout(), "Daemon started with PID %d\n", pid)
				}
				return nil
			}
			return runForeground(cmd.Context())
		},
	}
	cmd.Flags().BoolVarP(&detach, "detach", "d", false, "run in the background")
	return cmd
}

func runForeground(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	logger, err := daemonLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	live := config.NewLive(cfg, logger.Named("config"))
	svc, err := daemon.New(live, logger, daemon.Deps{})
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return svc.Run(ctx)
}

// daemonLogger adds the log file and switches to JSON when detached
func daemonLogger() (*zap.Logger, error) {
	opts := utils.LoggerOptions{Level: cfg.Log.Level, Format: cfg.Log.Format}
	switch {
	case logLevel != "":
		opts.Level = logLevel
	case verbose:
		opts.Level = "debug"
	}
	if d, err := platform.GetPlatformDaemonizer(); err == nil && d.IsRunningAsDaemon() {
		opts.Format = "json"
	}
	if cfg.Log.EnableFileLogging {
		opts.File = filepath.Join(cfg.SystemPaths.LogDir, "clipstack.log")
	}
	return utils.NewLogger(opts)
}

func newDaemonStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := daemon.Stop(cmd.Context(), cfg.SystemPaths, stopTimeout)
			if errors.Is(err, daemon.ErrNotRunning) {
				if !quiet {
					fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
				}
				return nil
			}
			if err != nil {
				return err
			}
			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Daemon with PID %d stopped\n", pid)
			}
			return nil
		},
	}
}

func newDaemonRestartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Restart the daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := daemon.Stop(cmd.Context(), cfg.SystemPaths, stopTimeout); err != nil && !errors.Is(err, daemon.ErrNotRunning) {
				return err
			}
			startArgs := []string{"daemon", "start"}
			if cfgFile != "" {
				startArgs = append(startArgs, "--config", cfgFile)
			}
			pid, err := daemon.Start(cfg.SystemPaths, startArgs)
			if err != nil {
				return err
			}
			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Daemon restarted with PID %d\n", pid)
			}
			return nil
		},
	}
}

func newDaemonStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var report daemon.StatusReport
			if err := call(cmd, ipc.CmdStatus, nil, &report); err != nil {
				if errors.Is(err, ipc.ErrUnavailable) {
					if useJSON {
						return printJSON(cmd.OutOrStdout(), map[string]bool{"running": false})
					}
					fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
					return nil
				}
				return err
			}
			if useJSON {
				return printJSON(cmd.OutOrStdout(), report)
			}
			printStatus(cmd, &report)
			return nil
		},
	}
}

func printStatus(cmd *cobra.Command, r *daemon.StatusReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Daemon running with PID %d (up %s)\n", r.PID, r.Uptime)
	fmt.Fprintf(out, "Storage: %s\n", r.Storage)
	if r.Permission {
		fmt.Fprintln(out, "Accessibility: granted")
	} else {
		fmt.Fprintln(out, "Accessibility: not granted, automatic paste is disabled")
	}
	if r.Target != nil {
		fmt.Fprintf(out, "Paste target: %s\n", r.Target)
	}
	if r.LastPaste != nil {
		line := fmt.Sprintf("Last paste: %s into %s", r.LastPaste.State, r.LastPaste.Target)
		if r.LastPaste.Strategy != "" {
			line += " via " + r.LastPaste.Strategy
		}
		fmt.Fprintln(out, line)
	}
	f := newFormatter(cmd, formatFlags{})
	fmt.Fprintln(out, f.FormatStats(r.History, &r.Monitoring))
}

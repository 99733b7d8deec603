package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/berrythewa/clipstack/internal/daemon"
	"github.com/berrythewa/clipstack/internal/ipc"
	"github.com/berrythewa/clipstack/internal/paste"
	"github.com/berrythewa/clipstack/internal/types"
)

func newPasteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paste [id]",
		Short: "Paste an entry into the last active application",
		Long: `Write an entry to the clipboard and paste it into the application that was
frontmost before clipstack was invoked. Without an ID the newest entry is
pasted. When every paste method fails the entry stays on the clipboard.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id string
			if len(args) == 1 {
				id = args[0]
			}
			req, err := ipc.NewRequest(ipc.CmdPaste, ipc.IDArgs{ID: id})
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			resp, err := ipc.SendRequest(ctx, cfg.SystemPaths.SocketPath, req)
			if err != nil {
				return err
			}

			// failed pastes still carry the attempt report
			var res paste.Result
			if len(resp.Data) > 0 {
				if err := json.Unmarshal(resp.Data, &res); err != nil {
					return fmt.Errorf("failed to decode paste result: %w", err)
				}
			}
			if useJSON && len(resp.Data) > 0 {
				if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
					return perr
				}
			} else if verbose && len(resp.Data) > 0 {
				printAttempts(cmd, &res)
			}
			if err := resp.Err(); err != nil {
				return err
			}
			if !quiet && !useJSON {
				fmt.Fprintf(cmd.OutOrStdout(), "Pasted into %s via %s\n", res.Target, res.Strategy)
			}
			return nil
		},
	}
}

func printAttempts(cmd *cobra.Command, res *paste.Result) {
	out := cmd.ErrOrStderr()
	fmt.Fprintf(out, "Target %s, state %s, %s\n", res.Target, res.State, res.Elapsed)
	for _, a := range res.Attempts {
		switch {
		case a.Skipped:
			fmt.Fprintf(out, "  %-10s skipped\n", a.Strategy)
		case a.Error != "":
			fmt.Fprintf(out, "  %-10s failed: %s\n", a.Strategy, a.Error)
		default:
			fmt.Fprintf(out, "  %-10s delivered\n", a.Strategy)
		}
	}
}

func newTargetCmd() *cobra.Command {
	targetCmd := &cobra.Command{
		Use:   "target",
		Short: "Inspect the paste target",
	}
	targetCmd.AddCommand(&cobra.Command{
		Use:   "capture",
		Short: "Record the frontmost application as the paste target",
		Long: `Record the frontmost application as the paste target. Bind this to the
hotkey that opens your history picker so the paste goes back to the
application you came from.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var app types.App
			if err := call(cmd, ipc.CmdTargetCapture, nil, &app); err != nil {
				return err
			}
			if useJSON {
				return printJSON(cmd.OutOrStdout(), app)
			}
			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Paste target: %s (PID %d)\n", app, app.PID)
			}
			return nil
		},
	})
	return targetCmd
}

func newPermissionCmd() *cobra.Command {
	var prompt bool
	cmd := &cobra.Command{
		Use:   "permission",
		Short: "Check the accessibility permission needed for automatic paste",
		RunE: func(cmd *cobra.Command, args []string) error {
			var res daemon.PermissionResult
			if err := call(cmd, ipc.CmdPermission, ipc.PermissionArgs{Prompt: prompt}, &res); err != nil {
				return err
			}
			if useJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			if res.Trusted {
				fmt.Fprintln(cmd.OutOrStdout(), "Accessibility permission granted")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Accessibility permission not granted. Open System Settings > Privacy & Security > Accessibility and allow clipstack.")
			return errNotTrusted
		},
	}
	cmd.Flags().BoolVar(&prompt, "prompt", false, "ask the system to show the permission dialog")
	return cmd
}

var errNotTrusted = errors.New("accessibility permission not granted")

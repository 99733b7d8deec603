package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/berrythewa/clipstack/internal/daemon"
	"github.com/berrythewa/clipstack/internal/ipc"
	"github.com/berrythewa/clipstack/internal/types"
)

func newHistoryCmd() *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Browse and manage clipboard history",
		Long: `Browse and manage the clipboard history kept by the daemon.

Entries are listed newest first. Use the entry ID shown by list with show,
pin, delete, edit, copy and paste.`,
	}
	historyCmd.AddCommand(
		newHistoryListCmd(),
		newHistoryShowCmd(),
		newHistoryPinCmd(),
		newHistoryDeleteCmd(),
		newHistoryClearCmd(),
		newHistoryEditCmd(),
		newHistoryCopyCmd(),
		newHistoryStatsCmd(),
	)
	return historyCmd
}

func newHistoryListCmd() *cobra.Command {
	var (
		limit  int
		pinned bool
		ff     formatFlags
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List history entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			var entries []*types.Entry
			if err := call(cmd, ipc.CmdHistoryList, ipc.ListArgs{Limit: limit}, &entries); err != nil {
				return err
			}
			if pinned {
				kept := entries[:0]
				for _, e := range entries {
					if e.Pinned {
						kept = append(kept, e)
					}
				}
				entries = kept
			}
			if useJSON {
				return printJSON(cmd.OutOrStdout(), entries)
			}
			fmt.Fprintln(cmd.OutOrStdout(), newFormatter(cmd, ff).FormatEntryList(entries))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of entries (0 = all)")
	cmd.Flags().BoolVar(&pinned, "pinned", false, "only pinned entries")
	ff.register(cmd)
	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	var ff formatFlags
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one entry in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var entry types.Entry
			if err := call(cmd, ipc.CmdHistoryGet, ipc.IDArgs{ID: args[0]}, &entry); err != nil {
				return err
			}
			if useJSON {
				return printJSON(cmd.OutOrStdout(), &entry)
			}
			fmt.Fprintln(cmd.OutOrStdout(), newFormatter(cmd, ff).FormatEntry(&entry))
			return nil
		},
	}
	ff.register(cmd)
	return cmd
}

func newHistoryPinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pin <id>",
		Short: "Toggle the pinned state of an entry",
		Long:  "Toggle the pinned state of an entry. Pinned entries are never evicted.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var res daemon.PinResult
			if err := call(cmd, ipc.CmdHistoryPin, ipc.IDArgs{ID: args[0]}, &res); err != nil {
				return err
			}
			if useJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			if !quiet {
				state := "unpinned"
				if res.Pinned {
					state = "pinned"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Entry %s %s\n", res.ID, state)
			}
			return nil
		},
	}
}

func newHistoryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete an entry",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := call(cmd, ipc.CmdHistoryDelete, ipc.IDArgs{ID: args[0]}, nil); err != nil {
				return err
			}
			if !quiet && !useJSON {
				fmt.Fprintf(cmd.OutOrStdout(), "Entry %s deleted\n", args[0])
			}
			return nil
		},
	}
}

func newHistoryClearCmd() *cobra.Command {
	var keepPinned bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			var res daemon.ClearResult
			if err := call(cmd, ipc.CmdHistoryClear, ipc.ClearArgs{KeepPinned: keepPinned}, &res); err != nil {
				return err
			}
			if useJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries\n", res.Removed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&keepPinned, "keep-pinned", false, "keep pinned entries")
	return cmd
}

func newHistoryEditCmd() *cobra.Command {
	var (
		text    string
		rtfFile string
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Replace the content of a text or rich text entry",
		Long: `Replace the content of a text or rich text entry.

The new text comes from --text, or from standard input when --text is not
given. --rtf replaces the rich text payload with the contents of a file.
Image entries cannot be edited.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			edit := ipc.EditArgs{ID: args[0], Text: text}
			if !cmd.Flags().Changed("text") {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read new text: %w", err)
				}
				edit.Text = string(data)
			}
			if rtfFile != "" {
				data, err := os.ReadFile(rtfFile)
				if err != nil {
					return fmt.Errorf("failed to read rich text: %w", err)
				}
				edit.RichText = data
			}

			var entry types.Entry
			if err := call(cmd, ipc.CmdHistoryEdit, edit, &entry); err != nil {
				return err
			}
			if useJSON {
				return printJSON(cmd.OutOrStdout(), &entry)
			}
			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Entry %s updated\n", entry.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "new text content")
	cmd.Flags().StringVar(&rtfFile, "rtf", "", "file with new rich text content")
	return cmd
}

func newHistoryCopyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "copy <id>",
		Short: "Put an entry back on the clipboard without pasting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var entry types.Entry
			if err := call(cmd, ipc.CmdHistoryCopy, ipc.IDArgs{ID: args[0]}, &entry); err != nil {
				return err
			}
			if useJSON {
				return printJSON(cmd.OutOrStdout(), &entry)
			}
			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Entry %s copied to the clipboard\n", entry.ID)
			}
			return nil
		},
	}
}

func newHistoryStatsCmd() *cobra.Command {
	var ff formatFlags
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show history statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			var report daemon.StatusReport
			if err := call(cmd, ipc.CmdStatus, nil, &report); err != nil {
				return err
			}
			if useJSON {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"history":    report.History,
					"monitoring": report.Monitoring,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), newFormatter(cmd, ff).FormatStats(report.History, &report.Monitoring))
			return nil
		},
	}
	ff.register(cmd)
	return cmd
}

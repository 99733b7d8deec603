package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
	commit    = "none"
)

// SetVersionInfo sets the version information reported by the version command
func SetVersionInfo(v, bt, c string) {
	version = v
	buildTime = bt
	commit = c
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := map[string]string{
				"version":    version,
				"build_time": buildTime,
				"commit":     commit,
				"go":         runtime.Version(),
			}
			if useJSON {
				return printJSON(cmd.OutOrStdout(), info)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "clipstack %s (commit %s, built %s, %s)\n", version, commit, buildTime, runtime.Version())
			return nil
		},
	}
}

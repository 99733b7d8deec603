package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/berrythewa/clipstack/internal/config"
	"github.com/berrythewa/clipstack/pkg/utils"
)

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "clipstack",
		Short: "Clipboard history with reliable paste-back for macOS",
		Long: `Clipstack keeps a history of everything you copy and pastes any entry back
into the application you were working in:
  • Text, rich text and images, with duplicate detection
  • Pinned entries that are never evicted
  • Automatic paste with several fallback strategies`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is the clipstack application support directory)")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose output")
	root.PersistentFlags().BoolVar(&quiet, "quiet", false, "minimize output")
	root.PersistentFlags().BoolVar(&useJSON, "json", false, "output in JSON format")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newDaemonCmd(),
		newHistoryCmd(),
		newPasteCmd(),
		newTargetCmd(),
		newPermissionCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command line and exits non-zero on failure
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", describe(err))
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(cfgFile)
	if loaded == nil {
		return err
	}
	cfg = loaded

	level := cfg.Log.Level
	switch {
	case logLevel != "":
		level = logLevel
	case verbose:
		level = "debug"
	case quiet:
		level = "warn"
	}
	logger, lerr := utils.NewLogger(utils.LoggerOptions{Level: level, Format: cfg.Log.Format, Output: cmd.ErrOrStderr()})
	if lerr != nil {
		return fmt.Errorf("failed to initialize logger: %w", lerr)
	}
	zapLogger = logger

	if errors.Is(err, config.ErrInvalid) {
		zapLogger.Warn("Using default configuration", zap.String("file", cfg.SystemPaths.ConfigFile), zap.Error(err))
	}
	return nil
}

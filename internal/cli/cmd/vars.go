package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/berrythewa/clipstack/internal/config"
	"github.com/berrythewa/clipstack/internal/ipc"
	"github.com/berrythewa/clipstack/pkg/format"
)

// Shared variables across all commands
var (
	cfg       *config.Config
	zapLogger *zap.Logger

	cfgFile  string
	verbose  bool
	quiet    bool
	useJSON  bool
	logLevel string
)

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, ipc.DefaultTimeout)
}

// call sends one request to the running daemon
func call(cmd *cobra.Command, command string, args, out interface{}) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()
	zapLogger.Debug("Calling daemon", zap.String("command", command), zap.String("socket", cfg.SystemPaths.SocketPath))
	return ipc.Call(ctx, cfg.SystemPaths.SocketPath, command, args, out)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatFlags mirror the display flags of the history commands
type formatFlags struct {
	compact  bool
	noColors bool
	noIcons  bool
	maxLines int
	maxWidth int
}

func (ff *formatFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&ff.compact, "compact", false, "one line per entry")
	cmd.Flags().BoolVar(&ff.noColors, "no-colors", false, "disable colored output")
	cmd.Flags().BoolVar(&ff.noIcons, "no-icons", false, "disable icons")
	cmd.Flags().IntVar(&ff.maxLines, "max-lines", 0, "maximum content lines per entry (0 = default)")
	cmd.Flags().IntVar(&ff.maxWidth, "max-width", 0, "maximum content width (0 = default)")
}

func (ff formatFlags) options(tty bool) format.Options {
	opts := format.DefaultOptions()
	if ff.compact {
		opts = format.CompactOptions()
	}
	if ff.noColors || !tty {
		opts.UseColors = false
	}
	if ff.noIcons {
		opts.UseIcons = false
	}
	if ff.maxLines > 0 {
		opts.MaxLines = ff.maxLines
	}
	if ff.maxWidth > 0 {
		opts.MaxWidth = ff.maxWidth
	}
	return opts
}

// newFormatter uses colors only when stdout is a terminal
func newFormatter(cmd *cobra.Command, ff formatFlags) *format.Formatter {
	tty := false
	if f, ok := cmd.OutOrStdout().(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd())
	}
	return format.New(ff.options(tty))
}

// describe turns daemon errors into user-facing messages
func describe(err error) string {
	if errors.Is(err, ipc.ErrUnavailable) {
		return "daemon is not running, start it with `clipstack daemon start --detach`"
	}
	var ipcErr *ipc.Error
	if !errors.As(err, &ipcErr) {
		return err.Error()
	}
	switch ipcErr.Code {
	case ipc.CodePermissionDenied:
		return "accessibility permission is required to paste. Run `clipstack permission --prompt` and allow Clipstack in System Settings."
	case ipc.CodePasteFailed:
		return "could not paste automatically, the entry is on the clipboard: paste manually with ⌘V"
	case ipc.CodeInProgress:
		return "another paste is in progress, try again"
	case ipc.CodeTargetUnavailable:
		return "no application to paste into, the entry is on the clipboard"
	default:
		return ipcErr.Message
	}
}

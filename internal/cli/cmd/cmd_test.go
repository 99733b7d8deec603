package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berrythewa/clipstack/internal/config"
	"github.com/berrythewa/clipstack/internal/daemon"
	"github.com/berrythewa/clipstack/internal/ipc"
	"github.com/berrythewa/clipstack/internal/paste"
	"github.com/berrythewa/clipstack/internal/types"
)

var created = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

// fakeDaemon answers on the configured socket and records requests
type fakeDaemon struct {
	mu       sync.Mutex
	requests []*ipc.Request
	handle   func(req *ipc.Request) *ipc.Response
}

func (f *fakeDaemon) serve(_ context.Context, req *ipc.Request) *ipc.Response {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.handle(req)
}

func (f *fakeDaemon) last() *ipc.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

func isolate(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "csc")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	t.Setenv("CLIPSTACK_CONFIG_DIR", filepath.Join(dir, "c"))
	t.Setenv("CLIPSTACK_DATA_DIR", filepath.Join(dir, "d"))
	return dir
}

func startFake(t *testing.T, handle func(req *ipc.Request) *ipc.Response) *fakeDaemon {
	t.Helper()
	isolate(t)
	paths, err := config.GetConfigPaths()
	require.NoError(t, err)

	f := &fakeDaemon{handle: handle}
	ctx, cancel := context.WithCancel(context.Background())
	srv := ipc.NewServer(paths.SocketPath, f.serve, nil)
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	require.Eventually(t, func() bool {
		_, err := os.Stat(paths.SocketPath)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	return f
}

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func sampleEntries() []*types.Entry {
	return []*types.Entry{
		{ID: "e2", Text: "second copy", CreatedAt: created.Add(time.Minute), Pinned: true},
		{ID: "e1", Text: "first copy", CreatedAt: created},
	}
}

func TestHistoryList(t *testing.T) {
	f := startFake(t, func(req *ipc.Request) *ipc.Response {
		return ipc.OK(sampleEntries())
	})

	out, _, err := run(t, "", "history", "list", "-n", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Clipboard history (2 entries)")
	assert.Contains(t, out, "second copy")
	assert.NotContains(t, out, "\033[", "no colors when not writing to a terminal")

	var args ipc.ListArgs
	require.NoError(t, f.last().Bind(&args))
	assert.Equal(t, 5, args.Limit)
	assert.Equal(t, ipc.CmdHistoryList, f.last().Command)

	out, _, err = run(t, "", "history", "list", "--pinned", "--json")
	require.NoError(t, err)
	var entries []*types.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "e2", entries[0].ID)
}

func TestHistoryCommandsSendIDs(t *testing.T) {
	f := startFake(t, func(req *ipc.Request) *ipc.Response {
		switch req.Command {
		case ipc.CmdHistoryPin:
			return ipc.OK(daemon.PinResult{ID: "e1", Pinned: true})
		case ipc.CmdHistoryClear:
			var args ipc.ClearArgs
			_ = req.Bind(&args)
			if args.KeepPinned {
				return ipc.OK(daemon.ClearResult{Removed: 1})
			}
			return ipc.OK(daemon.ClearResult{Removed: 2})
		default:
			return ipc.OK(sampleEntries()[1])
		}
	})

	out, _, err := run(t, "", "history", "pin", "e1")
	require.NoError(t, err)
	assert.Equal(t, "Entry e1 pinned\n", out)

	out, _, err = run(t, "", "history", "clear", "--keep-pinned")
	require.NoError(t, err)
	assert.Equal(t, "Removed 1 entries\n", out)

	out, _, err = run(t, "", "history", "copy", "e1")
	require.NoError(t, err)
	assert.Equal(t, "Entry e1 copied to the clipboard\n", out)
	assert.Equal(t, ipc.CmdHistoryCopy, f.last().Command)

	out, _, err = run(t, "", "history", "show", "e1", "--no-icons")
	require.NoError(t, err)
	assert.Contains(t, out, "first copy")
	assert.Contains(t, out, "ID: e1")

	_, _, err = run(t, "", "history", "show")
	assert.Error(t, err, "show requires an id")
}

func TestHistoryEditReadsStdin(t *testing.T) {
	f := startFake(t, func(req *ipc.Request) *ipc.Response {
		var args ipc.EditArgs
		if err := req.Bind(&args); err != nil {
			return ipc.Fail(ipc.CodeBadRequest, err)
		}
		return ipc.OK(&types.Entry{ID: "new", Text: args.Text})
	})

	out, _, err := run(t, "edited from stdin", "history", "edit", "e1")
	require.NoError(t, err)
	assert.Equal(t, "Entry new updated\n", out)

	var args ipc.EditArgs
	require.NoError(t, f.last().Bind(&args))
	assert.Equal(t, "e1", args.ID)
	assert.Equal(t, "edited from stdin", args.Text)

	_, _, err = run(t, "ignored", "history", "edit", "e1", "--text", "")
	require.NoError(t, err)
	require.NoError(t, f.last().Bind(&args))
	assert.Equal(t, "", args.Text, "an explicit empty --text wins over stdin")
}

func TestPaste(t *testing.T) {
	fail := false
	var mu sync.Mutex
	startFake(t, func(req *ipc.Request) *ipc.Response {
		mu.Lock()
		defer mu.Unlock()
		res := paste.Result{
			EntryID:  "e1",
			Target:   types.App{PID: 200, BundleID: "com.apple.TextEdit"},
			State:    paste.Delivered,
			Strategy: paste.StrategyKeystroke,
			Attempts: []paste.AttemptResult{{Strategy: paste.StrategyMenu, Skipped: true}, {Strategy: paste.StrategyKeystroke}},
		}
		if fail {
			res.State = paste.AllStrategiesFailed
			res.Strategy = ""
			resp := ipc.Fail(ipc.CodePasteFailed, paste.ErrAllStrategiesExhausted)
			resp.Data, _ = json.Marshal(res)
			return resp
		}
		return ipc.OK(res)
	})

	out, _, err := run(t, "", "paste", "e1")
	require.NoError(t, err)
	assert.Equal(t, "Pasted into com.apple.TextEdit via keystroke\n", out)

	mu.Lock()
	fail = true
	mu.Unlock()
	out, _, err = run(t, "", "paste", "--json")
	require.Error(t, err)
	assert.Contains(t, describe(err), "paste manually")

	var res paste.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res), "the attempt report is printed even on failure")
	assert.Equal(t, paste.AllStrategiesFailed, res.State)

	_, errOut, err := run(t, "", "paste", "--verbose")
	require.Error(t, err)
	assert.Regexp(t, `menu\s+skipped`, errOut)
}

func TestPermission(t *testing.T) {
	var trusted bool
	startFake(t, func(req *ipc.Request) *ipc.Response {
		var args ipc.PermissionArgs
		_ = req.Bind(&args)
		return ipc.OK(daemon.PermissionResult{Trusted: trusted || args.Prompt})
	})

	out, _, err := run(t, "", "permission")
	assert.ErrorIs(t, err, errNotTrusted)
	assert.Contains(t, out, "not granted")

	out, _, err = run(t, "", "permission", "--prompt")
	require.NoError(t, err)
	assert.Equal(t, "Accessibility permission granted\n", out)
}

func TestTargetCapture(t *testing.T) {
	startFake(t, func(req *ipc.Request) *ipc.Response {
		return ipc.OK(types.App{PID: 321, BundleID: "com.apple.Notes", Name: "Notes"})
	})
	out, _, err := run(t, "", "target", "capture")
	require.NoError(t, err)
	assert.Equal(t, "Paste target: com.apple.Notes (PID 321)\n", out)
}

func TestDaemonStatus(t *testing.T) {
	startFake(t, func(req *ipc.Request) *ipc.Response {
		return ipc.OK(daemon.StatusReport{
			PID:        42,
			Uptime:     "1m0s",
			Storage:    "json",
			History:    types.HistoryStats{Total: 2, Pinned: 1, Unpinned: 1, MaxItems: 50},
			Monitoring: types.MonitoringStatus{IsRunning: true, Interval: "500ms"},
		})
	})
	out, _, err := run(t, "", "daemon", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Daemon running with PID 42")
	assert.Contains(t, out, "Accessibility: not granted")
	assert.Contains(t, out, "2 of 50")
}

func TestDaemonNotRunning(t *testing.T) {
	isolate(t)

	out, _, err := run(t, "", "daemon", "status")
	require.NoError(t, err)
	assert.Equal(t, "Daemon is not running\n", out)

	out, _, err = run(t, "", "daemon", "stop")
	require.NoError(t, err)
	assert.Equal(t, "Daemon is not running\n", out)

	_, _, err = run(t, "", "history", "list")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ipc.ErrUnavailable))
	assert.Contains(t, describe(err), "clipstack daemon start")
}

func TestConfigCommands(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")

	out, _, err := run(t, "", "config", "path", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Config file: "+path)

	_, _, err = run(t, "", "config", "init", "--config", path)
	assert.Error(t, err, "loading already wrote the defaults")

	require.NoError(t, os.WriteFile(path, []byte("max_history_items: 7\n"), 0600))
	out, _, err = run(t, "", "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "max_history_items: 7")

	_, _, err = run(t, "", "config", "init", "--force", "--config", path)
	require.NoError(t, err)
	out, _, err = run(t, "", "config", "show", "--json", "--config", path)
	require.NoError(t, err)
	var shown config.Config
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, 50, shown.MaxHistoryItems)
}

func TestVersion(t *testing.T) {
	isolate(t)
	SetVersionInfo("1.2.3", "today", "abc123")
	t.Cleanup(func() { SetVersionInfo("dev", "unknown", "none") })

	out, _, err := run(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "clipstack 1.2.3 (commit abc123, built today"))
}

func TestFormatFlags(t *testing.T) {
	ff := formatFlags{compact: true, maxWidth: 30}
	opts := ff.options(true)
	assert.True(t, opts.Compact)
	assert.True(t, opts.UseColors)
	assert.Equal(t, 30, opts.MaxWidth)

	opts = formatFlags{noColors: true, noIcons: true, maxLines: 3}.options(true)
	assert.False(t, opts.UseColors)
	assert.False(t, opts.UseIcons)
	assert.Equal(t, 3, opts.MaxLines)

	assert.False(t, formatFlags{}.options(false).UseColors)
}

package ipc

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shortSocket(t *testing.T) string {
	t.Helper()
	// unix socket paths are limited to ~100 bytes; t.TempDir can be longer
	dir, err := os.MkdirTemp("", "cs")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "s.sock")
}

func startServer(t *testing.T, h Handler) string {
	t.Helper()
	path := shortSocket(t)
	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer(path, h, nil)
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
		assert.NoFileExists(t, path)
	})
	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	return path
}

func TestRoundTrip(t *testing.T) {
	path := startServer(t, func(_ context.Context, req *Request) *Response {
		switch req.Command {
		case CmdHistoryGet:
			var args IDArgs
			if err := req.Bind(&args); err != nil {
				return Fail(CodeBadRequest, err)
			}
			if args.ID != "abc" {
				return Fail(CodeNotFound, errors.New("entry not found"))
			}
			return OK(map[string]string{"id": args.ID, "text": "hello"})
		default:
			return nil
		}
	})
	ctx := context.Background()

	var out map[string]string
	require.NoError(t, Call(ctx, path, CmdHistoryGet, IDArgs{ID: "abc"}, &out))
	assert.Equal(t, "hello", out["text"])

	err := Call(ctx, path, CmdHistoryGet, IDArgs{ID: "zzz"}, &out)
	var ipcErr *Error
	require.ErrorAs(t, err, &ipcErr)
	assert.Equal(t, CodeNotFound, ipcErr.Code)
	assert.Equal(t, "entry not found", err.Error())

	assert.NoError(t, Call(ctx, path, CmdStatus, nil, nil), "nil handler response is success")
}

func TestBadArgs(t *testing.T) {
	path := startServer(t, func(_ context.Context, req *Request) *Response {
		var args ListArgs
		if err := req.Bind(&args); err != nil {
			return Fail(CodeBadRequest, err)
		}
		return OK(args.Limit)
	})
	resp, err := SendRequest(context.Background(), path, &Request{Command: CmdHistoryList, Args: []byte(`{"limit":"x"}`)})
	require.NoError(t, err)
	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, CodeBadRequest, resp.Code)
}

func TestSocketPermissions(t *testing.T) {
	path := startServer(t, func(context.Context, *Request) *Response { return OK(nil) })
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestDaemonNotRunning(t *testing.T) {
	_, err := SendRequest(context.Background(), shortSocket(t), &Request{Command: CmdStatus})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestShutdownWithIdleClient(t *testing.T) {
	path := shortSocket(t)
	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer(path, func(context.Context, *Request) *Response { return OK(nil) }, nil)
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()
	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer conn.Close()
	// let the server accept and block reading the request
	time.Sleep(100 * time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server kept running with an idle client connected")
	}
}

func TestNewRequestAndDecode(t *testing.T) {
	req, err := NewRequest(CmdHistoryClear, ClearArgs{KeepPinned: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"keep_pinned":true}`, string(req.Args))

	var args ClearArgs
	require.NoError(t, req.Bind(&args))
	assert.True(t, args.KeepPinned)

	resp := OK([]int{1, 2})
	var got []int
	require.NoError(t, resp.Decode(&got))
	assert.Equal(t, []int{1, 2}, got)
}

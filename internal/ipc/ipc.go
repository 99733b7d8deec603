package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a client round trip. Paste requests can take a few
// seconds while strategies run.
const DefaultTimeout = 15 * time.Second

// ErrUnavailable is returned when nothing listens on the socket
var ErrUnavailable = errors.New("daemon is not running")

// Handler serves one request
type Handler func(ctx context.Context, req *Request) *Response

// SendRequest connects to the daemon, sends a request, and returns the response.
func SendRequest(ctx context.Context, socketPath string, req *Request) (*Response, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}

// Call sends command with args and decodes the reply into out
func Call(ctx context.Context, socketPath, command string, args, out interface{}) error {
	req, err := NewRequest(command, args)
	if err != nil {
		return err
	}
	resp, err := SendRequest(ctx, socketPath, req)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

// Server accepts requests on a unix socket
type Server struct {
	socketPath string
	handler    Handler
	logger     *zap.Logger

	wg sync.WaitGroup
}

// NewServer creates a server for socketPath
func NewServer(socketPath string, handler Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{socketPath: socketPath, handler: handler, logger: logger}
}

// ListenAndServe serves until ctx is done. Each connection is handled on
// its own goroutine.
func (s *Server) ListenAndServe(ctx context.Context) error {
	// Remove any stale socket
	_ = os.Remove(s.socketPath)
	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		ln.Close()
		return fmt.Errorf("failed to restrict socket permissions: %w", err)
	}
	defer os.Remove(s.socketPath)
	s.logger.Info("IPC server listening", zap.String("socket", s.socketPath))

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			s.logger.Warn("IPC accept failed", zap.Error(err))
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	// an idle or slow client must not hold shutdown open
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	var req Request
	if err := dec.Decode(&req); err != nil {
		_ = enc.Encode(Fail(CodeBadRequest, fmt.Errorf("invalid request: %w", err)))
		return
	}
	s.logger.Debug("IPC request", zap.String("command", req.Command))
	resp := s.handler(ctx, &req)
	if resp == nil {
		resp = OK(nil)
	}
	if err := enc.Encode(resp); err != nil {
		s.logger.Debug("IPC reply failed", zap.String("command", req.Command), zap.Error(err))
	}
}

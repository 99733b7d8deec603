package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/berrythewa/clipstack/internal/history"
	"github.com/berrythewa/clipstack/internal/ipc"
	"github.com/berrythewa/clipstack/internal/paste"
	"github.com/berrythewa/clipstack/internal/target"
	"github.com/berrythewa/clipstack/internal/types"
)

// StatusReport answers the status command
type StatusReport struct {
	PID        int                    `json:"pid"`
	StartedAt  time.Time              `json:"started_at"`
	Uptime     string                 `json:"uptime"`
	Storage    string                 `json:"storage"`
	History    types.HistoryStats     `json:"history"`
	Monitoring types.MonitoringStatus `json:"monitoring"`
	Permission bool                   `json:"accessibility_trusted"`
	Target     *types.App             `json:"target,omitempty"`
	LastPaste  *paste.Result          `json:"last_paste,omitempty"`
}

// PinResult answers history.pin
type PinResult struct {
	ID     string `json:"id"`
	Pinned bool   `json:"pinned"`
}

// ClearResult answers history.clear
type ClearResult struct {
	Removed int `json:"removed"`
}

// PermissionResult answers permission
type PermissionResult struct {
	Trusted bool `json:"trusted"`
}

// Handle serves one IPC request. Paste requests run here, on the
// connection's goroutine.
func (s *Service) Handle(ctx context.Context, req *ipc.Request) *ipc.Response {
	switch req.Command {
	case ipc.CmdStatus:
		return ipc.OK(s.status())

	case ipc.CmdHistoryList:
		var args ipc.ListArgs
		if err := req.Bind(&args); err != nil {
			return ipc.Fail(ipc.CodeBadRequest, err)
		}
		entries := s.store.List()
		if args.Limit > 0 && args.Limit < len(entries) {
			entries = entries[:args.Limit]
		}
		return ipc.OK(entries)

	case ipc.CmdHistoryGet:
		e, resp := s.entry(req)
		if resp != nil {
			return resp
		}
		return ipc.OK(e)

	case ipc.CmdHistoryPin:
		var args ipc.IDArgs
		if err := req.Bind(&args); err != nil {
			return ipc.Fail(ipc.CodeBadRequest, err)
		}
		pinned, err := s.store.TogglePin(args.ID)
		if err != nil {
			return failure(err)
		}
		return ipc.OK(PinResult{ID: args.ID, Pinned: pinned})

	case ipc.CmdHistoryDelete:
		var args ipc.IDArgs
		if err := req.Bind(&args); err != nil {
			return ipc.Fail(ipc.CodeBadRequest, err)
		}
		if err := s.store.Delete(args.ID); err != nil {
			return failure(err)
		}
		return ipc.OK(nil)

	case ipc.CmdHistoryClear:
		var args ipc.ClearArgs
		if err := req.Bind(&args); err != nil {
			return ipc.Fail(ipc.CodeBadRequest, err)
		}
		return ipc.OK(ClearResult{Removed: s.store.Clear(args.KeepPinned)})

	case ipc.CmdHistoryEdit:
		var args ipc.EditArgs
		if err := req.Bind(&args); err != nil {
			return ipc.Fail(ipc.CodeBadRequest, err)
		}
		e, err := s.store.UpdateContent(args.ID, args.Text, args.RichText)
		if err != nil {
			return failure(err)
		}
		return ipc.OK(e)

	case ipc.CmdHistoryCopy:
		e, resp := s.entry(req)
		if resp != nil {
			return resp
		}
		if err := s.writer.WriteEntry(e); err != nil {
			return ipc.Fail(ipc.CodeInternal, err)
		}
		return ipc.OK(e)

	case ipc.CmdPaste:
		var args ipc.IDArgs
		if err := req.Bind(&args); err != nil {
			return ipc.Fail(ipc.CodeBadRequest, err)
		}
		if args.ID == "" {
			latest, ok := s.store.Latest()
			if !ok {
				return ipc.Fail(ipc.CodeNotFound, errors.New("history is empty"))
			}
			args.ID = latest.ID
		}
		res, err := s.engine.Deliver(ctx, args.ID)
		if err != nil {
			resp := failure(err)
			if res != nil {
				resp.Data, _ = json.Marshal(res)
			}
			return resp
		}
		return ipc.OK(res)

	case ipc.CmdTargetCapture:
		app, err := s.resolver.Capture()
		if err != nil {
			return failure(err)
		}
		return ipc.OK(app)

	case ipc.CmdPermission:
		var args ipc.PermissionArgs
		if err := req.Bind(&args); err != nil {
			return ipc.Fail(ipc.CodeBadRequest, err)
		}
		trusted := s.system.AccessibilityTrusted(false)
		if args.Prompt && !trusted {
			trusted = s.engine.RequestPermission()
		}
		return ipc.OK(PermissionResult{Trusted: trusted})

	case ipc.CmdShutdown:
		s.logger.Info("Shutdown requested over IPC")
		s.Shutdown()
		return ipc.OK(nil)

	default:
		return ipc.Fail(ipc.CodeBadRequest, fmt.Errorf("unknown command %q", req.Command))
	}
}

func (s *Service) entry(req *ipc.Request) (*types.Entry, *ipc.Response) {
	var args ipc.IDArgs
	if err := req.Bind(&args); err != nil {
		return nil, ipc.Fail(ipc.CodeBadRequest, err)
	}
	e, ok := s.store.Get(args.ID)
	if !ok {
		return nil, failure(fmt.Errorf("%w: %s", history.ErrNotFound, args.ID))
	}
	return e, nil
}

func (s *Service) status() StatusReport {
	r := StatusReport{
		PID:        os.Getpid(),
		StartedAt:  s.started,
		Storage:    s.live.Get().Storage.Backend,
		History:    s.store.Stats(),
		Monitoring: s.poller.Status(),
		Permission: s.system.AccessibilityTrusted(false),
	}
	if !s.started.IsZero() {
		r.Uptime = s.clock.Since(s.started).Truncate(time.Second).String()
	}
	if app, ok := s.resolver.Captured(); ok {
		r.Target = &app
	}
	if last, ok := s.engine.Last(); ok {
		r.LastPaste = last
	}
	return r
}

// failure maps core errors to IPC error codes
func failure(err error) *ipc.Response {
	code := ipc.CodeInternal
	switch {
	case errors.Is(err, history.ErrNotFound):
		code = ipc.CodeNotFound
	case errors.Is(err, history.ErrNotEditable), errors.Is(err, history.ErrEmptyContent):
		code = ipc.CodeBadRequest
	case errors.Is(err, paste.ErrPermissionDenied):
		code = ipc.CodePermissionDenied
	case errors.Is(err, paste.ErrPasteInProgress):
		code = ipc.CodeInProgress
	case errors.Is(err, target.ErrTargetUnavailable):
		code = ipc.CodeTargetUnavailable
	case errors.Is(err, paste.ErrAllStrategiesExhausted), errors.Is(err, target.ErrActivationFailed):
		code = ipc.CodePasteFailed
	}
	return ipc.Fail(code, err)
}

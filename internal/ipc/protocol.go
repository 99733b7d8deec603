package ipc

import (
	"encoding/json"
	"fmt"
)

// Commands understood by the daemon
const (
	CmdStatus        = "status"
	CmdHistoryList   = "history.list"
	CmdHistoryGet    = "history.get"
	CmdHistoryPin    = "history.pin"
	CmdHistoryDelete = "history.delete"
	CmdHistoryClear  = "history.clear"
	CmdHistoryEdit   = "history.edit"
	CmdHistoryCopy   = "history.copy"
	CmdPaste         = "paste"
	CmdTargetCapture = "target.capture"
	CmdPermission    = "permission"
	CmdShutdown      = "shutdown"
)

// Response statuses
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Error codes the CLI maps to user-facing messages
const (
	CodeNotFound          = "not_found"
	CodePermissionDenied  = "permission_denied"
	CodeTargetUnavailable = "target_unavailable"
	CodePasteFailed       = "paste_failed"
	CodeInProgress        = "in_progress"
	CodeBadRequest        = "bad_request"
	CodeInternal          = "internal"
)

// Request represents a command sent from the CLI to the daemon.
type Request struct {
	Command string          `json:"command"`
	Args    json.RawMessage `json:"args,omitempty"`
}

// Response represents a reply from the daemon to the CLI.
type Response struct {
	Status  string          `json:"status"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// IDArgs selects one entry
type IDArgs struct {
	ID string `json:"id"`
}

// ListArgs limits history.list
type ListArgs struct {
	Limit int `json:"limit,omitempty"`
}

// ClearArgs controls history.clear
type ClearArgs struct {
	KeepPinned bool `json:"keep_pinned"`
}

// EditArgs replaces an entry's content
type EditArgs struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	RichText []byte `json:"rich_text,omitempty"`
}

// PermissionArgs controls the permission query
type PermissionArgs struct {
	Prompt bool `json:"prompt"`
}

// NewRequest encodes args into a request
func NewRequest(command string, args interface{}) (*Request, error) {
	req := &Request{Command: command}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s arguments: %w", command, err)
		}
		req.Args = raw
	}
	return req, nil
}

// Bind decodes the request arguments into v
func (r *Request) Bind(v interface{}) error {
	if len(r.Args) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Args, v); err != nil {
		return fmt.Errorf("invalid arguments for %s: %w", r.Command, err)
	}
	return nil
}

// OK builds a success response carrying data
func OK(data interface{}) *Response {
	resp := &Response{Status: StatusOK}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Fail(CodeInternal, err)
		}
		resp.Data = raw
	}
	return resp
}

// Fail builds an error response
func Fail(code string, err error) *Response {
	return &Response{Status: StatusError, Code: code, Message: err.Error()}
}

// Err returns the response as an error, or nil on success
func (r *Response) Err() error {
	if r.Status == StatusOK {
		return nil
	}
	return &Error{Code: r.Code, Message: r.Message}
}

// Decode unmarshals the response data into v
func (r *Response) Decode(v interface{}) error {
	if err := r.Err(); err != nil {
		return err
	}
	if len(r.Data) == 0 {
		return nil
	}
	return json.Unmarshal(r.Data, v)
}

// Error is a daemon-side failure reported to the client
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

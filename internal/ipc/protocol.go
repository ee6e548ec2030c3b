package ipc

import (
	"encoding/json"
	"fmt"
)

// Commands understood by the daemon.
const (
	CmdStatus  = "status"
	CmdHistory = "history"
	CmdToggle  = "toggle"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Request represents a command sent from the CLI to the daemon.
type Request struct {
	Command string                 `json:"command"`        // e.g. "status", "history", "toggle"
	Args    map[string]interface{} `json:"args,omitempty"` // Command-specific arguments
}

// Response represents a reply from the daemon to the CLI.
type Response struct {
	Status  string      `json:"status"`            // "ok" or "error"
	Message string      `json:"message,omitempty"` // Human-readable message or error
	Data    interface{} `json:"data,omitempty"`    // Command-specific data
}

func OK(data interface{}) *Response {
	return &Response{Status: StatusOK, Data: data}
}

func Errorf(format string, args ...interface{}) *Response {
	return &Response{Status: StatusError, Message: fmt.Sprintf(format, args...)}
}

// Err returns the response's error message as an error, or nil when ok.
func (r *Response) Err() error {
	if r.Status == StatusOK {
		return nil
	}
	if r.Message == "" {
		return fmt.Errorf("daemon returned status %q", r.Status)
	}
	return fmt.Errorf("daemon error: %s", r.Message)
}

// DecodeData converts the generic Data payload into v.
func (r *Response) DecodeData(v interface{}) error {
	raw, err := json.Marshal(r.Data)
	if err != nil {
		return fmt.Errorf("failed to re-encode response data: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}

// IntArg reads a numeric argument, falling back to def when absent or not a number.
func (r *Request) IntArg(name string, def int) int {
	v, ok := r.Args[name]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return def
	}
}

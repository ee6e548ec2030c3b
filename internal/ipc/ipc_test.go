//go:build !windows

package ipc

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, handler Handler) string {
	t.Helper()
	// unix socket paths are length-limited, keep it short
	dir, err := os.MkdirTemp("", "ipc")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	socket := filepath.Join(dir, "d.sock")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ListenAndServe(ctx, socket, handler, nil) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})

	require.Eventually(t, func() bool {
		_, err := os.Stat(socket)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	return socket
}

func TestRoundTrip(t *testing.T) {
	socket := startServer(t, func(req *Request) *Response {
		switch req.Command {
		case CmdHistory:
			n := req.IntArg("limit", 20)
			return OK(map[string]interface{}{"limit": n, "items": []string{"a", "b"}})
		case CmdToggle:
			return nil
		default:
			return Errorf("unknown command %q", req.Command)
		}
	})

	resp, err := SendRequest(socket, &Request{Command: CmdHistory, Args: map[string]interface{}{"limit": 5}})
	require.NoError(t, err)
	require.NoError(t, resp.Err())

	var data struct {
		Limit int      `json:"limit"`
		Items []string `json:"items"`
	}
	require.NoError(t, resp.DecodeData(&data))
	assert.Equal(t, 5, data.Limit)
	assert.Equal(t, []string{"a", "b"}, data.Items)

	resp, err = SendRequest(socket, &Request{Command: "bogus"})
	require.NoError(t, err)
	assert.EqualError(t, resp.Err(), `daemon error: unknown command "bogus"`)

	resp, err = SendRequest(socket, &Request{Command: CmdToggle})
	require.NoError(t, err)
	assert.Error(t, resp.Err())
}

func TestSendRequest_NoDaemon(t *testing.T) {
	_, err := SendRequest(filepath.Join(os.TempDir(), "missing-inspirationd.sock"), &Request{Command: CmdStatus})
	assert.ErrorContains(t, err, "failed to connect to daemon")
}

func TestIntArg(t *testing.T) {
	req := &Request{Args: map[string]interface{}{"limit": float64(7), "bad": "x"}}
	assert.Equal(t, 7, req.IntArg("limit", 1))
	assert.Equal(t, 1, req.IntArg("bad", 1))
	assert.Equal(t, 3, req.IntArg("missing", 3))
}

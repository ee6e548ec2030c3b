package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"
)

// ErrUnsupported is returned on platforms without unix sockets.
var ErrUnsupported = errors.New("IPC not implemented for Windows yet")

const dialTimeout = 2 * time.Second

// Handler answers one request.
type Handler func(*Request) *Response

// SendRequest connects to the daemon, sends a request, and returns the response.
func SendRequest(socketPath string, req *Request) (*Response, error) {
	if runtime.GOOS == "windows" {
		return nil, ErrUnsupported
	}
	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon (is it running?): %w", err)
	}
	defer conn.Close()

	enc := json.NewEncoder(conn)
	dec := json.NewDecoder(conn)

	if err := enc.Encode(req); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	var resp Response
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}

// ListenAndServe serves requests on socketPath until ctx is done.
func ListenAndServe(ctx context.Context, socketPath string, handler Handler, logger *zap.Logger) error {
	if runtime.GOOS == "windows" {
		return ErrUnsupported
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// Remove any stale socket
	os.Remove(socketPath)
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}
	defer os.Remove(socketPath)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	logger.Info("IPC server listening", zap.String("socket", socketPath))
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.Debug("IPC accept failed", zap.Error(err))
			continue
		}
		go handleConn(conn, handler, logger)
	}
}

func handleConn(conn net.Conn, handler Handler, logger *zap.Logger) {
	defer conn.Close()
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	var req Request
	if err := dec.Decode(&req); err != nil {
		enc.Encode(Errorf("invalid request: %v", err))
		return
	}

	resp := handler(&req)
	if resp == nil {
		resp = Errorf("no response for command %q", req.Command)
	}
	if err := enc.Encode(resp); err != nil {
		logger.Debug("Failed to write IPC response", zap.String("command", req.Command), zap.Error(err))
	}
}

package hotkey

import (
	"errors"
	"fmt"
)

// ErrUnsupported is returned by hook backends on platforms without a
// global keyboard hook implementation.
var ErrUnsupported = errors.New("global keyboard hook not supported on this platform")

// KeyEvent is a single key transition reported by a Hook.
type KeyEvent struct {
	Key  string // backend key name, normalized by the listener
	Down bool
}

// Hook is a process-wide keyboard hook. Install starts delivering events to
// handler from the hook's own thread; Alive reports whether that thread is
// still running. Implementations must tolerate Uninstall being called on a
// hook that already died.
type Hook interface {
	Install(handler func(KeyEvent)) error
	Uninstall() error
	Alive() bool
}

// HookInstallError reports that the OS refused to install the keyboard hook.
type HookInstallError struct {
	Err error
}

func (e *HookInstallError) Error() string {
	return fmt.Sprintf("failed to install keyboard hook: %v", e.Err)
}

func (e *HookInstallError) Unwrap() error {
	return e.Err
}

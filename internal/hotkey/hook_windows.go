//go:build windows

package hotkey

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")

	procSetWindowsHookEx    = user32.NewProc("SetWindowsHookExW")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procGetMessage          = user32.NewProc("GetMessageW")
	procPostThreadMessage   = user32.NewProc("PostThreadMessageW")
)

const (
	whKeyboardLL = 13
	wmQuit       = 0x0012
	wmKeydown    = 0x0100
	wmKeyup      = 0x0101
	wmSyskeydown = 0x0104
	wmSyskeyup   = 0x0105

	uninstallTimeout = 2 * time.Second
)

type kbdllhookstruct struct {
	vkCode      uint32
	scanCode    uint32
	flags       uint32
	time        uint32
	dwExtraInfo uintptr
}

type msg struct {
	hwnd    uintptr
	message uint32
	wParam  uintptr
	lParam  uintptr
	time    uint32
	pt      struct{ x, y int32 }
}

// The runtime caps the number of callbacks a process may create, so one
// trampoline is shared across reinstalls and dispatches to the live hook.
var (
	callbackOnce sync.Once
	hookCallback uintptr
	activeHook   atomic.Pointer[windowsHook]
)

// windowsHook is a WH_KEYBOARD_LL hook running a message loop on a locked
// OS thread.
type windowsHook struct {
	mu       sync.Mutex
	handler  func(KeyEvent)
	threadID uint32
	alive    atomic.Bool
	done     chan struct{}
}

// NewHook returns the Windows low-level keyboard hook.
func NewHook() Hook {
	return &windowsHook{}
}

func lowLevelKeyboardProc(nCode, wParam, lParam uintptr) uintptr {
	if int32(nCode) >= 0 {
		if h := activeHook.Load(); h != nil && h.handler != nil {
			info := (*kbdllhookstruct)(unsafe.Pointer(lParam))
			switch wParam {
			case wmKeydown, wmSyskeydown:
				h.handler(KeyEvent{Key: vkName(info.vkCode), Down: true})
			case wmKeyup, wmSyskeyup:
				h.handler(KeyEvent{Key: vkName(info.vkCode), Down: false})
			}
		}
	}
	r, _, _ := procCallNextHookEx.Call(0, nCode, wParam, lParam)
	return r
}

func (h *windowsHook) Install(handler func(KeyEvent)) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.alive.Load() {
		return errors.New("keyboard hook already installed")
	}

	callbackOnce.Do(func() {
		hookCallback = windows.NewCallback(lowLevelKeyboardProc)
	})

	h.handler = handler
	h.done = make(chan struct{})
	activeHook.Store(h)

	errCh := make(chan error, 1)
	go h.run(errCh)

	if err := <-errCh; err != nil {
		activeHook.CompareAndSwap(h, nil)
		h.done = nil
		return err
	}
	return nil
}

func (h *windowsHook) run(errCh chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(h.done)

	handle, _, err := procSetWindowsHookEx.Call(whKeyboardLL, hookCallback, 0, 0)
	if handle == 0 {
		errCh <- fmt.Errorf("SetWindowsHookExW: %w", err)
		return
	}

	h.threadID = windows.GetCurrentThreadId()
	h.alive.Store(true)
	errCh <- nil

	// GetMessage returns 0 on WM_QUIT and -1 on failure.
	var m msg
	for {
		r, _, _ := procGetMessage.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		if int32(r) <= 0 {
			break
		}
	}

	procUnhookWindowsHookEx.Call(handle)
	h.alive.Store(false)
}

func (h *windowsHook) Uninstall() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	activeHook.CompareAndSwap(h, nil)
	if h.done == nil {
		return nil
	}

	if h.alive.Load() {
		r, _, err := procPostThreadMessage.Call(uintptr(h.threadID), wmQuit, 0, 0)
		if r == 0 {
			return fmt.Errorf("PostThreadMessageW: %w", err)
		}
	}

	select {
	case <-h.done:
	case <-time.After(uninstallTimeout):
		return errors.New("timed out waiting for hook thread to exit")
	}
	h.done = nil
	return nil
}

func (h *windowsHook) Alive() bool {
	return h.alive.Load()
}

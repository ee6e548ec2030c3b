//go:build !windows

package hotkey

// NewHook returns the platform keyboard hook. Only Windows has one; on
// other platforms Install fails with ErrUnsupported.
func NewHook() Hook {
	return unsupportedHook{}
}

type unsupportedHook struct{}

func (unsupportedHook) Install(func(KeyEvent)) error { return ErrUnsupported }
func (unsupportedHook) Uninstall() error             { return nil }
func (unsupportedHook) Alive() bool                  { return false }

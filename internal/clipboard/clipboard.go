package clipboard

// Clipboard reads the system clipboard as text.
type Clipboard interface {
	Read() (string, error)
}

// NewClipboard returns the platform clipboard.
func NewClipboard() Clipboard {
	return NewAtottoClipboard()
}

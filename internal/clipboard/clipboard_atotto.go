package clipboard

import (
	"fmt"

	atottoClip "github.com/atotto/clipboard"
)

// AtottoClipboard reads text through the atotto/clipboard library.
type AtottoClipboard struct{}

func NewAtottoClipboard() *AtottoClipboard {
	return &AtottoClipboard{}
}

func (c *AtottoClipboard) Read() (string, error) {
	if atottoClip.Unsupported {
		return "", fmt.Errorf("clipboard is not supported on this system")
	}
	text, err := atottoClip.ReadAll()
	if err != nil {
		return "", fmt.Errorf("failed to read clipboard: %w", err)
	}
	return text, nil
}

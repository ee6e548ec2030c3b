package types

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Source identifies which capture path produced a content event
type Source string

const (
	SourceHotkey    Source = "hotkey"
	SourceClipboard Source = "clipboard"
)

// ContentEvent is a piece of captured text handed to the routing layer
type ContentEvent struct {
	ID          string    `json:"id"`
	Source      Source    `json:"source"`
	Text        string    `json:"text"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	CapturedAt  time.Time `json:"captured_at"`
}

// NewEvent creates a content event with a fresh ID
func NewEvent(source Source, text, fingerprint string, at time.Time) ContentEvent {
	return ContentEvent{
		ID:          uuid.NewString(),
		Source:      source,
		Text:        text,
		Fingerprint: fingerprint,
		CapturedAt:  at,
	}
}

// Equal compares two events by source and text
func (e ContentEvent) Equal(other ContentEvent) bool {
	return e.Source == other.Source && e.Text == other.Text
}

// Preview returns at most n runes of the event text, for logs and notifications
func (e ContentEvent) Preview(n int) string {
	r := []rune(e.Text)
	if len(r) <= n {
		return e.Text
	}
	return string(r[:n]) + "..."
}

// Router delivers content events to downstream services (classification,
// note-taking, task managers). A nil error means delivery succeeded.
type Router interface {
	Route(ctx context.Context, event ContentEvent) error
}

// RouterFunc adapts a function to the Router interface
type RouterFunc func(ctx context.Context, event ContentEvent) error

func (f RouterFunc) Route(ctx context.Context, event ContentEvent) error {
	return f(ctx, event)
}

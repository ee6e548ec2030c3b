// Package notify shows desktop notifications for capture events.
package notify

import (
	"sync/atomic"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"
)

const (
	appName       = "Inspiration"
	maxMessageLen = 100
)

// Notifier shows a short message to the user.
type Notifier interface {
	Notify(title, message string)
}

// Desktop sends notifications through the OS notification center.
type Desktop struct {
	enabled atomic.Bool
	logger  *zap.Logger
	send    func(title, message, icon string) error
}

func NewDesktop(enabled bool, logger *zap.Logger) *Desktop {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Desktop{logger: logger, send: beeep.Notify}
	d.enabled.Store(enabled)
	return d
}

func (d *Desktop) SetEnabled(enabled bool) {
	d.enabled.Store(enabled)
}

func (d *Desktop) Notify(title, message string) {
	if !d.enabled.Load() {
		return
	}
	if r := []rune(message); len(r) > maxMessageLen {
		message = string(r[:maxMessageLen]) + "..."
	}
	if title != "" {
		title = appName + ": " + title
	} else {
		title = appName
	}
	// notification failures are never fatal
	if err := d.send(title, message, ""); err != nil {
		d.logger.Debug("Desktop notification failed", zap.Error(err))
	}
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(string, string) {}

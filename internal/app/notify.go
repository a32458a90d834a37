package app

import (
	"log/slog"

	"github.com/gen2brain/beeep"
)

// Notifier raises operator-facing alerts.
type Notifier interface {
	Notify(title, message string) error
}

// DesktopNotifier shows native desktop notifications.
type DesktopNotifier struct {
	AppName string
}

// Notify shows a notification. Failures are logged and returned.
func (n DesktopNotifier) Notify(title, message string) error {
	if n.AppName != "" {
		beeep.AppName = n.AppName
	}
	if err := beeep.Notify(title, message, ""); err != nil {
		slog.Debug("desktop notification failed", "error", err)
		return err
	}
	return nil
}

// nopNotifier drops every alert.
type nopNotifier struct{}

func (nopNotifier) Notify(string, string) error { return nil }

package obsdeck

import (
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"

	"github.com/MixyLabs/obsdeck/pkg/obsdeck/util"
)

const notificationIconFilename = "obsdeck-icon.png"

// Notifier provides generic notification sending
type Notifier interface {
	Notify(title string, message string)
}

// ToastNotifier provides toast notifications through the desktop's notification service
type ToastNotifier struct {
	logger *zap.SugaredLogger

	// flipped by the disable_notifications config key
	muted atomic.Bool
}

// NewToastNotifier creates a new ToastNotifier
func NewToastNotifier(logger *zap.SugaredLogger) (*ToastNotifier, error) {
	logger = logger.Named("notifier")
	tn := &ToastNotifier{logger: logger}

	logger.Debug("Created toast notifier instance")

	return tn, nil
}

// Notify sends a toast notification (or fails silently, logging the error)
func (tn *ToastNotifier) Notify(title string, message string) {
	if tn.muted.Load() {
		tn.logger.Debugw("Notification suppressed", "title", title, "message", message)
		return
	}

	// the icon has to live on disk for the notification service to pick it up
	iconPath := filepath.Join(logDirectory, notificationIconFilename)
	if !util.FileExists(iconPath) {
		tn.logger.Debugw("Notification icon missing, writing it", "path", iconPath)

		if err := util.EnsureDirExists(logDirectory); err == nil {
			if err := os.WriteFile(iconPath, LogoIconData, 0644); err != nil {
				tn.logger.Warnw("Failed to write notification icon", "error", err)
			}
		}
	}

	tn.logger.Infow("Sending toast notification", "title", title, "message", message)

	if err := beeep.Notify(title, message, iconPath); err != nil {
		tn.logger.Errorw("Failed to send toast notification", "error", err)
	}
}

// SetMuted turns notifications off (or back on)
func (tn *ToastNotifier) SetMuted(muted bool) {
	tn.muted.Store(muted)
}

// Package notifier provides render notification functionality
package notifier

import (
	"fmt"
	"runtime"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/ghostwriter/ghostwriter/pkg/logger"
	"github.com/ghostwriter/ghostwriter/pkg/utils"
)

// RenderNotifier handles document generation notifications
type RenderNotifier struct {
	enabled      bool
	successSound string
	failureSound string
	logger       logger.Logger
}

// Config represents notification configuration
type Config struct {
	Enabled      bool
	SuccessSound string
	FailureSound string
}

// New creates a new render notifier
func New(config Config, log logger.Logger) *RenderNotifier {
	return &RenderNotifier{
		enabled:      config.Enabled,
		successSound: config.SuccessSound,
		failureSound: config.FailureSound,
		logger:       log,
	}
}

// NotifyRenderStart notifies that document generation has started
func (n *RenderNotifier) NotifyRenderStart(document string) {
	if !n.enabled {
		return
	}

	title := "👻 Ghostwriter"
	message := fmt.Sprintf("Generating %s...", document)

	n.sendNotification(title, message, "")
}

// NotifyBatchComplete notifies that a generation batch finished cleanly
func (n *RenderNotifier) NotifyBatchComplete(document string, outputs int, duration time.Duration) {
	if !n.enabled {
		return
	}

	title := "✅ Document Generated"
	message := fmt.Sprintf("%s: %d outputs in %s", document, outputs, utils.FormatDuration(duration))

	n.sendNotification(title, message, n.successSound)
}

// NotifyBatchFailure notifies that a generation batch had failures
func (n *RenderNotifier) NotifyBatchFailure(document string, err error) {
	if !n.enabled {
		return
	}

	title := "❌ Generation Failed"
	message := fmt.Sprintf("%s: %v", document, err)

	n.sendNotification(title, message, n.failureSound)
}

// Private methods

func (n *RenderNotifier) sendNotification(title, message, soundName string) {
	// Platform-specific notification
	switch runtime.GOOS {
	case "darwin":
		n.sendMacNotification(title, message, soundName)
	case "linux":
		n.sendLinuxNotification(title, message)
	case "windows":
		n.sendWindowsNotification(title, message)
	default:
		// Fallback to console
		n.logger.Info(fmt.Sprintf("%s: %s", title, message))
	}
}

func (n *RenderNotifier) sendMacNotification(title, message, soundName string) {
	// Use beeep for cross-platform notifications
	if err := beeep.Notify(title, message, ""); err != nil {
		n.logger.Debug("Failed to send notification", logger.WithField("error", err))
	}

	// Play sound if specified
	if soundName != "" {
		if err := beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration); err != nil {
			n.logger.Debug("Failed to play sound", logger.WithField("error", err))
		}
	}
}

func (n *RenderNotifier) sendLinuxNotification(title, message string) {
	// Use notify-send on Linux
	if err := beeep.Notify(title, message, ""); err != nil {
		n.logger.Debug("Failed to send notification", logger.WithField("error", err))
	}
}

func (n *RenderNotifier) sendWindowsNotification(title, message string) {
	// Use Windows toast notifications
	if err := beeep.Notify(title, message, ""); err != nil {
		n.logger.Debug("Failed to send notification", logger.WithField("error", err))
	}
}

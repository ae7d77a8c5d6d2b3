// Package notifier provides desktop notifications for engine run events
package notifier

import (
	"fmt"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/wisp-engine/wisp/pkg/logger"
)

// FrameNotifier surfaces run lifecycle and health events to the desktop.
type FrameNotifier struct {
	enabled        bool
	stallThreshold int
	logger         logger.Logger
	send           func(title, message string) error
}

// Config represents notification configuration
type Config struct {
	Enabled bool
	// StallThreshold is the number of consecutive stalled frames that
	// warrant a notification. Non-positive means notify on every stall
	// report.
	StallThreshold int
}

// New creates a new frame notifier
func New(config Config, log logger.Logger) *FrameNotifier {
	if log == nil {
		log = logger.Nop()
	}
	return &FrameNotifier{
		enabled:        config.Enabled,
		stallThreshold: config.StallThreshold,
		logger:         log,
		send: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

// NotifyRunStart notifies that an engine run has started
func (n *FrameNotifier) NotifyRunStart(workers int) {
	if !n.enabled {
		return
	}

	title := "Wisp"
	message := fmt.Sprintf("Run started with %d workers", workers)
	n.sendNotification(title, message)
}

// NotifyRunComplete notifies that a run finished cleanly
func (n *FrameNotifier) NotifyRunComplete(frames uint64, duration time.Duration) {
	if !n.enabled {
		return
	}

	title := "Run Complete"
	message := fmt.Sprintf("%d frames in %s", frames, formatDuration(duration))
	n.sendNotification(title, message)
}

// NotifyFrameStall reports consecutive frames over budget. It stays quiet
// below the configured threshold.
func (n *FrameNotifier) NotifyFrameStall(consecutive int, lastFrame time.Duration) {
	if !n.enabled {
		return
	}
	if n.stallThreshold > 0 && consecutive < n.stallThreshold {
		return
	}

	title := "Frame Stall"
	message := fmt.Sprintf("%d consecutive frames over budget, last took %s",
		consecutive, formatDuration(lastFrame))
	n.sendNotification(title, message)
}

// NotifyQueueBacklog notifies about scheduler backlog
func (n *FrameNotifier) NotifyQueueBacklog(pending int, completed int) {
	if !n.enabled {
		return
	}

	// Only worth interrupting for a real backlog.
	if pending <= 5 {
		return
	}

	title := "Scheduler Backlog"
	message := fmt.Sprintf("%d pending, %d awaiting merge", pending, completed)
	n.sendNotification(title, message)
}

func (n *FrameNotifier) sendNotification(title, message string) {
	if err := n.send(title, message); err != nil {
		n.logger.Debug("Failed to send notification", logger.WithField("error", err))
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

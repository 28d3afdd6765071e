// Package notify implements the customer notification senders behind the
// send-notification activity.
package notify

import (
	"context"

	"github.com/dishpatch/dishpatch/pkg/logger"
)

// LogNotifier writes notifications to the structured log. It is the default
// sender for local runs and tests where no push infrastructure exists.
type LogNotifier struct {
	log logger.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(log logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Send logs the notification text.
func (n *LogNotifier) Send(_ context.Context, text string) error {
	n.log.Info("sent notification", "type", "push", "message", text)
	return nil
}

package infrastructure

import (
	"fmt"
	"os/exec"

	"github.com/yourusername/ytfetch-go/internal/domain"
	"go.uber.org/zap"
)

// NotificationService sends a desktop notification when a batch finishes.
// Disabled by default.
type NotificationService struct {
	config *domain.NotificationConfig
	logger *zap.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(config *domain.NotificationConfig, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		config: config,
		logger: logger,
	}
}

// NotifyBatchFinished reports the batch outcome to the desktop.
func (n *NotificationService) NotifyBatchFinished(succeeded, failed int) {
	title := "ytfetch: batch finished"
	message := fmt.Sprintf("%d succeeded, %d failed", succeeded, failed)
	if err := n.send(title, message); err != nil {
		n.logger.Debug("Failed to send notification", zap.Error(err))
	}
}

func (n *NotificationService) send(title, message string) error {
	if !n.config.Enabled {
		return nil
	}

	switch n.config.Method {
	case "osascript":
		script := fmt.Sprintf(`display notification %q with title %q`, message, title)
		return exec.Command("osascript", "-e", script).Run()
	case "notify-send":
		return exec.Command("notify-send", title, message).Run()
	default:
		n.logger.Warn("Unknown notification method", zap.String("method", n.config.Method))
		return nil
	}
}

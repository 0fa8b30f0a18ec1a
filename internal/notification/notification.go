package notification

import (
	"context"
	"log/slog"
	"time"
)

// Severity levels for member notifications.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
)

// Topics used by the engine.
const (
	TopicDeposit = "deposit"
	TopicCashout = "cashout"
)

// Notification informs a member about money-movement progress.
type Notification struct {
	ID          string    `json:"id"`
	MemberID    string    `json:"member_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Severity    string    `json:"severity"`
	Topic       string    `json:"topic,omitempty"`
	Link        string    `json:"link,omitempty"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}

// Notifier delivers notifications to members.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// LoggerNotifier writes notifications to the structured logger only. Used in
// tests and as a fallback when no repository is configured.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the notification to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, msg Notification) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		"member_id", msg.MemberID,
		"title", msg.Title,
		"description", msg.Description,
		"severity", msg.Severity,
		"topic", msg.Topic,
	)
	return nil
}

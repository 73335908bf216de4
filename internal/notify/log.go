package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier writes messages to the log instead of sending them. Used when SMTP is not configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier returns a LogNotifier. A nil logger discards messages.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Send logs the message.
func (notifier *LogNotifier) Send(_ context.Context, message Message) error {
	if err := validateMessage(message); err != nil {
		return err
	}
	notifier.logger.Info("notification",
		zap.String("to", message.To),
		zap.String("subject", message.Subject),
		zap.String("body", message.HTMLBody),
	)
	return nil
}

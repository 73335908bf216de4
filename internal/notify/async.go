package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultSendTimeout = 30 * time.Second

// AsyncNotifier hands messages to a background goroutine so callers never wait on delivery.
// Failures are logged and dropped.
type AsyncNotifier struct {
	next      Notifier
	logger    *zap.Logger
	timeout   time.Duration
	waitGroup sync.WaitGroup
}

// NewAsyncNotifier wraps next.
func NewAsyncNotifier(next Notifier, logger *zap.Logger) *AsyncNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AsyncNotifier{next: next, logger: logger, timeout: defaultSendTimeout}
}

// Send schedules delivery and returns immediately.
func (notifier *AsyncNotifier) Send(ctx context.Context, message Message) error {
	if err := validateMessage(message); err != nil {
		return err
	}
	detached := context.WithoutCancel(ctx)
	notifier.waitGroup.Add(1)
	go func() {
		defer notifier.waitGroup.Done()
		sendCtx, cancel := context.WithTimeout(detached, notifier.timeout)
		defer cancel()
		if err := notifier.next.Send(sendCtx, message); err != nil {
			notifier.logger.Warn("notification delivery failed",
				zap.String("to", message.To),
				zap.String("subject", message.Subject),
				zap.Error(err),
			)
		}
	}()
	return nil
}

// Wait blocks until every scheduled delivery has finished.
func (notifier *AsyncNotifier) Wait() {
	notifier.waitGroup.Wait()
}

// Package obslog adapts credit ledger operation callbacks to zap.
package obslog

import (
	"context"

	"github.com/MarkoPoloResearchLab/internboard/pkg/credits"
	"go.uber.org/zap"
)

const statusError = "error"

type requestIDKey struct{}

// WithRequestID attaches a request id that LogOperation includes in every entry.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the request id stored on ctx.
func RequestID(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDKey{}).(string)
	return requestID
}

// OperationLogger writes credits.OperationLog entries to zap.
type OperationLogger struct {
	logger *zap.Logger
}

// NewOperationLogger returns a logger; a nil zap logger discards entries.
func NewOperationLogger(logger *zap.Logger) *OperationLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OperationLogger{logger: logger}
}

// LogOperation implements credits.OperationLogger.
func (operationLogger *OperationLogger) LogOperation(ctx context.Context, entry credits.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("account_id", entry.AccountID.String()),
		zap.Int64("amount", entry.Amount),
		zap.Int64("balance", entry.Balance),
		zap.String("status", entry.Status),
	}
	if entry.Reference != "" {
		fields = append(fields, zap.String("reference", entry.Reference))
	}
	if requestID := RequestID(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if entry.Status == statusError {
		operationLogger.logger.Warn("credit operation failed", append(fields, zap.Error(entry.Error))...)
		return
	}
	operationLogger.logger.Info("credit operation", fields...)
}

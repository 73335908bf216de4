package obslog

import (
	"context"
	"errors"
	"testing"

	"github.com/MarkoPoloResearchLab/internboard/pkg/credits"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogOperationWritesFields(test *testing.T) {
	test.Parallel()
	core, recorded := observer.New(zapcore.InfoLevel)
	operationLogger := NewOperationLogger(zap.New(core))
	accountID := mustAccountID(test, "0b8a7e0e-2f55-4c1c-9d44-7d2d1f2f9a10")
	ctx := WithRequestID(context.Background(), "req-1")

	operationLogger.LogOperation(ctx, credits.OperationLog{
		Operation: "apply_debit",
		AccountID: accountID,
		Amount:    -1,
		Balance:   4,
		Reference: "internship-1",
		Status:    "ok",
	})

	entries := recorded.All()
	if len(entries) != 1 {
		test.Fatalf("expected one entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != zapcore.InfoLevel {
		test.Fatalf("expected info level, got %s", entry.Level)
	}
	fields := entry.ContextMap()
	if fields["operation"] != "apply_debit" || fields["account_id"] != accountID.String() || fields["request_id"] != "req-1" {
		test.Fatalf("unexpected fields %+v", fields)
	}
	if fields["balance"] != int64(4) || fields["reference"] != "internship-1" {
		test.Fatalf("unexpected fields %+v", fields)
	}
}

func TestLogOperationWarnsOnError(test *testing.T) {
	test.Parallel()
	core, recorded := observer.New(zapcore.InfoLevel)
	operationLogger := NewOperationLogger(zap.New(core))

	operationLogger.LogOperation(context.Background(), credits.OperationLog{
		Operation: "hire_debit",
		AccountID: mustAccountID(test, "0b8a7e0e-2f55-4c1c-9d44-7d2d1f2f9a10"),
		Status:    "error",
		Error:     errors.New("insufficient credits"),
	})

	entries := recorded.FilterMessage("credit operation failed").All()
	if len(entries) != 1 || entries[0].Level != zapcore.WarnLevel {
		test.Fatalf("expected one warning, got %+v", recorded.All())
	}
	if _, ok := entries[0].ContextMap()["request_id"]; ok {
		test.Fatalf("request id must be omitted when absent")
	}
}

func TestNilLoggerDiscards(test *testing.T) {
	test.Parallel()
	NewOperationLogger(nil).LogOperation(context.Background(), credits.OperationLog{Operation: "refill"})
}

func mustAccountID(test *testing.T, raw string) credits.AccountID {
	test.Helper()
	accountID, err := credits.NewAccountID(raw)
	if err != nil {
		test.Fatalf("account id: %v", err)
	}
	return accountID
}

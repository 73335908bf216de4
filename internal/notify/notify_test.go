package notify

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingNotifier struct {
	mutex    sync.Mutex
	messages []Message
	err      error
}

func (notifier *recordingNotifier) Send(_ context.Context, message Message) error {
	notifier.mutex.Lock()
	defer notifier.mutex.Unlock()
	notifier.messages = append(notifier.messages, message)
	return notifier.err
}

func TestSMTPNotifierRendersMessage(test *testing.T) {
	test.Parallel()
	notifier, err := NewSMTPNotifier(SMTPConfig{Host: "mail.example.com", Port: 587, Username: "bot", Password: "secret", From: "noreply@example.com"})
	if err != nil {
		test.Fatalf("smtp notifier: %v", err)
	}
	var (
		gotAddr string
		gotTo   []string
		gotBody string
	)
	notifier.sendMail = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotTo = to
		gotBody = string(msg)
		return nil
	}
	if err := notifier.Send(context.Background(), RegistrationMessage("ada@example.com", "123456")); err != nil {
		test.Fatalf("send: %v", err)
	}
	if gotAddr != "mail.example.com:587" {
		test.Fatalf("unexpected address %q", gotAddr)
	}
	if len(gotTo) != 1 || gotTo[0] != "ada@example.com" {
		test.Fatalf("unexpected recipients %v", gotTo)
	}
	if !strings.Contains(gotBody, "Content-Type: text/html") || !strings.Contains(gotBody, "<strong>123456</strong>") {
		test.Fatalf("unexpected body %q", gotBody)
	}
}

func TestSMTPNotifierRejectsHeaderInjection(test *testing.T) {
	test.Parallel()
	notifier, err := NewSMTPNotifier(SMTPConfig{Host: "mail.example.com", Port: 25, From: "noreply@example.com"})
	if err != nil {
		test.Fatalf("smtp notifier: %v", err)
	}
	notifier.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		test.Fatalf("send must not be attempted")
		return nil
	}
	if err := notifier.Send(context.Background(), Message{To: "a@example.com\r\nBcc: b@example.com", Subject: "x"}); err == nil {
		test.Fatalf("expected header injection to be rejected")
	}
}

func TestNewSMTPNotifierValidatesConfig(test *testing.T) {
	test.Parallel()
	testCases := []SMTPConfig{
		{Port: 25, From: "a@example.com"},
		{Host: "mail.example.com", From: "a@example.com"},
		{Host: "mail.example.com", Port: 25},
	}
	for _, config := range testCases {
		if _, err := NewSMTPNotifier(config); !errors.Is(err, ErrInvalidConfig) {
			test.Fatalf("%+v: expected ErrInvalidConfig, got %v", config, err)
		}
	}
}

func TestAsyncNotifierLogsFailures(test *testing.T) {
	test.Parallel()
	core, logs := observer.New(zap.WarnLevel)
	next := &recordingNotifier{err: errors.New("relay down")}
	notifier := NewAsyncNotifier(next, zap.New(core))

	if err := notifier.Send(context.Background(), PasswordResetMessage("ada@example.com", "654321")); err != nil {
		test.Fatalf("async send must not fail: %v", err)
	}
	notifier.Wait()

	if len(next.messages) != 1 {
		test.Fatalf("expected one delivery attempt, got %d", len(next.messages))
	}
	if logs.FilterMessage("notification delivery failed").Len() != 1 {
		test.Fatalf("expected failure to be logged, got %v", logs.All())
	}
}

func TestLogNotifierWritesMessage(test *testing.T) {
	test.Parallel()
	core, logs := observer.New(zap.InfoLevel)
	notifier := NewLogNotifier(zap.New(core))
	if err := notifier.Send(context.Background(), RegistrationMessage("ada@example.com", "111222")); err != nil {
		test.Fatalf("send: %v", err)
	}
	entries := logs.FilterField(zap.String("to", "ada@example.com")).All()
	if len(entries) != 1 {
		test.Fatalf("expected one log entry, got %d", len(entries))
	}
}

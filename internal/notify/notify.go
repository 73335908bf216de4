package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig reports an unusable notifier configuration.
var ErrInvalidConfig = errors.New("invalid notifier config")

// Message is a single HTML email.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
}

// Notifier delivers messages to users.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// RegistrationMessage carries the email verification code.
func RegistrationMessage(email string, code string) Message {
	return Message{
		To:      email,
		Subject: "Welcome to internboard! Verify your email",
		HTMLBody: fmt.Sprintf(
			"<p>Thank you for registering with internboard!</p>"+
				"<p>Your one-time password to verify your account is: <strong>%s</strong></p>"+
				"<p>This code is valid for 10 minutes.</p>",
			code,
		),
	}
}

// PasswordResetMessage carries the password reset code.
func PasswordResetMessage(email string, code string) Message {
	return Message{
		To:       email,
		Subject:  "Your password reset code",
		HTMLBody: fmt.Sprintf("<p>Your one-time password for password reset is: <strong>%s</strong></p>", code),
	}
}

func validateMessage(message Message) error {
	if strings.TrimSpace(message.To) == "" {
		return errors.New("message recipient is required")
	}
	if strings.ContainsAny(message.To, "\r\n") || strings.ContainsAny(message.Subject, "\r\n") {
		return errors.New("message headers must not contain line breaks")
	}
	return nil
}

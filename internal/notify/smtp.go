package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
)

// SMTPConfig describes the outbound mail server.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sendMailFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier sends messages through an SMTP relay. STARTTLS is used when the server offers it.
type SMTPNotifier struct {
	config   SMTPConfig
	sendMail sendMailFunc
}

// NewSMTPNotifier validates the configuration.
func NewSMTPNotifier(config SMTPConfig) (*SMTPNotifier, error) {
	if strings.TrimSpace(config.Host) == "" {
		return nil, fmt.Errorf("%w: smtp host is required", ErrInvalidConfig)
	}
	if config.Port <= 0 {
		return nil, fmt.Errorf("%w: smtp port must be positive", ErrInvalidConfig)
	}
	if strings.TrimSpace(config.From) == "" {
		return nil, fmt.Errorf("%w: sender address is required", ErrInvalidConfig)
	}
	return &SMTPNotifier{config: config, sendMail: smtp.SendMail}, nil
}

// Send delivers one message.
func (notifier *SMTPNotifier) Send(ctx context.Context, message Message) error {
	if err := validateMessage(message); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if notifier.config.Username != "" {
		auth = smtp.PlainAuth("", notifier.config.Username, notifier.config.Password, notifier.config.Host)
	}
	address := net.JoinHostPort(notifier.config.Host, strconv.Itoa(notifier.config.Port))
	if err := notifier.sendMail(address, auth, notifier.config.From, []string{message.To}, notifier.render(message)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", message.To, err)
	}
	return nil
}

func (notifier *SMTPNotifier) render(message Message) []byte {
	var builder strings.Builder
	builder.WriteString("From: " + notifier.config.From + "\r\n")
	builder.WriteString("To: " + message.To + "\r\n")
	builder.WriteString("Subject: " + message.Subject + "\r\n")
	builder.WriteString("MIME-Version: 1.0\r\n")
	builder.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	builder.WriteString("\r\n")
	builder.WriteString(message.HTMLBody)
	return []byte(builder.String())
}

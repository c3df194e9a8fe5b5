package notify

import (
	"context"
	"log/slog"
)

// Message is an outbound notification.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Notifier delivers messages to principals. Delivery is fire-and-forget
// from the caller's point of view: failures are logged, never propagated
// into the business operation.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Discard drops every message. Default when no mailer is configured.
type Discard struct{}

func (Discard) Send(context.Context, Message) error { return nil }

// Log writes messages to the service log instead of delivering them.
// Useful locally and in tests.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Send(_ context.Context, msg Message) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("outbound mail",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Body),
	)
	return nil
}

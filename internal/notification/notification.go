package notification

import (
	"context"
	"log/slog"
)

// Kind labels what a message is for so adapters can pick a template or sender.
type Kind string

// KindOTP is a registration code sent to the phone being verified.
const KindOTP Kind = "otp"

// Message is one outbound text addressed to an E.164 phone number.
type Message struct {
	Kind        Kind
	Destination string
	Body        string
}

// Notifier delivers a message to the shopper's phone.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier prints messages instead of delivering them. It backs local
// development where codes are read from the log. Outside development
// config.Load refuses a half-configured Twilio that would fall back to it.
type LoggerNotifier struct {
	logger *slog.Logger
}

func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

func (n *LoggerNotifier) Send(ctx context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.LogAttrs(ctx, slog.LevelInfo, "sms not sent, printed instead",
		slog.String("kind", string(message.Kind)),
		slog.String("to", message.Destination),
		slog.String("body", message.Body),
	)
	return nil
}

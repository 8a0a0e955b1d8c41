package notification

import (
	"context"

	"github.com/rs/zerolog"
)

// Sender delivers a rendered message.
//
//go:generate mockgen -source sender.go -destination sender_mock.go -package notification
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the log. It is used when no broker is configured.
type LogSender struct{}

// Send logs the message.
func (LogSender) Send(ctx context.Context, msg Message) error {
	zerolog.Ctx(ctx).Info().
		Str("kind", string(msg.Kind)).
		Str("from", msg.From).
		Str("to", msg.To).
		Int64("transaction_id", msg.TransactionID).
		Str("subject", msg.Subject).
		Msg("notification")

	return nil
}

// Package notifier delivers alert messages. Delivery is best-effort; the
// dispatcher decides what a failed send means for cooldown state.
package notifier

import (
	"context"

	"github.com/rs/zerolog"
)

// Notifier is the outbound channel contract.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// LogNotifier writes messages to the log instead of an external channel.
// Default when Telegram is disabled.
type LogNotifier struct {
	Log zerolog.Logger
}

var _ Notifier = LogNotifier{}

func (n LogNotifier) Send(_ context.Context, text string) error {
	n.Log.Info().Str("component", "notifier").Msg(text)
	return nil
}

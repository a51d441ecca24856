package notify

import (
	"context"

	"sjsage522/dealalert/logger"
)

// LogNotifier writes messages to the log instead of delivering them (dry runs)
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier creates a dry-run notifier
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logger.ForNotifier().WithField("dry_run", true)}
}

// SendChannel logs the broadcast
func (n *LogNotifier) SendChannel(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.log.Info().
		Str("target", "channel").
		Bool("image", msg.HasImage()).
		Str("text", msg.Text).
		Msg("Channel message")
	return nil
}

// SendUser logs the personal message
func (n *LogNotifier) SendUser(ctx context.Context, userID int64, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.log.Info().
		Int64("user_id", userID).
		Str("text", msg.Text).
		Msg("User message")
	return nil
}

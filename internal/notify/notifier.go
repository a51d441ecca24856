package notify

import "context"

// Notifier delivers messages to the broadcast channel and to individual users.
// A nil error means the message was accepted by the transport.
type Notifier interface {
	SendChannel(ctx context.Context, msg Message) error
	SendUser(ctx context.Context, userID int64, msg Message) error
}

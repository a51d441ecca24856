package publisher

import "context"

// Publisher represents a service for publishing deal events
type Publisher interface {
	// Publish publishes a message to one of the streams under key
	Publish(ctx context.Context, key string, message []byte) error

	// TrimStreams trims all streams to the configured maximum length
	TrimStreams(ctx context.Context) error

	// Close closes the publisher connection
	Close() error
}

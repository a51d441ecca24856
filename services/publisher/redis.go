package publisher

import (
	"context"
	"encoding/base64"
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/redis/go-redis/v9"

	"sjsage522/dealalert/logger"
)

// RedisPublisher implements Publisher using sharded Redis streams
type RedisPublisher struct {
	client          *redis.Client
	streamPrefix    string
	streamCount     int
	streamMaxLength int
	log             *logger.Logger
}

// NewRedisPublisher creates a new Redis publisher
func NewRedisPublisher(client *redis.Client, streamPrefix string, streamCount int, streamMaxLength int) *RedisPublisher {
	if streamCount <= 0 {
		streamCount = 1
	}
	return &RedisPublisher{
		client:          client,
		streamPrefix:    streamPrefix,
		streamCount:     streamCount,
		streamMaxLength: streamMaxLength,
		log:             logger.ForPublisher(),
	}
}

// NewRedisClient creates a Redis client for the publisher and run lock
func NewRedisClient(addr string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
}

// Stream returns the name of shard i ("deals:0" ... "deals:N-1")
func (p *RedisPublisher) Stream(i int) string {
	return p.streamPrefix + ":" + strconv.Itoa(i)
}

// Publish publishes a message to a randomly chosen stream shard.
// The message is base64 encoded before publishing.
func (p *RedisPublisher) Publish(ctx context.Context, key string, message []byte) error {
	// Encode message to base64
	encodedMessage := base64.StdEncoding.EncodeToString(message)

	// Spread events across the shards
	stream := p.Stream(rand.IntN(p.streamCount))

	// Publish to Redis
	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			key: encodedMessage,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", stream, err)
	}
	return nil
}

// TrimStreams trims every shard to the configured maximum length
func (p *RedisPublisher) TrimStreams(ctx context.Context) error {
	for i := 0; i < p.streamCount; i++ {
		stream := p.Stream(i)
		if err := p.client.XTrimMaxLen(ctx, stream, int64(p.streamMaxLength)).Err(); err != nil {
			return fmt.Errorf("trim %s: %w", stream, err)
		}
	}
	p.log.Debug().Int("streams", p.streamCount).Msg("Trimmed streams")
	return nil
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

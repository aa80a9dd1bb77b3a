package notification

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	wagerChannelPrefix = "wager:"
	userChannelPrefix  = "user:"
	publishTimeout     = 2 * time.Second
)

// RedisEmitter publishes events to Redis pub/sub channels, one per wager room
// and one per user. The socket gateway subscribes to these channels and fans
// the messages out to connected clients.
type RedisEmitter struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisEmitter constructs a Redis-backed emitter.
func NewRedisEmitter(client *redis.Client, logger *slog.Logger) *RedisEmitter {
	return &RedisEmitter{client: client, logger: logger}
}

// Emit publishes the event to the wager room channel and, when the event
// names a user, to that user's personal channel. Failures are logged and
// dropped.
func (e *RedisEmitter) Emit(ctx context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		e.logger.Warn("encode wager event", slog.String("event", event.Name), slog.Any("error", err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := e.client.Publish(ctx, wagerChannelPrefix+event.WagerID, payload).Err(); err != nil {
		e.logger.Warn("publish wager event",
			slog.String("event", event.Name),
			slog.String("wager_id", event.WagerID),
			slog.Any("error", err))
	}
	if event.UserID != "" {
		if err := e.client.Publish(ctx, userChannelPrefix+event.UserID, payload).Err(); err != nil {
			e.logger.Warn("publish user event",
				slog.String("event", event.Name),
				slog.String("user_id", event.UserID),
				slog.Any("error", err))
		}
	}
}

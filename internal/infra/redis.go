package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// LimitBoardChannel carries limit board messages between API instances.
const LimitBoardChannel = "lotto:limit-board"

// ConnectRedis parses url and pings the server.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// boardEnvelope is the pub/sub wire format: the room plus the already encoded
// WSMessage, so subscribers forward it without re-marshalling.
type boardEnvelope struct {
	Room    string          `json:"room"`
	Message json.RawMessage `json:"message"`
}

func encodeEnvelope(room, event string, data interface{}) ([]byte, error) {
	msg, err := json.Marshal(WSMessage{Event: event, Data: data})
	if err != nil {
		return nil, err
	}
	return json.Marshal(boardEnvelope{Room: room, Message: msg})
}

// RedisBroadcaster publishes hub messages on a Redis channel.
type RedisBroadcaster struct {
	client  *redis.Client
	channel string
}

// NewRedisBroadcaster creates a broadcaster on channel.
func NewRedisBroadcaster(client *redis.Client, channel string) *RedisBroadcaster {
	return &RedisBroadcaster{client: client, channel: channel}
}

func (b *RedisBroadcaster) Broadcast(ctx context.Context, room, event string, data interface{}) error {
	payload, err := encodeEnvelope(room, event, data)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// RunRedisSubscriber forwards messages from channel to the local hub until
// ctx is cancelled.
func RunRedisSubscriber(ctx context.Context, client *redis.Client, channel string, hub *WSHub, logger *slog.Logger) {
	sub := client.Subscribe(ctx, channel)
	ch := sub.Channel()
	logger.Info("limit board subscriber started", "channel", channel)

	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				logger.Info("limit board subscriber stopped")
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env boardEnvelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					logger.Warn("limit board message dropped", "error", err)
					continue
				}
				hub.deliver(env.Room, env.Message)
			}
		}
	}()
}

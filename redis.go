package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisRelay fans stored Readings out through a Redis pub/sub channel, so
// every relay instance subscribed to it pushes the same live stream to its
// WebSocket clients. Redis is never read back into the Store.
type RedisRelay struct {
	rdb     *redis.Client
	channel string
	hub     *Hub
	logger  *zap.Logger
}

// NewRedisRelay creates a relay publishing on channel and forwarding to hub.
func NewRedisRelay(rdb *redis.Client, channel string, hub *Hub, logger *zap.Logger) *RedisRelay {
	return &RedisRelay{
		rdb:     rdb,
		channel: channel,
		hub:     hub,
		logger:  logger.Named("redis"),
	}
}

// Publish sends r to the channel. When Redis is unreachable the reading is
// broadcast to this instance's hub directly and the publish error is still
// returned.
func (r *RedisRelay) Publish(ctx context.Context, reading Reading) error {
	payload, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("encoding reading: %w", err)
	}
	if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		r.hub.Broadcast(payload)
		return fmt.Errorf("publishing to %s: %w", r.channel, err)
	}
	return nil
}

// Start subscribes to the channel and waits for the subscription to be
// confirmed. Messages are then forwarded to the hub in the background until
// ctx is done.
func (r *RedisRelay) Start(ctx context.Context) error {
	pubsub := r.rdb.Subscribe(ctx, r.channel)

	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("subscribing to %s: %w", r.channel, err)
	}
	r.logger.Info("subscribed", zap.String("channel", r.channel))

	go r.forward(ctx, pubsub)
	return nil
}

// forward passes published Readings to the hub, skipping payloads that do
// not decode as a Reading.
func (r *RedisRelay) forward(ctx context.Context, pubsub *redis.PubSub) {
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var reading Reading
			if err := json.Unmarshal([]byte(msg.Payload), &reading); err != nil {
				r.logger.Error("error decoding reading payload", zap.Error(err))
				continue
			}
			r.logger.Debug("forwarding reading", zap.Object("reading", reading))
			r.hub.Broadcast([]byte(msg.Payload))
		case <-ctx.Done():
			return
		}
	}
}

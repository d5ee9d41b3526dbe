package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroadcaster relays events through a Redis channel so every instance
// delivers them to its own subscribers.
type RedisBroadcaster struct {
	client  *redis.Client
	channel string
	local   *Dispatcher
	logger  *zap.Logger
}

// RedisBroadcasterConfig describes the Redis relay.
type RedisBroadcasterConfig struct {
	Client  *redis.Client
	Channel string
	Local   *Dispatcher
	Logger  *zap.Logger
}

// NewRedisBroadcaster constructs a relay publishing to cfg.Channel. Call Run to deliver remote events locally.
func NewRedisBroadcaster(cfg RedisBroadcasterConfig) (*RedisBroadcaster, error) {
	if cfg.Client == nil {
		return nil, errors.New("chat: redis client is required")
	}
	if cfg.Channel == "" {
		return nil, errors.New("chat: redis channel is required")
	}
	if cfg.Local == nil {
		return nil, errors.New("chat: local dispatcher is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBroadcaster{
		client:  cfg.Client,
		channel: cfg.Channel,
		local:   cfg.Local,
		logger:  logger,
	}, nil
}

// Broadcast publishes event to the shared channel. Local delivery happens when Run receives it back.
func (b *RedisBroadcaster) Broadcast(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("chat: encode event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("chat: publish event: %w", err)
	}
	return nil
}

// Run forwards events from the shared channel to local subscribers until ctx ends.
func (b *RedisBroadcaster) Run(ctx context.Context) error {
	subscription := b.client.Subscribe(ctx, b.channel)
	defer subscription.Close()

	if _, err := subscription.Receive(ctx); err != nil {
		return fmt.Errorf("chat: subscribe %s: %w", b.channel, err)
	}
	b.logger.Info("chat relay subscribed", zap.String("channel", b.channel))

	messages := subscription.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case message, ok := <-messages:
			if !ok {
				return nil
			}
			var event Event
			if err := json.Unmarshal([]byte(message.Payload), &event); err != nil {
				b.logger.Warn("chat relay dropped malformed event", zap.Error(err))
				continue
			}
			b.local.Publish(event)
		}
	}
}

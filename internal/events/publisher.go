package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"synapse-project-api/internal/config"
)

// NewPublisher builds the publisher selected by cfg.Driver.
func NewPublisher(ctx context.Context, cfg config.EventsConfig, logger *zap.Logger) (Publisher, error) {
	switch cfg.Driver {
	case "", "log":
		return NewLogPublisher(logger), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		logger.Info("Publishing events to Redis",
			zap.String("addr", cfg.RedisAddr),
			zap.String("channel_prefix", cfg.ChannelPrefix))
		return NewRedisPublisher(client, cfg.ChannelPrefix), nil
	}
	return nil, fmt.Errorf("unsupported events driver %q", cfg.Driver)
}

// LogPublisher writes events to the log. It is the default for local runs
// where no bus is available.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, ev Event) error {
	p.logger.Info("Event published",
		zap.String("topic", ev.Topic),
		zap.String("event_id", ev.ID.String()),
		zap.Any("payload", ev.Payload))
	return nil
}

func (p *LogPublisher) Ping(context.Context) error { return nil }

func (p *LogPublisher) Close() error { return nil }

// RedisPublisher publishes JSON encoded events on the Redis channel named
// prefix+topic.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: prefix}
}

func (p *RedisPublisher) Channel(topic string) string {
	return fmt.Sprintf("%s%s", p.prefix, topic)
}

func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", ev.ID, err)
	}
	if err := p.client.Publish(ctx, p.Channel(ev.Topic), data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Topic, err)
	}
	return nil
}

func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

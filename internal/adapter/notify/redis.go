package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Arielutooo/restaurant-app/internal/config"
	"github.com/Arielutooo/restaurant-app/internal/logger"
	"github.com/Arielutooo/restaurant-app/internal/models"
)

// Redis publishes notifications on pub/sub channels named exactly like the
// logical channels, so order:<id>, staff:<role> and table:<id> can be
// subscribed to directly.
type Redis struct {
	client *redis.Client
	logger *logger.Logger
}

func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

func NewRedis(client *redis.Client, log *logger.Logger) *Redis {
	return &Redis{client: client, logger: log}
}

func (r *Redis) Publish(ctx context.Context, channel, event string, payload interface{}) error {
	n, err := models.NewNotification(channel, event, payload)
	if err != nil {
		return err
	}
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	receivers, err := r.client.Publish(ctx, channel, body).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	r.logger.Debug("redis_published", "Notification published", "", map[string]interface{}{
		"channel":   channel,
		"event":     event,
		"receivers": receivers,
	})
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// Subscribe streams notifications from channels matching the given
// patterns until ctx ends. Undecodable messages are logged and skipped.
func Subscribe(ctx context.Context, client *redis.Client, log *logger.Logger, handle func(context.Context, *models.Notification) error, patterns ...string) error {
	sub := client.PSubscribe(ctx, patterns...)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var n models.Notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				log.Warn("redis_message_invalid", "Skipping undecodable notification", "", map[string]interface{}{
					"channel": msg.Channel,
					"error":   err.Error(),
				})
				continue
			}
			if err := handle(ctx, &n); err != nil {
				log.Error("redis_message_failed", "Failed to handle notification", "", err, map[string]interface{}{
					"channel": msg.Channel,
				})
			}
		}
	}
}

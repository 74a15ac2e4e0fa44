package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ShopChat/config"

	"github.com/redis/go-redis/v9"
)

type RedisClient struct {
	Client *redis.Client
}

// NewRedisClient connects and pings the configured Redis.
func NewRedisClient(cfg *config.RedisConfig) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	// fail fast when Redis is unreachable
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Ping(ctx).Result()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis client connection test failed: %w", err)
	}

	return &RedisClient{
		Client: client,
	}, nil
}

// Close releases the connection pool.
func (r *RedisClient) Close() error {
	return r.Client.Close()
}

// SessionCache stores the current chat id of one client under
// chat:session:<clientKey>:current.
type SessionCache struct {
	client *redis.Client
	key    string
}

func (r *RedisClient) SessionCache(clientKey string) *SessionCache {
	return &SessionCache{
		client: r.Client,
		key:    fmt.Sprintf("chat:session:%s:current", clientKey),
	}
}

func (c *SessionCache) Get(ctx context.Context) (string, bool, error) {
	chatID, err := c.client.Get(ctx, c.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read session key %s: %w", c.key, err)
	}
	return chatID, chatID != "", nil
}

func (c *SessionCache) Set(ctx context.Context, chatID string) error {
	if err := c.client.Set(ctx, c.key, chatID, 0).Err(); err != nil {
		return fmt.Errorf("failed to write session key %s: %w", c.key, err)
	}
	return nil
}

func (c *SessionCache) Clear(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("failed to clear session key %s: %w", c.key, err)
	}
	return nil
}

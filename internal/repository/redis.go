package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"reservo/internal/config"
	"reservo/internal/models"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient builds a client from config. It returns nil when no address
// is configured; callers treat a nil client as "redis disabled".
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	if cfg.Address == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// DeadLetterRepository reads the list of abandoned notifications the queue
// poller pushes to redis.
type DeadLetterRepository struct {
	client *redis.Client
	key    string
}

func NewDeadLetterRepository(client *redis.Client, key string) *DeadLetterRepository {
	return &DeadLetterRepository{client: client, key: key}
}

func (r *DeadLetterRepository) Len(ctx context.Context) (int64, error) {
	if r.client == nil {
		return 0, fmt.Errorf("redis client is nil")
	}
	n, err := r.client.LLen(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count dead letters: %w", err)
	}
	return n, nil
}

// List returns up to limit entries, newest first. Entries that do not decode
// are skipped.
func (r *DeadLetterRepository) List(ctx context.Context, limit int64) ([]*models.Notification, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if limit <= 0 {
		limit = 100
	}
	vals, err := r.client.LRange(ctx, r.key, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read dead letters: %w", err)
	}

	items := make([]*models.Notification, 0, len(vals))
	for _, v := range vals {
		var n models.Notification
		if err := json.Unmarshal([]byte(v), &n); err != nil {
			continue
		}
		items = append(items, &n)
	}
	return items, nil
}

// Trim keeps only the newest keep entries.
func (r *DeadLetterRepository) Trim(ctx context.Context, keep int64) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.LTrim(ctx, r.key, 0, keep-1).Err(); err != nil {
		return fmt.Errorf("failed to trim dead letters: %w", err)
	}
	return nil
}

// Ping checks the connection to Redis.
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the client if there is one.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}

// pkg/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"smarttest/internal/models"
)

const defaultTTL = 24 * time.Hour

// ErrMiss is returned when a key is not cached.
var ErrMiss = errors.New("cache miss")

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(addr string) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &RedisCache{client: client}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func testKey(code int) string {
	return fmt.Sprintf("test:%d", code)
}

func resultsKey(code int) string {
	return fmt.Sprintf("results:%d", code)
}

func stateKey(userID int64) string {
	return fmt.Sprintf("state:%d", userID)
}

func (c *RedisCache) setJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *RedisCache) getJSON(ctx context.Context, key string, v interface{}) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		return err
	}
	return json.Unmarshal(data, v)
}

func (c *RedisCache) SetTest(ctx context.Context, test *models.Test) error {
	return c.setJSON(ctx, testKey(test.Code), test, defaultTTL)
}

func (c *RedisCache) GetTest(ctx context.Context, code int) (*models.Test, error) {
	var test models.Test
	if err := c.getJSON(ctx, testKey(code), &test); err != nil {
		return nil, err
	}
	return &test, nil
}

func (c *RedisCache) DeleteTest(ctx context.Context, code int) error {
	return c.client.Del(ctx, testKey(code), resultsKey(code)).Err()
}

// SetResults stores the final ranking of a closed test.
func (c *RedisCache) SetResults(ctx context.Context, code int, entries []models.LeaderboardEntry) error {
	return c.setJSON(ctx, resultsKey(code), entries, defaultTTL)
}

func (c *RedisCache) GetResults(ctx context.Context, code int) ([]models.LeaderboardEntry, error) {
	var entries []models.LeaderboardEntry
	if err := c.getJSON(ctx, resultsKey(code), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// SetState stores an encoded conversation state for a user.
func (c *RedisCache) SetState(ctx context.Context, userID int64, data []byte, ttl time.Duration) error {
	return c.client.Set(ctx, stateKey(userID), data, ttl).Err()
}

// GetState returns ErrMiss when the user has no stored state.
func (c *RedisCache) GetState(ctx context.Context, userID int64) ([]byte, error) {
	data, err := c.client.Get(ctx, stateKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return data, err
}

func (c *RedisCache) DeleteState(ctx context.Context, userID int64) error {
	return c.client.Del(ctx, stateKey(userID)).Err()
}

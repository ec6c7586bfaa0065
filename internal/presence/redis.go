// internal/presence/redis.go
package presence

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the hash holding accountID -> address.
const DefaultRedisKey = "presence:addresses"

// clearIfMatchScript deletes the field only if it still holds the expected address.
const clearIfMatchScript = `
if redis.call('HGET', KEYS[1], ARGV[1]) == ARGV[2] then
	return redis.call('HDEL', KEYS[1], ARGV[1])
end
return 0
`

// RedisRegistry is a Registry shared by every API instance through Redis.
type RedisRegistry struct {
	client *redis.Client
	key    string
}

var _ Registry = (*RedisRegistry)(nil)

// NewRedisRegistry creates a RedisRegistry storing addresses under key.
func NewRedisRegistry(client *redis.Client, key string) *RedisRegistry {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisRegistry{client: client, key: key}
}

// ConnectRedis opens a client and verifies it with PING.
func ConnectRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}
	return rdb, nil
}

func (r *RedisRegistry) SetAddress(ctx context.Context, accountID, address string) error {
	if err := r.client.HSet(ctx, r.key, accountID, address).Err(); err != nil {
		return fmt.Errorf("presence set %s: %w", accountID, err)
	}
	return nil
}

func (r *RedisRegistry) GetAddress(ctx context.Context, accountID string) (string, bool, error) {
	address, err := r.client.HGet(ctx, r.key, accountID).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("presence get %s: %w", accountID, err)
	}
	return address, true, nil
}

func (r *RedisRegistry) Clear(ctx context.Context, accountID string) error {
	if err := r.client.HDel(ctx, r.key, accountID).Err(); err != nil {
		return fmt.Errorf("presence clear %s: %w", accountID, err)
	}
	return nil
}

func (r *RedisRegistry) ClearIfMatch(ctx context.Context, accountID, address string) (bool, error) {
	n, err := r.client.Eval(ctx, clearIfMatchScript, []string{r.key}, accountID, address).Int64()
	if err != nil {
		return false, fmt.Errorf("presence clear-if-match %s: %w", accountID, err)
	}
	return n == 1, nil
}

package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/desertthunder/reelx/internal/session"
	"github.com/desertthunder/reelx/internal/shared"
)

// DefaultRedisKey is used when no key is configured.
const DefaultRedisKey = "reelx:session"

// RedisStorage implements [session.Storage] on a single redis key with no expiry.
type RedisStorage struct {
	client *redis.Client
	key    string
}

// NewRedisStorage wraps an existing client.
func NewRedisStorage(client *redis.Client, key string) *RedisStorage {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStorage{client: client, key: key}
}

// DialRedis connects to addr and verifies the connection with PING.
func DialRedis(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: could not connect to redis at %s: %v", shared.ErrStorage, addr, err)
	}
	return client, nil
}

func (r *RedisStorage) Load(ctx context.Context) (*session.Snapshot, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: redis get %s: %v", shared.ErrStorage, r.key, err)
	}
	return session.DecodeSnapshot(data)
}

func (r *RedisStorage) Save(ctx context.Context, snap session.Snapshot) error {
	data, err := session.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("%w: redis set %s: %v", shared.ErrStorage, r.key, err)
	}
	return nil
}

func (r *RedisStorage) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("%w: redis del %s: %v", shared.ErrStorage, r.key, err)
	}
	return nil
}

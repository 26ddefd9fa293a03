package shopping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dukerupert/smartcart/internal/model"
)

const maxFinishRetries = 5

var errNotShopper = errors.New("not the active shopper")

// RedisTracker stores sessions as JSON values under one key per household,
// so every API instance sharing the Redis sees the same shopper.
type RedisTracker struct {
	client redis.UniversalClient
	prefix string

	// beforeCommit runs between the ownership check and the delete.
	beforeCommit func()
}

// RedisConfig selects the Redis server. An empty Addr means sessions are
// kept in process memory instead.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// NewRedisClient connects and pings the server.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func NewRedisTracker(client redis.UniversalClient, prefix string) *RedisTracker {
	if prefix == "" {
		prefix = "smartcart"
	}
	return &RedisTracker{client: client, prefix: prefix}
}

func (t *RedisTracker) key(householdID int64) string {
	return fmt.Sprintf("%s:shopping:%d", t.prefix, householdID)
}

func (t *RedisTracker) Start(ctx context.Context, householdID int64, shopper model.Shopper) (bool, error) {
	data, err := json.Marshal(shopper)
	if err != nil {
		return false, fmt.Errorf("marshal shopper: %w", err)
	}
	ok, err := t.client.SetNX(ctx, t.key(householdID), data, 0).Result()
	if err != nil {
		return false, fmt.Errorf("start shopping: %w", err)
	}
	return ok, nil
}

func (t *RedisTracker) Current(ctx context.Context, householdID int64) (*model.Shopper, error) {
	data, err := t.client.Get(ctx, t.key(householdID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get shopper: %w", err)
	}
	var s model.Shopper
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode shopper: %w", err)
	}
	return &s, nil
}

// Finish deletes the session under WATCH so a concurrent restart by another
// member is never removed.
func (t *RedisTracker) Finish(ctx context.Context, householdID, userID int64) (bool, error) {
	key := t.key(householdID)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return errNotShopper
		}
		if err != nil {
			return err
		}
		var s model.Shopper
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode shopper: %w", err)
		}
		if s.UserID != userID {
			return errNotShopper
		}
		if t.beforeCommit != nil {
			t.beforeCommit()
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}

	for i := 0; i < maxFinishRetries; i++ {
		err := t.client.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, errNotShopper):
			return false, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return false, fmt.Errorf("finish shopping: %w", err)
		}
	}
	return false, fmt.Errorf("finish shopping: %w", redis.TxFailedErr)
}

func (t *RedisTracker) Clear(ctx context.Context, householdID int64) error {
	if err := t.client.Del(ctx, t.key(householdID)).Err(); err != nil {
		return fmt.Errorf("clear shopping: %w", err)
	}
	return nil
}

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"controller-eligibility-backend/config"
)

// RedisQueue is a Queue backed by a redis list, so tasks survive process
// restarts and can be consumed by a separate worker deployment.
type RedisQueue struct {
	rdb *goredis.Client
	key string
}

// NewRedisQueue connects to redis and verifies the connection with a ping.
func NewRedisQueue(cfg *config.RedisConfig) (*RedisQueue, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		DialTimeout: time.Duration(cfg.DialTimeoutSeconds) * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.DialTimeoutSeconds)*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisQueue{rdb: rdb, key: cfg.QueueKey}, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, t Task) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	if err := q.rdb.LPush(ctx, q.key, raw).Err(); err != nil {
		return fmt.Errorf("redis lpush: %w", err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, wait time.Duration) (*Task, error) {
	res, err := q.rdb.BRPop(ctx, wait, q.key).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis brpop: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("redis brpop: unexpected reply length %d", len(res))
	}

	var t Task
	if err := json.Unmarshal([]byte(res[1]), &t); err != nil {
		return nil, fmt.Errorf("invalid task payload: %w", err)
	}
	return &t, nil
}

func (q *RedisQueue) Close() error {
	return q.rdb.Close()
}

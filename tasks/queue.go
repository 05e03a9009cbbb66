package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrEmpty is returned by Pop when no task arrived before the timeout.
var ErrEmpty = errors.New("tasks: queue empty")

// Queue moves task payloads between the API, scheduler and worker.
type Queue interface {
	Push(ctx context.Context, queue string, payload interface{}) error
	Pop(ctx context.Context, timeout time.Duration, queues ...string) (queue, payload string, err error)
	Publish(ctx context.Context, channel string, payload interface{}) error
}

// RedisQueue implements Queue with Redis lists: LPUSH to enqueue, BRPOP to
// dequeue.
type RedisQueue struct {
	RDB *redis.Client
}

func NewRedisQueue(rdb *redis.Client) *RedisQueue {
	return &RedisQueue{RDB: rdb}
}

func (q *RedisQueue) Push(ctx context.Context, queue string, payload interface{}) error {
	s, err := Marshal(payload)
	if err != nil {
		return err
	}
	return q.RDB.LPush(ctx, queue, s).Err()
}

func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration, queues ...string) (string, string, error) {
	result, err := q.RDB.BRPop(ctx, timeout, queues...).Result()
	if errors.Is(err, redis.Nil) {
		return "", "", ErrEmpty
	}
	if err != nil {
		return "", "", err
	}
	// result[0] is the queue name, result[1] is the payload
	return result[0], result[1], nil
}

func (q *RedisQueue) Publish(ctx context.Context, channel string, payload interface{}) error {
	s, err := Marshal(payload)
	if err != nil {
		return err
	}
	return q.RDB.Publish(ctx, channel, s).Err()
}

package tasks

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue is an in-process Queue for single-binary runs and tests.
// Queues are FIFO like the Redis LPUSH/BRPOP pair.
type MemoryQueue struct {
	mu        sync.Mutex
	queues    map[string][]string
	published map[string][]string
	signal    chan struct{}
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		queues:    make(map[string][]string),
		published: make(map[string][]string),
		signal:    make(chan struct{}, 1),
	}
}

func (q *MemoryQueue) Push(ctx context.Context, queue string, payload interface{}) error {
	s, err := Marshal(payload)
	if err != nil {
		return err
	}
	q.mu.Lock()
	q.queues[queue] = append(q.queues[queue], s)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return nil
}

func (q *MemoryQueue) Pop(ctx context.Context, timeout time.Duration, queues ...string) (string, string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if name, payload, ok := q.take(queues); ok {
			return name, payload, nil
		}
		select {
		case <-ctx.Done():
			return "", "", ctx.Err()
		case <-timer.C:
			return "", "", ErrEmpty
		case <-q.signal:
		}
	}
}

func (q *MemoryQueue) take(queues []string) (string, string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, name := range queues {
		if items := q.queues[name]; len(items) > 0 {
			q.queues[name] = items[1:]
			return name, items[0], true
		}
	}
	return "", "", false
}

func (q *MemoryQueue) Publish(ctx context.Context, channel string, payload interface{}) error {
	s, err := Marshal(payload)
	if err != nil {
		return err
	}
	q.mu.Lock()
	q.published[channel] = append(q.published[channel], s)
	q.mu.Unlock()
	return nil
}

// Pending returns the payloads waiting on queue.
func (q *MemoryQueue) Pending(queue string) []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.queues[queue]...)
}

// Published returns the messages sent to channel.
func (q *MemoryQueue) Published(channel string) []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.published[channel]...)
}

package gojob

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

// MemoryQueue is a process-local go-job queue. Messages carrying an
// idempotency key with the drop policy are ignored while an equal key is
// still pending or in flight.
type MemoryQueue struct {
	mu         sync.Mutex
	pending    []*memoryEntry
	inflight   map[string]struct{}
	deadLetter []*job.ExecutionMessage
	now        func() time.Time
}

type memoryEntry struct {
	msg       *job.ExecutionMessage
	notBefore time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		inflight: map[string]struct{}{},
		now:      time.Now,
	}
}

func (q *MemoryQueue) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	if msg == nil {
		return fmt.Errorf("gojob: execution message is required")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if key := dropKey(msg); key != "" {
		if _, busy := q.inflight[key]; busy {
			return nil
		}
		for _, entry := range q.pending {
			if dropKey(entry.msg) == key {
				return nil
			}
		}
	}
	q.pending = append(q.pending, &memoryEntry{msg: msg})
	return nil
}

// Dequeue returns the first ready message, or nil when none is ready.
func (q *MemoryQueue) Dequeue(ctx context.Context) (queue.Delivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	for i, entry := range q.pending {
		if entry.notBefore.After(now) {
			continue
		}
		q.pending = append(q.pending[:i], q.pending[i+1:]...)
		if key := dropKey(entry.msg); key != "" {
			q.inflight[key] = struct{}{}
		}
		return &memoryDelivery{queue: q, msg: entry.msg}, nil
	}
	return nil, nil
}

func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *MemoryQueue) DeadLetters() []*job.ExecutionMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*job.ExecutionMessage(nil), q.deadLetter...)
}

func (q *MemoryQueue) settle(msg *job.ExecutionMessage, opts *queue.NackOptions) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if key := dropKey(msg); key != "" {
		delete(q.inflight, key)
	}
	switch {
	case opts == nil:
	case opts.DeadLetter:
		q.deadLetter = append(q.deadLetter, msg)
	case opts.Requeue:
		q.pending = append(q.pending, &memoryEntry{msg: msg, notBefore: q.now().Add(opts.Delay)})
	}
}

func dropKey(msg *job.ExecutionMessage) string {
	if msg == nil || msg.DedupPolicy != job.DeduplicationPolicy("drop") {
		return ""
	}
	return strings.TrimSpace(msg.IdempotencyKey)
}

type memoryDelivery struct {
	queue *MemoryQueue
	msg   *job.ExecutionMessage
	once  sync.Once
}

func (d *memoryDelivery) Message() *job.ExecutionMessage {
	return d.msg
}

func (d *memoryDelivery) Ack(context.Context) error {
	d.once.Do(func() { d.queue.settle(d.msg, nil) })
	return nil
}

func (d *memoryDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	d.once.Do(func() { d.queue.settle(d.msg, &opts) })
	return nil
}

var (
	_ queue.Enqueuer = (*MemoryQueue)(nil)
	_ queue.Dequeuer = (*MemoryQueue)(nil)
)

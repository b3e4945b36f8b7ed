package queue

import (
	"context"
	"time"

	"mailqueue/internal/models"
)

// MemoryQueue is the in-process fast path in front of the store: a bounded,
// concurrency-safe FIFO of claimed-to-be-delivered jobs. Losing its contents
// loses nothing, because every job in it is also persisted as pending.
type MemoryQueue struct {
	ch chan *models.Job
}

const DefaultQueueCapacity = 1024

func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &MemoryQueue{ch: make(chan *models.Job, capacity)}
}

// Push adds a job without blocking. Returns false when the queue is full;
// the job is not lost, workers will reach it through the store fallback.
func (q *MemoryQueue) Push(job *models.Job) bool {
	select {
	case q.ch <- job:
		return true
	default:
		return false
	}
}

// Pop waits up to timeout for a job. Returns (nil, false) on timeout or
// context cancellation so the caller can fall back to the store.
func (q *MemoryQueue) Pop(ctx context.Context, timeout time.Duration) (*models.Job, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case job := <-q.ch:
		return job, true
	case <-timer.C:
		return nil, false
	case <-ctx.Done():
		return nil, false
	}
}

// Len is the number of jobs currently buffered.
func (q *MemoryQueue) Len() int { return len(q.ch) }

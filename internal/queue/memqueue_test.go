package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailqueue/internal/models"
)

func queueJob(t *testing.T) *models.Job {
	t.Helper()
	job, err := models.NewJob([]string{"a@example.com"}, "hi", "body", "", "", nil, 3)
	require.NoError(t, err)
	return job
}

func TestMemoryQueueFIFO(t *testing.T) {
	q := NewMemoryQueue(8)
	ctx := context.Background()

	first := queueJob(t)
	second := queueJob(t)

	assert.True(t, q.Push(first))
	assert.True(t, q.Push(second))
	assert.Equal(t, 2, q.Len())

	got, ok := q.Pop(ctx, time.Second)
	require.True(t, ok)
	assert.Equal(t, first.ID, got.ID)

	got, ok = q.Pop(ctx, time.Second)
	require.True(t, ok)
	assert.Equal(t, second.ID, got.ID)
	assert.Equal(t, 0, q.Len())
}

func TestMemoryQueuePopTimeout(t *testing.T) {
	q := NewMemoryQueue(8)

	start := time.Now()
	got, ok := q.Pop(context.Background(), 20*time.Millisecond)
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestMemoryQueuePopCancelled(t *testing.T) {
	q := NewMemoryQueue(8)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, ok := q.Pop(ctx, time.Minute)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestMemoryQueueBoundedPush(t *testing.T) {
	q := NewMemoryQueue(2)

	assert.True(t, q.Push(queueJob(t)))
	assert.True(t, q.Push(queueJob(t)))
	assert.False(t, q.Push(queueJob(t)), "push must not block when full")
	assert.Equal(t, 2, q.Len())
}

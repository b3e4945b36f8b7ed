package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"mailqueue/internal/models"
)

var _ JobStore = (*Memory)(nil)

// Memory is a fully in-memory JobStore. Safe for concurrent access.
// Claims are made conditional under the store lock, so NextPending gives
// the same no-double-claim guarantee as the SQL store. Intended for unit
// testing and embedded use.
type Memory struct {
	mu   sync.RWMutex
	jobs map[string]*models.Job
}

func NewMemory() *Memory {
	return &Memory{jobs: make(map[string]*models.Job)}
}

func (m *Memory) Create(_ context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[job.ID]; exists {
		return storeErr("create", errors.New("duplicate job id"))
	}
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *Memory) Update(_ context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[job.ID]; !exists {
		return storeErr("update", ErrNotFound)
	}
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *Memory) NextPending(_ context.Context) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var oldest *models.Job
	for _, j := range m.jobs {
		if j.Status != models.StatusPending {
			continue
		}
		if oldest == nil || j.CreatedAt.Before(oldest.CreatedAt) {
			oldest = j
		}
	}
	if oldest == nil {
		return nil, nil
	}

	// Claim while still holding the lock.
	oldest.MarkSending()

	cp := *oldest
	return &cp, nil
}

func (m *Memory) Claim(_ context.Context, id string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok || j.Status != models.StatusPending {
		return nil, nil
	}
	j.MarkSending()

	cp := *j
	return &cp, nil
}

func (m *Memory) AllPending(_ context.Context) ([]*models.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pending := make([]*models.Job, 0)
	for _, j := range m.jobs {
		if j.Status == models.StatusPending {
			cp := *j
			pending = append(pending, &cp)
		}
	}
	sort.Slice(pending, func(i, k int) bool {
		return pending[i].CreatedAt.Before(pending[k].CreatedAt)
	})
	return pending, nil
}

func (m *Memory) Failed(_ context.Context, limit int) ([]*models.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	failed := make([]*models.Job, 0)
	for _, j := range m.jobs {
		if j.Status == models.StatusFailed {
			cp := *j
			failed = append(failed, &cp)
		}
	}
	sort.Slice(failed, func(i, k int) bool {
		return failed[i].UpdatedAt.After(failed[k].UpdatedAt)
	})
	if limit > 0 && len(failed) > limit {
		failed = failed[:limit]
	}
	return failed, nil
}

func (m *Memory) Stats(_ context.Context) (Counts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var c Counts
	for _, j := range m.jobs {
		switch j.Status {
		case models.StatusPending:
			c.Pending++
		case models.StatusSending:
			c.Sending++
		case models.StatusSent:
			c.Sent++
		case models.StatusFailed:
			c.Failed++
		}
	}
	return c, nil
}

func (m *Memory) Cleanup(_ context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for id, j := range m.jobs {
		if j.Status.Terminal() && j.UpdatedAt.Before(olderThan) {
			delete(m.jobs, id)
			removed++
		}
	}
	return removed, nil
}

func (m *Memory) Close() {}

// Get returns a snapshot of one job, or nil if absent. Test helper.
func (m *Memory) Get(id string) *models.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[id]
	if !ok {
		return nil
	}
	cp := *j
	return &cp
}

package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailqueue/internal/models"
)

func newJob(t *testing.T) *models.Job {
	t.Helper()
	job, err := models.NewJob([]string{"a@example.com"}, "hi", "body", "", "", nil, 3)
	require.NoError(t, err)
	return job
}

func TestMemoryCreateAndUpdate(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	job := newJob(t)
	require.NoError(t, m.Create(ctx, job))
	assert.Error(t, m.Create(ctx, job), "duplicate id must be rejected")

	job.Status = models.StatusSent
	require.NoError(t, m.Update(ctx, job))
	assert.Equal(t, models.StatusSent, m.Get(job.ID).Status)

	missing := newJob(t)
	err := m.Update(ctx, missing)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryNextPendingOrder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	first := newJob(t)
	first.CreatedAt = time.Now().UTC().Add(-time.Hour)
	second := newJob(t)

	require.NoError(t, m.Create(ctx, second))
	require.NoError(t, m.Create(ctx, first))

	got, err := m.NextPending(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID, "oldest created_at claims first")
	assert.Equal(t, models.StatusSending, got.Status)
	assert.Equal(t, 1, got.Attempts)

	got, err = m.NextPending(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second.ID, got.ID)

	got, err = m.NextPending(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "no pending jobs left")
}

func TestMemoryClaim(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	job := newJob(t)
	require.NoError(t, m.Create(ctx, job))

	claimed, err := m.Claim(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, models.StatusSending, claimed.Status)

	// Second claim of the same job must miss.
	claimed, err = m.Claim(ctx, job.ID)
	require.NoError(t, err)
	assert.Nil(t, claimed)

	claimed, err = m.Claim(ctx, "no-such-id")
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestMemoryNoDoubleClaim(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	const jobs = 20
	for i := 0; i < jobs; i++ {
		require.NoError(t, m.Create(ctx, newJob(t)))
	}

	claimedIDs := make(chan string, jobs*2)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, err := m.NextPending(ctx)
				if err != nil || job == nil {
					return
				}
				claimedIDs <- job.ID
			}
		}()
	}
	wg.Wait()
	close(claimedIDs)

	seen := make(map[string]bool)
	for id := range claimedIDs {
		assert.False(t, seen[id], "job %s claimed twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, jobs)
}

func TestMemoryConcurrentClaimByID(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	job := newJob(t)
	require.NoError(t, m.Create(ctx, job))

	var wg sync.WaitGroup
	wins := make(chan struct{}, 4)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := m.Claim(ctx, job.ID)
			require.NoError(t, err)
			if claimed != nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	assert.Len(t, wins, 1, "exactly one claimer must win")
}

func TestMemoryAllPending(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	older := newJob(t)
	older.CreatedAt = time.Now().UTC().Add(-time.Minute)
	newer := newJob(t)

	require.NoError(t, m.Create(ctx, newer))
	require.NoError(t, m.Create(ctx, older))

	sent := newJob(t)
	sent.Status = models.StatusSent
	require.NoError(t, m.Create(ctx, sent))

	pending, err := m.AllPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, older.ID, pending[0].ID)
	assert.Equal(t, newer.ID, pending[1].ID)
}

func TestMemoryFailedOrderAndLimit(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		job := newJob(t)
		job.Status = models.StatusFailed
		job.UpdatedAt = time.Now().UTC().Add(time.Duration(i) * time.Minute)
		require.NoError(t, m.Create(ctx, job))
		ids = append(ids, job.ID)
	}

	failed, err := m.Failed(ctx, 2)
	require.NoError(t, err)
	require.Len(t, failed, 2)
	assert.Equal(t, ids[2], failed[0].ID, "most recent first")
	assert.Equal(t, ids[1], failed[1].ID)
}

func TestMemoryStats(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	statuses := []models.JobStatus{
		models.StatusPending, models.StatusPending,
		models.StatusSending,
		models.StatusSent, models.StatusSent, models.StatusSent,
		models.StatusFailed,
	}
	for _, s := range statuses {
		job := newJob(t)
		job.Status = s
		require.NoError(t, m.Create(ctx, job))
	}

	counts, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.Pending)
	assert.Equal(t, int64(1), counts.Sending)
	assert.Equal(t, int64(3), counts.Sent)
	assert.Equal(t, int64(1), counts.Failed)
	assert.Equal(t, int64(len(statuses)), counts.Total())
}

func TestMemoryCleanup(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	old := newJob(t)
	old.Status = models.StatusSent
	old.UpdatedAt = time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, m.Create(ctx, old))

	oldPending := newJob(t)
	oldPending.UpdatedAt = time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, m.Create(ctx, oldPending))

	fresh := newJob(t)
	fresh.Status = models.StatusFailed
	require.NoError(t, m.Create(ctx, fresh))

	removed, err := m.Cleanup(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	assert.Nil(t, m.Get(old.ID))
	assert.NotNil(t, m.Get(oldPending.ID), "non-terminal records survive cleanup")
	assert.NotNil(t, m.Get(fresh.ID))
}

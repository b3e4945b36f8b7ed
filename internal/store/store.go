package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mailqueue/internal/models"
)

// ErrNotFound is returned when an update targets an unknown job id.
var ErrNotFound = errors.New("job not found")

// StoreError wraps failures of the underlying medium so callers can tell
// persistence faults apart from domain outcomes.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// Counts holds aggregate job counts by status. The sum across statuses
// equals the total number of jobs ever created (minus cleaned-up rows).
type Counts struct {
	Pending int64 `json:"pending"`
	Sending int64 `json:"sending"`
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
}

func (c Counts) Total() int64 { return c.Pending + c.Sending + c.Sent + c.Failed }

// JobStore is the persistence boundary. The store is the durability source
// of truth; the in-process queue is only a cache in front of it.
type JobStore interface {
	// Create persists a new record in pending state.
	Create(ctx context.Context, job *models.Job) error

	// Update overwrites the record identified by job.ID with the current
	// in-memory fields. Idempotent under retries of the same state.
	Update(ctx context.Context, job *models.Job) error

	// NextPending atomically claims the oldest pending job, moving it to
	// sending and incrementing attempts as part of the same operation, so
	// two racing workers never receive the same job. Returns (nil, nil)
	// when nothing is pending.
	NextPending(ctx context.Context) (*models.Job, error)

	// Claim atomically claims one specific job if it is still pending,
	// with the same transition as NextPending. Returns (nil, nil) if the
	// job is gone or no longer pending. Used for jobs handed off through
	// the in-process queue, which may duplicate what recovery reloaded.
	Claim(ctx context.Context, id string) (*models.Job, error)

	// AllPending returns every pending job, oldest first. Used at startup
	// for crash recovery.
	AllPending(ctx context.Context) ([]*models.Job, error)

	// Failed returns up to limit failed jobs, most recent first.
	Failed(ctx context.Context, limit int) ([]*models.Job, error)

	// Stats returns aggregate counts by status.
	Stats(ctx context.Context) (Counts, error)

	// Cleanup removes terminal records older than the threshold and
	// returns how many were removed.
	Cleanup(ctx context.Context, olderThan time.Time) (int64, error)

	Close()
}

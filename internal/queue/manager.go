package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"mailqueue/internal/metrics"
	"mailqueue/internal/models"
	"mailqueue/internal/store"
	"mailqueue/internal/transport"
)

const (
	DefaultWorkers    = 3
	DefaultPopTimeout = time.Second

	// How long a worker keeps retrying a persistence write after a
	// delivery attempt before surfacing it as an operational fault.
	defaultStoreRetryWindow = 5 * time.Second
)

var ErrAlreadyRunning = errors.New("workers already running")

// Options tunes a Manager. Zero values select defaults.
type Options struct {
	Workers          int
	QueueCapacity    int
	PopTimeout       time.Duration
	RateLimit        int // delivery attempts per second, 0 = unlimited
	MaxAttempts      int // default per-job attempt budget
	StoreRetryWindow time.Duration
}

// EnqueueRequest is the caller-facing shape of a new delivery.
type EnqueueRequest struct {
	Recipients  []string          `json:"recipients"`
	Subject     string            `json:"subject"`
	Body        string            `json:"body,omitempty"`
	HTMLBody    string            `json:"html_body,omitempty"`
	TemplateID  string            `json:"template_id,omitempty"`
	Variables   map[string]string `json:"variables,omitempty"`
	MaxAttempts int               `json:"max_attempts,omitempty"`
}

// Stats combines durable counts with live queue state.
type Stats struct {
	store.Counts
	ActiveWorkers   int  `json:"active_workers"`
	Running         bool `json:"running"`
	MemoryQueueSize int  `json:"memory_queue_size"`
}

// Manager owns the delivery pipeline: it persists incoming jobs, feeds them
// to a pool of workers through the in-process queue, recovers pending work
// on start, and exposes the operational surface (stats, manual retry,
// drain, cleanup).
type Manager struct {
	store     store.JobStore
	transport transport.Transport
	queue     *MemoryQueue
	log       *zap.Logger
	limiter   *rate.Limiter
	opts      Options

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	activeWorkers atomic.Int64
	inFlight      atomic.Int64
}

func NewManager(st store.JobStore, tr transport.Transport, logger *zap.Logger, opts Options) *Manager {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.PopTimeout <= 0 {
		opts.PopTimeout = DefaultPopTimeout
	}
	if opts.StoreRetryWindow <= 0 {
		opts.StoreRetryWindow = defaultStoreRetryWindow
	}

	m := &Manager{
		store:     st,
		transport: tr,
		queue:     NewMemoryQueue(opts.QueueCapacity),
		log:       logger,
		opts:      opts,
	}
	if opts.RateLimit > 0 {
		m.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateLimit)
	}
	return m
}

// Enqueue persists a new pending job and hands it to the workers. The
// store write comes first: if it fails the job was never queued and the
// error propagates to the caller. Delivery failures after this point are
// never propagated back.
func (m *Manager) Enqueue(ctx context.Context, req EnqueueRequest) (*models.Job, error) {
	if req.MaxAttempts == 0 {
		req.MaxAttempts = m.opts.MaxAttempts
	}

	job, err := models.NewJob(
		req.Recipients,
		req.Subject,
		req.Body,
		req.HTMLBody,
		req.TemplateID,
		req.Variables,
		req.MaxAttempts,
	)
	if err != nil {
		return nil, err
	}

	if err := m.store.Create(ctx, job); err != nil {
		return nil, err
	}

	// A full queue is not an error: workers reach the job through the
	// store fallback.
	m.queue.Push(job)

	metrics.JobsEnqueued.Inc()
	metrics.QueueDepth.Set(float64(m.queue.Len()))

	m.log.Info("job enqueued",
		zap.String("job_id", job.ID),
		zap.Int("recipients", len(job.Recipients)),
	)
	return job, nil
}

// StartWorkers reloads every pending job from the store into the memory
// queue (crash recovery), then spawns n symmetric worker loops. n <= 0
// selects the configured default.
func (m *Manager) StartWorkers(ctx context.Context, n int) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.mu.Unlock()

	pending, err := m.store.AllPending(runCtx)
	if err != nil {
		m.mu.Lock()
		m.running = false
		m.cancel = nil
		m.mu.Unlock()
		cancel()
		return err
	}
	for _, job := range pending {
		m.queue.Push(job)
	}
	if len(pending) > 0 {
		m.log.Info("recovered pending jobs", zap.Int("count", len(pending)))
	}

	if n <= 0 {
		n = m.opts.Workers
	}
	for i := 0; i < n; i++ {
		m.wg.Add(1)
		go m.workerLoop(runCtx, i)
	}
	return nil
}

// StopWorkers signals shutdown and waits for every worker to exit. A
// worker that holds a claimed job finishes it first, so no job is left
// stuck in sending with no owner.
func (m *Manager) StopWorkers() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Running reports whether the worker pool is up.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Stats merges durable counts with live pipeline state.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	counts, err := m.store.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Counts:          counts,
		ActiveWorkers:   int(m.activeWorkers.Load()),
		Running:         m.Running(),
		MemoryQueueSize: m.queue.Len(),
	}, nil
}

// ListFailed returns up to limit failed jobs, most recent first.
func (m *Manager) ListFailed(ctx context.Context, limit int) ([]*models.Job, error) {
	return m.store.Failed(ctx, limit)
}

// RetryFailed requeues failed jobs that still have attempt budget left.
// Jobs that reached failed by exhausting max_attempts stay failed unless
// the caller resets attempts first. Returns how many were requeued.
func (m *Manager) RetryFailed(ctx context.Context, maxCount int) (int, error) {
	failed, err := m.store.Failed(ctx, maxCount)
	if err != nil {
		return 0, err
	}

	requeued := 0
	for _, job := range failed {
		if job.Attempts >= job.MaxAttempts {
			continue
		}
		job.Status = models.StatusPending
		job.UpdatedAt = time.Now().UTC()
		if err := m.store.Update(ctx, job); err != nil {
			m.log.Error("failed to requeue job",
				zap.String("job_id", job.ID),
				zap.Error(err),
			)
			continue
		}
		m.queue.Push(job)
		requeued++
	}
	return requeued, nil
}

// Drain blocks until the memory queue is empty, no worker holds a job,
// and the store has no non-terminal records. The store check covers the
// moment between a queue pop and the claim, which the live counters
// cannot see. Used for maintenance windows; workers keep running.
func (m *Manager) Drain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if m.queue.Len() == 0 && m.inFlight.Load() == 0 {
			counts, err := m.store.Stats(ctx)
			if err != nil {
				return err
			}
			if counts.Pending == 0 && counts.Sending == 0 {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Cleanup removes terminal records older than the threshold.
func (m *Manager) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	return m.store.Cleanup(ctx, olderThan)
}

package queue

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"mailqueue/internal/metrics"
	"mailqueue/internal/models"
)

// workerLoop is one unit of the pool. All workers are symmetric: each
// prefers the memory queue and falls back to the store when the queue
// stays empty past the pop timeout.
func (m *Manager) workerLoop(ctx context.Context, id int) {
	defer m.wg.Done()

	m.activeWorkers.Add(1)
	metrics.ActiveWorkers.Inc()
	defer func() {
		m.activeWorkers.Add(-1)
		metrics.ActiveWorkers.Dec()
	}()

	log := m.log.With(zap.Int("worker_id", id))
	log.Info("worker started")

	for {
		select {
		case <-ctx.Done():
			log.Info("worker shutting down")
			return
		default:
		}

		job, ok := m.queue.Pop(ctx, m.opts.PopTimeout)
		metrics.QueueDepth.Set(float64(m.queue.Len()))

		if ok {
			// The memory copy may be stale or duplicated by recovery;
			// only the store claim decides ownership.
			claimed, err := m.store.Claim(ctx, job.ID)
			if err != nil {
				log.Error("claim failed", zap.String("job_id", job.ID), zap.Error(err))
				metrics.StoreErrors.Inc()
				continue
			}
			if claimed == nil {
				continue
			}
			job = claimed
		} else {
			if ctx.Err() != nil {
				log.Info("worker shutting down")
				return
			}
			var err error
			job, err = m.store.NextPending(ctx)
			if err != nil {
				log.Error("store fallback failed", zap.Error(err))
				metrics.StoreErrors.Inc()
				continue
			}
			if job == nil {
				continue
			}
		}

		m.process(ctx, log, job)
	}
}

// process runs one delivery attempt for a claimed job and persists the
// outcome. Shutdown is cooperative: a claimed job is finished even if the
// pool context is cancelled mid-flight, so it is never abandoned in
// sending state.
func (m *Manager) process(ctx context.Context, log *zap.Logger, job *models.Job) {
	m.inFlight.Add(1)
	defer m.inFlight.Add(-1)

	sendCtx := context.WithoutCancel(ctx)

	if m.limiter != nil {
		if err := m.limiter.Wait(sendCtx); err != nil {
			log.Warn("rate limiter interrupted", zap.Error(err))
		}
	}

	metrics.Attempts.Inc()
	sendErr := m.transport.Send(sendCtx, job)
	next := job.Resolve(sendErr)

	// The job's state is now defined by the transport outcome but not yet
	// durable. A lost write here risks a duplicate send, so persist with
	// bounded backoff before moving on.
	if err := m.persist(sendCtx, job); err != nil {
		log.Error("failed to persist job outcome",
			zap.String("job_id", job.ID),
			zap.String("status", string(next)),
			zap.Error(err),
		)
		metrics.StoreErrors.Inc()
		return
	}

	switch next {
	case models.StatusSent:
		metrics.JobsSent.Inc()
		log.Info("job delivered",
			zap.String("job_id", job.ID),
			zap.Int("attempts", job.Attempts),
		)
	case models.StatusFailed:
		metrics.JobsFailed.Inc()
		log.Error("job failed, attempts exhausted",
			zap.String("job_id", job.ID),
			zap.Int("attempts", job.Attempts),
			zap.String("last_error", job.LastError),
		)
	case models.StatusPending:
		m.queue.Push(job)
		log.Warn("delivery attempt failed, requeued",
			zap.String("job_id", job.ID),
			zap.Int("attempts", job.Attempts),
			zap.Int("max_attempts", job.MaxAttempts),
			zap.Error(sendErr),
		)
	}
}

func (m *Manager) persist(ctx context.Context, job *models.Job) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = m.opts.StoreRetryWindow

	op := func() error { return m.store.Update(ctx, job) }
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mailqueue/internal/models"
)

var _ JobStore = (*Postgres)(nil)

// Postgres persists jobs in a mail_jobs table. NextPending claims with
// FOR UPDATE SKIP LOCKED so concurrent workers never receive the same job.
type Postgres struct {
	Pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, conn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, conn)
	if err != nil {
		return nil, storeErr("connect", err)
	}
	return &Postgres{Pool: pool}, nil
}

// Migrate creates the jobs table and the (status, created_at) index that
// NextPending and AllPending scan.
func (s *Postgres) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS mail_jobs (
			id           text PRIMARY KEY,
			recipients   text[] NOT NULL,
			subject      text NOT NULL DEFAULT '',
			body         text NOT NULL DEFAULT '',
			html_body    text NOT NULL DEFAULT '',
			template_id  text NOT NULL DEFAULT '',
			variables    jsonb NOT NULL DEFAULT '{}'::jsonb,
			status       text NOT NULL,
			attempts     int NOT NULL DEFAULT 0,
			max_attempts int NOT NULL,
			last_error   text NOT NULL DEFAULT '',
			created_at   timestamptz NOT NULL,
			updated_at   timestamptz NOT NULL,
			completed_at timestamptz
		)`,
		`CREATE INDEX IF NOT EXISTS idx_mail_jobs_status_created
			ON mail_jobs (status, created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.Pool.Exec(ctx, stmt); err != nil {
			return storeErr("migrate", err)
		}
	}
	return nil
}

func (s *Postgres) Create(ctx context.Context, job *models.Job) error {
	variables, err := json.Marshal(job.Variables)
	if err != nil {
		return storeErr("create", err)
	}

	_, err = s.Pool.Exec(ctx,
		`INSERT INTO mail_jobs
		 (id, recipients, subject, body, html_body, template_id, variables,
		  status, attempts, max_attempts, last_error, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		job.ID,
		job.Recipients,
		job.Subject,
		job.Body,
		job.HTMLBody,
		job.TemplateID,
		variables,
		job.Status,
		job.Attempts,
		job.MaxAttempts,
		job.LastError,
		job.CreatedAt,
		job.UpdatedAt,
	)
	return storeErr("create", err)
}

func (s *Postgres) Update(ctx context.Context, job *models.Job) error {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE mail_jobs
		 SET status=$1,
		     attempts=$2,
		     last_error=$3,
		     updated_at=$4,
		     completed_at=$5
		 WHERE id=$6`,
		job.Status,
		job.Attempts,
		job.LastError,
		job.UpdatedAt,
		job.CompletedAt,
		job.ID,
	)
	if err != nil {
		return storeErr("update", err)
	}
	if tag.RowsAffected() == 0 {
		return storeErr("update", ErrNotFound)
	}
	return nil
}

const jobColumns = `id, recipients, subject, body, html_body, template_id, variables,
	status, attempts, max_attempts, last_error, created_at, updated_at, completed_at`

// NextPending claims the oldest pending job. SKIP LOCKED keeps concurrent
// claimers from blocking on or receiving the same row.
func (s *Postgres) NextPending(ctx context.Context) (*models.Job, error) {
	row := s.Pool.QueryRow(ctx,
		`WITH next AS (
			SELECT id FROM mail_jobs
			WHERE status=$1
			ORDER BY created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE mail_jobs
		SET status=$2, attempts=attempts+1, updated_at=now()
		WHERE id IN (SELECT id FROM next)
		RETURNING `+jobColumns,
		models.StatusPending,
		models.StatusSending,
	)

	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("next_pending", err)
	}
	return job, nil
}

// Claim is the targeted form of NextPending: a conditional update that
// succeeds only while the row is still pending.
func (s *Postgres) Claim(ctx context.Context, id string) (*models.Job, error) {
	row := s.Pool.QueryRow(ctx,
		`UPDATE mail_jobs
		 SET status=$1, attempts=attempts+1, updated_at=now()
		 WHERE id=$2 AND status=$3
		 RETURNING `+jobColumns,
		models.StatusSending,
		id,
		models.StatusPending,
	)

	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("claim", err)
	}
	return job, nil
}

func (s *Postgres) AllPending(ctx context.Context) ([]*models.Job, error) {
	return s.queryJobs(ctx, "all_pending",
		`SELECT `+jobColumns+`
		 FROM mail_jobs
		 WHERE status=$1
		 ORDER BY created_at ASC`,
		models.StatusPending,
	)
}

func (s *Postgres) Failed(ctx context.Context, limit int) ([]*models.Job, error) {
	return s.queryJobs(ctx, "failed",
		`SELECT `+jobColumns+`
		 FROM mail_jobs
		 WHERE status=$1
		 ORDER BY updated_at DESC
		 LIMIT $2`,
		models.StatusFailed,
		limit,
	)
}

func (s *Postgres) Stats(ctx context.Context) (Counts, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT status, count(*) FROM mail_jobs GROUP BY status`)
	if err != nil {
		return Counts{}, storeErr("stats", err)
	}
	defer rows.Close()

	var c Counts
	for rows.Next() {
		var status models.JobStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return Counts{}, storeErr("stats", err)
		}
		switch status {
		case models.StatusPending:
			c.Pending = count
		case models.StatusSending:
			c.Sending = count
		case models.StatusSent:
			c.Sent = count
		case models.StatusFailed:
			c.Failed = count
		}
	}
	return c, storeErr("stats", rows.Err())
}

func (s *Postgres) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := s.Pool.Exec(ctx,
		`DELETE FROM mail_jobs
		 WHERE status = ANY($1)
		 AND updated_at < $2`,
		[]string{string(models.StatusSent), string(models.StatusFailed)},
		olderThan,
	)
	if err != nil {
		return 0, storeErr("cleanup", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Postgres) Close() {
	s.Pool.Close()
}

func (s *Postgres) queryJobs(ctx context.Context, op, query string, args ...any) ([]*models.Job, error) {
	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer rows.Close()

	jobs := make([]*models.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, storeErr(op, err)
		}
		jobs = append(jobs, job)
	}
	return jobs, storeErr(op, rows.Err())
}

func scanJob(row pgx.Row) (*models.Job, error) {
	var job models.Job
	var variables []byte

	err := row.Scan(
		&job.ID,
		&job.Recipients,
		&job.Subject,
		&job.Body,
		&job.HTMLBody,
		&job.TemplateID,
		&variables,
		&job.Status,
		&job.Attempts,
		&job.MaxAttempts,
		&job.LastError,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(variables) > 0 {
		if err := json.Unmarshal(variables, &job.Variables); err != nil {
			return nil, err
		}
	}
	return &job, nil
}

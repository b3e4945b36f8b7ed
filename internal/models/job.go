package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	StatusPending JobStatus = "pending"
	StatusSending JobStatus = "sending"
	StatusSent    JobStatus = "sent"
	StatusFailed  JobStatus = "failed"
)

// Terminal reports whether no further automatic transition occurs.
func (s JobStatus) Terminal() bool {
	return s == StatusSent || s == StatusFailed
}

const DefaultMaxAttempts = 3

var (
	ErrNoRecipients = errors.New("job must have at least one recipient")
	ErrNoContent    = errors.New("job must have a body, html body, or template")
	ErrBadAttempts  = errors.New("max attempts must be positive")
)

// Job is one outbound delivery with its own state machine. A job is
// mutated only by the worker that currently holds it; everyone else
// reads snapshots from the store.
type Job struct {
	ID         string            `json:"id"`
	Recipients []string          `json:"recipients"`
	Subject    string            `json:"subject"`
	Body       string            `json:"body,omitempty"`
	HTMLBody   string            `json:"html_body,omitempty"`
	TemplateID string            `json:"template_id,omitempty"`
	Variables  map[string]string `json:"variables,omitempty"`

	Status      JobStatus `json:"status"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
	LastError   string    `json:"last_error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewJob builds a pending job with a fresh ID. maxAttempts <= 0 selects
// the default.
func NewJob(recipients []string, subject, body, htmlBody, templateID string, variables map[string]string, maxAttempts int) (*Job, error) {
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}
	if body == "" && htmlBody == "" && templateID == "" {
		return nil, ErrNoContent
	}
	if maxAttempts == 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if maxAttempts < 0 {
		return nil, ErrBadAttempts
	}

	now := time.Now().UTC()
	return &Job{
		ID:          uuid.NewString(),
		Recipients:  recipients,
		Subject:     subject,
		Body:        body,
		HTMLBody:    htmlBody,
		TemplateID:  templateID,
		Variables:   variables,
		Status:      StatusPending,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// NextStatus decides the state after one delivery attempt has finished.
// attempts is the count including the attempt that just ran. The retry
// decision is a pure function of (attempts, maxAttempts, outcome).
func NextStatus(attempts, maxAttempts int, sendErr error) JobStatus {
	if sendErr == nil {
		return StatusSent
	}
	if attempts >= maxAttempts {
		return StatusFailed
	}
	return StatusPending
}

// MarkSending records that a worker claimed the job and an attempt is
// about to run.
func (j *Job) MarkSending() {
	j.Status = StatusSending
	j.Attempts++
	j.UpdatedAt = time.Now().UTC()
}

// Resolve applies the outcome of the attempt that just ran and returns
// the resulting status.
func (j *Job) Resolve(sendErr error) JobStatus {
	next := NextStatus(j.Attempts, j.MaxAttempts, sendErr)
	now := time.Now().UTC()

	j.Status = next
	j.UpdatedAt = now
	if sendErr != nil {
		j.LastError = sendErr.Error()
	}
	if next == StatusSent {
		j.CompletedAt = &now
	}
	return next
}

package transport

import (
	"context"
	"errors"
	"fmt"

	"mailqueue/internal/models"
)

// Transport performs the actual delivery of a job's message. Implementations
// must be safe for concurrent use by multiple workers.
type Transport interface {
	Send(ctx context.Context, job *models.Job) error
}

// TransientError marks a failure worth retrying: network timeouts, temporary
// server rejection. PermanentError marks one that will not improve on retry:
// malformed recipient, permanently rejected content.
//
// The worker retries both kinds uniformly up to the job's attempt budget; the
// classification is carried in last_error for operators.
type TransientError struct{ Err error }

func (e *TransientError) Error() string { return fmt.Sprintf("transient: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

type PermanentError struct{ Err error }

func (e *PermanentError) Error() string { return fmt.Sprintf("permanent: %v", e.Err) }
func (e *PermanentError) Unwrap() error { return e.Err }

func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

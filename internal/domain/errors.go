package domain

import (
	"errors"
	"fmt"
)

// ErrNoUsableFormat is returned when the resolver found no stream at or
// below the configured quality cap. Permanent: never retried.
var ErrNoUsableFormat = errors.New("no stream at or below quality cap")

// TransientError wraps a failure that is worth retrying with backoff,
// typically a network hiccup during resolve or chunk fetch.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient marks err as retryable. A nil err stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err (or anything it wraps) is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// MuxError reports an external muxing tool failure. Permanent: the
// command output tail is kept for the failure summary.
type MuxError struct {
	Output string
	Err    error
}

func (e *MuxError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("mux failed: %v", e.Err)
	}
	return fmt.Sprintf("mux failed: %v: %s", e.Err, e.Output)
}

func (e *MuxError) Unwrap() error { return e.Err }

// RetriesExhaustedError is the terminal form of a transient failure once
// the retry ceiling is hit. It is no longer transient.
type RetriesExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Last }

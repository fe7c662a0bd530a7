// Package pipelineerrors contains the error types returned by the stages of the ingestion pipeline.
//
// Rather than signalling the retry class through distinct error types, a FetchError carries an
// explicit Kind so that callers can branch on whether a failure is retryable with a single errors.As.
package pipelineerrors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// FailureKind distinguishes failures that are worth retrying from those that are not.
type FailureKind int

const (
	// Transient failures (network errors, timeouts, 5xx responses) may succeed if retried.
	Transient FailureKind = iota
	// Permanent failures (malformed payloads, client errors, exhausted retries) are never retried.
	Permanent
)

func (k FailureKind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Permanent:
		return "permanent"
	default:
		return fmt.Sprintf("FailureKind(%d)", int(k))
	}
}

// ErrStartup is the sentinel wrapped by errors that abort the pipeline before any job is dispatched.
var ErrStartup = errors.New("pipeline startup failed")

// FetchError is returned when the coordinates of a user could not be retrieved.
type FetchError struct {
	UserId int64
	Kind   FailureKind
	// Exhausted is set when a transient failure was turned permanent because the retry budget ran out.
	Exhausted bool
	// Attempts is the number of requests issued for this user.
	Attempts uint
	Cause    error
}

func (err *FetchError) Error() string {
	s := fmt.Sprintf("%s failure fetching location of user %d", err.Kind, err.UserId)
	if err.Exhausted {
		s += fmt.Sprintf(" after %d attempts", err.Attempts)
	}
	if err.Cause != nil {
		s += ": " + err.Cause.Error()
	}
	return s
}

func (err *FetchError) Unwrap() error {
	return err.Cause
}

// NewTransient returns a retryable FetchError.
func NewTransient(userId int64, cause error) *FetchError {
	return &FetchError{UserId: userId, Kind: Transient, Cause: cause}
}

// NewPermanent returns a non-retryable FetchError.
func NewPermanent(userId int64, cause error) *FetchError {
	return &FetchError{UserId: userId, Kind: Permanent, Cause: cause}
}

// IsTransient returns true if err, or any error it wraps, is a transient FetchError.
func IsTransient(err error) bool {
	var e *FetchError
	if errors.As(err, &e) {
		return e.Kind == Transient
	}
	return false
}

// IsPermanent returns true if err, or any error it wraps, is a permanent FetchError.
func IsPermanent(err error) bool {
	var e *FetchError
	if errors.As(err, &e) {
		return e.Kind == Permanent
	}
	return false
}

// BatchWriteError is returned when a batch could not be bulk loaded. The batch has been rolled back as a unit.
type BatchWriteError struct {
	Table string
	Rows  int
	Cause error
}

func (err *BatchWriteError) Error() string {
	return fmt.Sprintf("failed writing batch of %d rows to table %s: %v", err.Rows, err.Table, err.Cause)
}

func (err *BatchWriteError) Unwrap() error {
	return err.Cause
}

// IndexError is returned when one or more lookup indexes could not be created.
// It is never fatal: the data is already durable, only later lookups are slower.
type IndexError struct {
	Errors []error
}

func (err *IndexError) Error() string {
	msgs := make([]string, len(err.Errors))
	for i, e := range err.Errors {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("failed creating %d index(es): %s", len(err.Errors), strings.Join(msgs, "; "))
}

package errors

import (
	"errors"
	"fmt"
)

// Application-specific errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrConflict           = errors.New("resource conflict")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// SourceError represents an error returned by the source API. Fatal errors
// (revoked access, not-found, server error) terminate the stream worker;
// transient ones (rate limiting, timeouts) are retried by the client.
type SourceError struct {
	StatusCode int
	Op         string
	Err        error
	Fatal      bool
}

func (e SourceError) Error() string {
	kind := "transient"
	if e.Fatal {
		kind = "fatal"
	}
	return fmt.Sprintf("source %s error during %s (status %d): %v", kind, e.Op, e.StatusCode, e.Err)
}

func (e SourceError) Unwrap() error {
	return e.Err
}

// IsSourceFatal reports whether err is a source error that should end the worker
func IsSourceFatal(err error) bool {
	var se SourceError
	return errors.As(err, &se) && se.Fatal
}

// CacheError represents a dedup cache failure. Callers swallow it and treat
// the lookup as a miss; it exists so the swallowing site can log the cause.
type CacheError struct {
	Op  string
	Err error
}

func (e CacheError) Error() string {
	return fmt.Sprintf("cache error during %s: %v", e.Op, e.Err)
}

func (e CacheError) Unwrap() error {
	return e.Err
}

// StorageError represents a storage failure during persistence. It is
// retryable through the queue layer.
type StorageError struct {
	Operation string
	Err       error
}

func (e StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Operation, e.Err)
}

func (e StorageError) Unwrap() error {
	return e.Err
}

// PipelineError represents a failure in a named pipeline stage
type PipelineError struct {
	Worker string
	Stage  string
	Err    error
}

func (e PipelineError) Error() string {
	return fmt.Sprintf("pipeline error in %s at stage %s: %v", e.Worker, e.Stage, e.Err)
}

func (e PipelineError) Unwrap() error {
	return e.Err
}

package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrClosed        = errors.New("watcher closed")
	ErrNotSubscribed = errors.New("not subscribed")
	ErrSyncInFlight  = errors.New("sync already in flight")
)

// TransportError is a network or subscription failure. It is retryable: the
// normal poll/resubscribe cycle will pick up where it left off.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DataError is a malformed or incomplete row from the change-feed or a
// snapshot query. It is not retryable; the offending row is skipped.
type DataError struct {
	Table string
	Err   error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("data: table %s: %v", e.Table, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

// ConsistencyError signals derived state that violates an invariant, such as
// a crossed book or an auction end time moving backwards. The previous good
// state is retained; the error is surfaced as a warning.
type ConsistencyError struct {
	Detail string
}

func (e *ConsistencyError) Error() string {
	return "consistency: " + e.Detail
}

// TimeoutError is an external call that exceeded its budget. Treated as a
// TransportError for retry purposes.
type TimeoutError struct {
	Op     string
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout: %s exceeded %s", e.Op, e.Budget)
}

// Retryable reports whether err is transient and will be resolved by the
// normal refresh cycle.
func Retryable(err error) bool {
	var te *TransportError
	var to *TimeoutError
	return errors.As(err, &te) || errors.As(err, &to)
}

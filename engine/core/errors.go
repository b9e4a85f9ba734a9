package core

import (
	"errors"
	"fmt"
	"time"
)

// TransportError wraps a network or HTTP failure talking to the remote
// service.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError wraps err with the operation that failed.
func NewTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err}
}

// IdleTimeoutError reports that a stream producer went silent for longer
// than the configured idle window.
type IdleTimeoutError struct {
	Idle time.Duration
}

func (e *IdleTimeoutError) Error() string {
	return fmt.Sprintf("no event received for %s", e.Idle)
}

// LedgerIOError wraps a failure reading or writing the job ledger.
type LedgerIOError struct {
	JobID ID
	Op    string
	Err   error
}

func (e *LedgerIOError) Error() string {
	return fmt.Sprintf("ledger %s failed for job %s: %v", e.Op, e.JobID, e.Err)
}

func (e *LedgerIOError) Unwrap() error {
	return e.Err
}

// SpikeError reports a failure generating one spike. It never aborts
// sibling spikes or batch items.
type SpikeError struct {
	JobID ID
	Kind  string
	Err   error
}

func (e *SpikeError) Error() string {
	return fmt.Sprintf("spike %q failed for job %s: %v", e.Kind, e.JobID, e.Err)
}

func (e *SpikeError) Unwrap() error {
	return e.Err
}

// IsIdleTimeout reports whether err is (or wraps) an idle-timeout failure.
func IsIdleTimeout(err error) bool {
	var ite *IdleTimeoutError
	return errors.As(err, &ite)
}

// IsTransport reports whether err is (or wraps) a transport failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

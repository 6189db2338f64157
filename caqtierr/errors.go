// Package caqtierr provides structured error types for the pool engine.
// Errors are designed so that pool invalidation (a failed validator or
// health check) never needs to be boxed into a caller-visible error: only
// factory failures and user-function errors cross the pool boundary, and
// both do so through the types defined here.
package caqtierr

import (
	"errors"
	"fmt"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"
)

var log = logger.GetGoI2PLogger()

// Error codes, loosely following the JSON-RPC 2.0 range used elsewhere in
// the stack this pool was lifted from, with pool-specific codes living in
// the -32000..-32099 application range.
const (
	CodeInternal    = -32603
	CodeTimeout     = -32005
	CodeUnavailable = -32007
	CodeValidation  = -32008
	CodeConnection  = -32009
	CodeState       = -32010
	CodeExhausted   = -32011
)

// Sentinel errors. Use errors.Is to check for these.
var (
	// ErrClosed indicates the pool has been drained and will not create
	// new resources.
	ErrClosed = errors.New("pool: closed")

	// ErrInvalidConfig indicates the pool configuration failed validation.
	ErrInvalidConfig = errors.New("pool: invalid configuration")

	// ErrTimeout indicates an acquisition did not complete before its
	// context deadline.
	ErrTimeout = errors.New("pool: acquire timed out")

	// ErrConnection indicates the resource factory could not produce a
	// usable resource.
	ErrConnection = errors.New("pool: resource creation failed")
)

// PoolError is a structured, code-carrying pool error.
type PoolError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *PoolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *PoolError) Unwrap() error {
	return e.Err
}

// New creates a structured error with no underlying cause.
func New(code int, message string) *PoolError {
	return &PoolError{Code: code, Message: message}
}

// Wrap wraps err with a code and message, preserving it for errors.Is/As.
func Wrap(code int, message string, err error) *PoolError {
	if err != nil {
		log.WithField("code", code).WithError(err).Debug("wrapping pool error")
	}
	return &PoolError{Code: code, Message: message, Err: err}
}

// WrapInternal wraps an unexpected internal error with a generic message.
func WrapInternal(err error) *PoolError {
	return Wrap(CodeInternal, "internal pool error", err)
}

// CreateError is returned to a caller of Use/Acquire when the resource
// factory fails. It carries the pool name and the attempt's sequence
// number so operators can correlate it with the "resource factory failed"
// log line emitted at the same moment.
type CreateError struct {
	*PoolError
	Pool    string
	Attempt uint64
}

// NewCreateError builds a CreateError from a factory failure, annotating it
// with oops for stack-trace and contextual-field capture before it leaves
// the pool boundary.
func NewCreateError(poolName string, attempt uint64, err error) *CreateError {
	annotated := oops.
		With("pool", poolName).
		With("attempt", attempt).
		Wrapf(err, "resource factory failed")

	return &CreateError{
		PoolError: Wrap(CodeConnection, "resource factory failed", annotated),
		Pool:      poolName,
		Attempt:   attempt,
	}
}

// IsCreateError reports whether err is (or wraps) a CreateError.
func IsCreateError(err error) bool {
	var ce *CreateError
	return errors.As(err, &ce)
}

// IsClosed reports whether err indicates the pool is closed.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

// IsTimeout reports whether err indicates an acquisition timed out.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree matching target's type.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Package result defines the outcome envelope returned by repository operations.
package result

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument marks validation failures.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound marks queries that matched no live record.
	ErrNotFound = errors.New("not found")
	// ErrBackend marks failures raised by the underlying store.
	ErrBackend = errors.New("backend failure")
)

// Kind tags the outcome of an operation.
type Kind int

const (
	// KindOK means the operation succeeded and Value is meaningful.
	KindOK Kind = iota
	// KindInvalid means the input was rejected before reaching the store.
	KindInvalid
	// KindNotFound means nothing live matched. It is not an error of the store.
	KindNotFound
	// KindFailed means the store reported an error; Err holds it.
	KindFailed
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindInvalid:
		return "invalid"
	case KindNotFound:
		return "not_found"
	case KindFailed:
		return "failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Result is the tagged outcome of a repository operation.
type Result[T any] struct {
	Kind    Kind
	Value   T
	Message string
	Err     error
}

// Ack is the outcome of an operation that carries no payload.
type Ack = Result[struct{}]

// OK wraps a successful payload.
func OK[T any](value T, message string) Result[T] {
	return Result[T]{Kind: KindOK, Value: value, Message: message}
}

// Done is a successful Ack.
func Done(message string) Ack {
	return OK(struct{}{}, message)
}

// Invalid reports a validation failure.
func Invalid[T any](message string) Result[T] {
	return Result[T]{Kind: KindInvalid, Message: message}
}

// NotFound reports that no live record matched.
func NotFound[T any](message string) Result[T] {
	return Result[T]{Kind: KindNotFound, Message: message}
}

// Failed reports a store error. The message carries the cause text so the
// envelope stays useful when logged on its own.
func Failed[T any](action string, err error) Result[T] {
	msg := "Error while " + action
	if err != nil {
		msg += ": " + err.Error()
	}
	return Result[T]{Kind: KindFailed, Message: msg, Err: err}
}

// Succeeded reports whether the operation succeeded.
func (r Result[T]) Succeeded() bool {
	return r.Kind == KindOK
}

// Get returns the payload and whether it is present.
func (r Result[T]) Get() (T, bool) {
	if r.Kind != KindOK {
		var zero T
		return zero, false
	}
	return r.Value, true
}

// Tuple returns the (payload, success, message) triple.
func (r Result[T]) Tuple() (T, bool, string) {
	v, ok := r.Get()
	return v, ok, r.Message
}

// Error converts a non-successful outcome into an error matching
// ErrInvalidArgument, ErrNotFound or ErrBackend. It returns nil on success.
func (r Result[T]) Error() error {
	switch r.Kind {
	case KindOK:
		return nil
	case KindInvalid:
		return fmt.Errorf("%w: %s", ErrInvalidArgument, r.Message)
	case KindNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, r.Message)
	default:
		if r.Err != nil {
			return fmt.Errorf("%w: %w", ErrBackend, r.Err)
		}
		return fmt.Errorf("%w: %s", ErrBackend, r.Message)
	}
}

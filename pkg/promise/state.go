package promise

import (
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrPanicked wraps the value recovered from a panicking factory.
	ErrPanicked = errors.New("factory panicked")

	// ErrInactive is returned by Effect.Run when the activation it belongs
	// to was replaced or closed.
	ErrInactive = errors.New("activation no longer active")
)

// Status is the settlement state of an invocation.
type Status int

const (
	// StatusIdle means nothing has been invoked, or the tracker was reset.
	StatusIdle Status = iota

	// StatusPending means the current invocation has not settled yet.
	StatusPending

	// StatusResolved means the current invocation returned a result.
	StatusResolved

	// StatusRejected means the current invocation returned an error.
	StatusRejected
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPending:
		return "pending"
	case StatusResolved:
		return "resolved"
	case StatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// State is a snapshot of a tracker's current invocation.
// Result is only meaningful when resolved, Err only when rejected.
type State[T any] struct {
	ID     uuid.UUID
	Status Status
	Result T
	Err    error
}

// Invoked reports whether an invocation is current.
func (s State[T]) Invoked() bool { return s.Status != StatusIdle }

// Pending reports whether the current invocation is still running.
func (s State[T]) Pending() bool { return s.Status == StatusPending }

// Resolved reports whether the current invocation returned a result.
func (s State[T]) Resolved() bool { return s.Status == StatusResolved }

// Rejected reports whether the current invocation returned an error.
func (s State[T]) Rejected() bool { return s.Status == StatusRejected }

// invocation is one run of a factory. It is owned by the tracker that
// created it and only mutated under that tracker's lock.
type invocation[T any] struct {
	id     uuid.UUID
	status Status
	result T
	err    error
}

func (inv *invocation[T]) snapshot() State[T] {
	if inv == nil {
		return State[T]{Status: StatusIdle}
	}
	return State[T]{
		ID:     inv.id,
		Status: inv.status,
		Result: inv.result,
		Err:    inv.err,
	}
}

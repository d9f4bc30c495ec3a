package promise

import (
	"context"
	"fmt"
	"sync"
)

// Effect re-runs a factory through a Tracker whenever its dependency key
// changes. Each activation gets its own context, cancelled when the next
// activation starts or the effect is closed.
type Effect[T any] struct {
	tracker *Tracker[T]

	mu     sync.Mutex
	key    string
	active bool
	cancel context.CancelFunc
}

// NewEffect creates an effect that reports through tracker.
func NewEffect[T any](tracker *Tracker[T]) *Effect[T] {
	return &Effect[T]{tracker: tracker}
}

// Tracker returns the tracker the effect runs its activations through.
func (e *Effect[T]) Tracker() *Tracker[T] {
	return e.tracker
}

// Update starts a new activation unless key equals the active one.
//
// activate is called synchronously with the activation context and returns
// the factory to run; the tracker is pending by the time Update returns.
// Update reports whether a new activation was started.
func (e *Effect[T]) Update(key string, activate func(ctx context.Context) Factory[T]) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active && e.key == key {
		return false
	}

	// The new invocation is current before the old activation is cancelled,
	// so nothing the old one settles can reach observers.
	inv := e.tracker.claim()
	if e.cancel != nil {
		e.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.key = key
	e.cancel = cancel
	e.active = true

	factory := activate(ctx)
	e.tracker.publish()
	e.tracker.start(ctx, inv, factory)
	return true
}

// Run runs factory through the tracker as part of the activation that owns
// ctx. If that activation has already been replaced or closed, the tracker is
// left untouched and an error wrapping ErrInactive is returned.
func (e *Effect[T]) Run(ctx context.Context, factory Factory[T]) (T, error) {
	e.mu.Lock()
	if err := ctx.Err(); err != nil {
		e.mu.Unlock()
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrInactive, err)
	}
	inv := e.tracker.begin()
	e.mu.Unlock()

	result, err := call(ctx, factory)
	e.tracker.settle(inv, result, err)
	return result, err
}

// Close resets the tracker and cancels the active activation.
func (e *Effect[T]) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.tracker.Reset()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.active = false
	e.key = ""
}

package promise

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/simple-apps-suite/simple-notes/internal/notify"
)

// Prometheus metrics for tracked invocations.
var (
	invocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "request_invocations_total",
		Help: "Total tracked invocations by tracker and outcome",
	}, []string{"tracker", "outcome"})
)

// Factory produces the value of one invocation. Arguments are captured by
// the closure.
type Factory[T any] func(ctx context.Context) (T, error)

// Tracker exposes the status of the most recently started invocation.
type Tracker[T any] struct {
	name   string
	logger zerolog.Logger

	mu      sync.Mutex
	current *invocation[T]

	hub notify.Hub[State[T]]
}

// NewTracker creates a tracker. The name labels metrics and log events.
func NewTracker[T any](name string, logger zerolog.Logger) *Tracker[T] {
	return &Tracker[T]{
		name:   name,
		logger: logger.With().Str("tracker", name).Logger(),
	}
}

// Run starts a new invocation of factory and waits for it to settle.
//
// The new invocation immediately becomes current and pending. If it is still
// current when factory returns, its outcome is recorded and observers are
// notified; if a later Run or Reset superseded it, shared state is left
// untouched. Either way the caller receives factory's own result and error.
func (t *Tracker[T]) Run(ctx context.Context, factory Factory[T]) (T, error) {
	inv := t.begin()
	result, err := call(ctx, factory)
	t.settle(inv, result, err)
	return result, err
}

// start settles inv with the outcome of factory in the background.
func (t *Tracker[T]) start(ctx context.Context, inv *invocation[T], factory Factory[T]) {
	go func() {
		result, err := call(ctx, factory)
		t.settle(inv, result, err)
	}()
}

func (t *Tracker[T]) begin() *invocation[T] {
	inv := t.claim()
	t.publish()
	return inv
}

// claim makes a new pending invocation current without notifying observers.
// Outcomes of the invocation it replaces are dropped from then on.
func (t *Tracker[T]) claim() *invocation[T] {
	inv := &invocation[T]{id: uuid.New(), status: StatusPending}

	t.mu.Lock()
	if prev := t.current; prev != nil && prev.status == StatusPending {
		t.logger.Debug().
			Str("invocation", prev.id.String()).
			Str("superseded_by", inv.id.String()).
			Msg("Invocation superseded")
	}
	t.current = inv
	t.mu.Unlock()

	return inv
}

func (t *Tracker[T]) settle(inv *invocation[T], result T, err error) {
	t.mu.Lock()
	current := t.current == inv
	if current {
		if err != nil {
			inv.err = err
			inv.status = StatusRejected
		} else {
			inv.result = result
			inv.status = StatusResolved
		}
	}
	t.mu.Unlock()

	if !current {
		invocationsTotal.WithLabelValues(t.name, "superseded").Inc()
		t.logger.Debug().
			Str("invocation", inv.id.String()).
			AnErr("error", err).
			Msg("Dropping stale invocation outcome")
		return
	}

	if err != nil {
		invocationsTotal.WithLabelValues(t.name, StatusRejected.String()).Inc()
	} else {
		invocationsTotal.WithLabelValues(t.name, StatusResolved.String()).Inc()
	}
	t.publish()
}

// call runs factory, turning a panic into an error.
func call[T any](ctx context.Context, factory Factory[T]) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			result = zero
			err = fmt.Errorf("%w: %v", ErrPanicked, r)
		}
	}()
	return factory(ctx)
}

// Reset forgets the current invocation. Anything still in flight becomes
// stale and its outcome is dropped.
func (t *Tracker[T]) Reset() {
	t.mu.Lock()
	if t.current == nil {
		t.mu.Unlock()
		return
	}
	t.current = nil
	t.mu.Unlock()

	t.publish()
}

// State returns a snapshot of the current invocation.
func (t *Tracker[T]) State() State[T] {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current.snapshot()
}

// Subscribe registers fn to receive every state change. Callbacks run on the
// goroutine that caused the change and must not block on this tracker.
func (t *Tracker[T]) Subscribe(fn func(State[T])) (cancel func()) {
	return t.hub.Subscribe(fn)
}

// Changed returns a channel closed on the next state change.
func (t *Tracker[T]) Changed() <-chan struct{} {
	return t.hub.Changed()
}

func (t *Tracker[T]) publish() {
	t.hub.Publish(t.State)
}

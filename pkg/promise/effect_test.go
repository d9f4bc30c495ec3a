package promise

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitSettled[T any](t *testing.T, tracker *Tracker[T]) State[T] {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		ch := tracker.Changed()
		if s := tracker.State(); !s.Pending() {
			return s
		}
		select {
		case <-ch:
		case <-deadline:
			t.Fatal("timed out waiting for tracker to settle")
		}
	}
}

func TestEffect_UpdateRunsOncePerKey(t *testing.T) {
	effect := NewEffect(NewTracker[int]("effect", zerolog.Nop()))
	runs := 0

	activate := func(ctx context.Context) Factory[int] {
		runs++
		n := runs
		return func(context.Context) (int, error) { return n, nil }
	}

	assert.True(t, effect.Update("a", activate))
	assert.True(t, effect.Tracker().State().Pending() || effect.Tracker().State().Resolved())
	assert.False(t, effect.Update("a", activate), "same key must not re-run")

	state := waitSettled(t, effect.Tracker())
	assert.Equal(t, 1, state.Result)

	assert.True(t, effect.Update("b", activate))
	state = waitSettled(t, effect.Tracker())
	assert.Equal(t, 2, state.Result)
	assert.Equal(t, 2, runs)
}

func TestEffect_KeyChangeCancelsPreviousActivation(t *testing.T) {
	effect := NewEffect(NewTracker[string]("effect", zerolog.Nop()))

	var first context.Context
	release := make(chan struct{})
	effect.Update("a", func(ctx context.Context) Factory[string] {
		first = ctx
		return func(ctx context.Context) (string, error) {
			<-release
			return "stale", nil
		}
	})
	require.NoError(t, first.Err())

	effect.Update("b", func(ctx context.Context) Factory[string] {
		return func(context.Context) (string, error) { return "fresh", nil }
	})
	assert.ErrorIs(t, first.Err(), context.Canceled)

	state := waitSettled(t, effect.Tracker())
	close(release)
	assert.Equal(t, "fresh", state.Result)

	// Give the stale activation time to settle; it must not overwrite state.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, "fresh", effect.Tracker().State().Result)
}

func TestEffect_CloseCancelsAndResets(t *testing.T) {
	effect := NewEffect(NewTracker[int]("effect", zerolog.Nop()))

	var activation context.Context
	release := make(chan struct{})
	effect.Update("a", func(ctx context.Context) Factory[int] {
		activation = ctx
		return func(context.Context) (int, error) {
			<-release
			return 1, nil
		}
	})

	effect.Close()
	assert.ErrorIs(t, activation.Err(), context.Canceled)
	assert.False(t, effect.Tracker().State().Invoked())

	close(release)
	time.Sleep(20 * time.Millisecond)
	assert.False(t, effect.Tracker().State().Invoked())

	assert.True(t, effect.Update("a", func(ctx context.Context) Factory[int] {
		return func(context.Context) (int, error) { return 2, nil }
	}), "same key re-activates after Close")
	assert.Equal(t, 2, waitSettled(t, effect.Tracker()).Result)
}

func TestEffect_RunAfterReplacementLeavesTrackerAlone(t *testing.T) {
	effect := NewEffect(NewTracker[int]("effect", zerolog.Nop()))

	var first context.Context
	effect.Update("a", func(ctx context.Context) Factory[int] {
		first = ctx
		return func(context.Context) (int, error) { return 1, nil }
	})
	waitSettled(t, effect.Tracker())

	got, err := effect.Run(first, func(context.Context) (int, error) { return 5, nil })
	require.NoError(t, err)
	assert.Equal(t, 5, got)
	assert.Equal(t, 5, effect.Tracker().State().Result, "same-activation runs are tracked")

	effect.Update("b", func(ctx context.Context) Factory[int] {
		return func(context.Context) (int, error) { return 2, nil }
	})
	waitSettled(t, effect.Tracker())

	called := false
	_, err = effect.Run(first, func(context.Context) (int, error) {
		called = true
		return 9, nil
	})
	assert.ErrorIs(t, err, ErrInactive)
	assert.False(t, called)
	assert.Equal(t, 2, effect.Tracker().State().Result)
}

func TestEffect_ReplacedActivationNeverPublishes(t *testing.T) {
	effect := NewEffect(NewTracker[string]("effect", zerolog.Nop()))

	effect.Update("a", func(ctx context.Context) Factory[string] {
		return func(ctx context.Context) (string, error) {
			<-ctx.Done()
			return "stale", nil
		}
	})

	var mu sync.Mutex
	var published []State[string]
	cancel := effect.Tracker().Subscribe(func(s State[string]) {
		mu.Lock()
		published = append(published, s)
		mu.Unlock()
	})
	defer cancel()

	release := make(chan struct{})
	defer close(release)
	effect.Update("b", func(ctx context.Context) Factory[string] {
		return func(context.Context) (string, error) {
			<-release
			return "fresh", nil
		}
	})

	// The first activation settles as soon as it is cancelled.
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, published, 1, "only the replacement starting is observable")
	assert.True(t, published[0].Pending())
	assert.True(t, effect.Tracker().State().Pending())
}

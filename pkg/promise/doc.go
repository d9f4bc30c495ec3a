// Package promise tracks the latest invocation of an asynchronous operation.
//
// A Tracker wraps calls to a factory and exposes the status of the most
// recently started call only. When calls overlap, the last one started wins:
// a superseded call that settles late never overwrites shared state, although
// its own caller still receives its result or error.
//
// Example usage:
//
//	tracker := promise.NewTracker[int]("rooms", logger)
//	go tracker.Run(ctx, func(ctx context.Context) (int, error) {
//		return countRooms(ctx)
//	})
//	<-tracker.Changed()
//	state := tracker.State()
//
// An Effect pairs a Tracker with a dependency key: each key change starts a
// new activation with its own cancellable context and cancels the previous
// one, the way a reactive view re-runs its data loader when inputs change.
package promise

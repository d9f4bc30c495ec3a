// Package notify provides a small state-change broadcast hub shared by the
// invocation tracker and the pagination coordinator.
package notify

import "sync"

// Hub fans a state snapshot out to registered callbacks and wakes anyone
// blocked on Changed. The zero value is ready to use.
//
// Deliveries are serialized: callbacks run one publication at a time, in the
// order publications acquire the hub. Callbacks must not publish on the same
// hub synchronously.
type Hub[S any] struct {
	mu      sync.Mutex
	nextID  int
	subs    map[int]func(S)
	changed chan struct{}

	deliver sync.Mutex
}

// Subscribe registers fn and returns a function that removes it.
func (h *Hub[S]) Subscribe(fn func(S)) (cancel func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs == nil {
		h.subs = make(map[int]func(S))
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = fn

	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

// Changed returns a channel that is closed on the next publication.
func (h *Hub[S]) Changed() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.changed == nil {
		h.changed = make(chan struct{})
	}
	return h.changed
}

// Publish takes a snapshot and delivers it to every subscriber. The snapshot
// is taken while holding the delivery lock so subscribers never observe an
// older state after a newer one.
func (h *Hub[S]) Publish(snapshot func() S) {
	h.deliver.Lock()
	defer h.deliver.Unlock()

	s := snapshot()

	h.mu.Lock()
	if h.changed != nil {
		close(h.changed)
		h.changed = nil
	}
	subs := make([]func(S), 0, len(h.subs))
	for _, fn := range h.subs {
		subs = append(subs, fn)
	}
	h.mu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
}

package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/simple-apps-suite/simple-notes/internal/notify"
	"github.com/simple-apps-suite/simple-notes/pkg/logging"
	"github.com/simple-apps-suite/simple-notes/pkg/promise"
)

// Common errors returned by the coordinator.
var (
	// ErrNoMorePages is returned by LoadMore when no continuation cursor is known.
	ErrNoMorePages = errors.New("no more pages")

	// ErrAborted is returned when a page load is attempted for an epoch that
	// was already cancelled.
	ErrAborted = errors.New("request aborted, cannot load more")
)

// Config holds coordinator configuration.
type Config struct {
	// CursorField is the response field carrying the continuation cursor.
	CursorField string

	// CursorParam is the option the stored cursor is injected as.
	CursorParam string

	// AccumulateField forces the field concatenated across pages. When empty
	// the first slice-valued field of a cursor-carrying page is used.
	AccumulateField string

	// CallTimeout bounds each API call (0 = no bound). Epoch cancellation
	// never aborts a call in flight; it only discards the outcome.
	CallTimeout time.Duration
}

// DefaultConfig returns the configuration for Matrix-style pagination
// (next_batch in responses, since in requests).
func DefaultConfig() Config {
	return Config{
		CursorField: "next_batch",
		CursorParam: "since",
	}
}

// State is what a coordinator exposes to its consumers.
type State struct {
	// Pending is true while the latest page load is running.
	Pending bool

	// Result is the merged result of the last successful page load of the
	// current epoch, nil before the first page arrives. A failed load leaves
	// it in place next to Err. It must not be modified.
	Result Response

	// Err is the error of the latest page load, if it failed.
	Err error

	// LoadMore schedules the next page of the epoch the snapshot was taken
	// in. Once that epoch has ended it does nothing. It is nil when no
	// continuation cursor is known.
	LoadMore func()
}

// Coordinator drives paginated requests and merges their pages.
type Coordinator struct {
	config Config
	logger zerolog.Logger
	effect *promise.Effect[Response]

	mu      sync.Mutex
	epoch   *epoch
	seq     uint64
	result  Response
	hasMore bool

	hub notify.Hub[State]
}

// epoch is one activation of the coordinator. Its fields are guarded by the
// coordinator's mutex; ctx is cancelled when the epoch ends.
type epoch struct {
	ctx    context.Context
	id     uint64
	closed bool
	client Client
	api    string
	opts   Options

	cursor      string
	field       string
	mayHaveMore bool
	inFlight    bool
	pages       int
}

// New creates a coordinator.
func New(cfg Config) (*Coordinator, error) {
	if cfg.CursorField == "" {
		return nil, fmt.Errorf("cursor field is required")
	}
	if cfg.CursorParam == "" {
		return nil, fmt.Errorf("cursor param is required")
	}
	if cfg.CallTimeout < 0 {
		return nil, fmt.Errorf("call timeout must be >= 0 (got %s)", cfg.CallTimeout)
	}

	logger := logging.NewLogger("pagination")

	c := &Coordinator{
		config: cfg,
		logger: logger,
		effect: promise.NewEffect(promise.NewTracker[Response]("pagination", logger)),
	}
	c.effect.Tracker().Subscribe(func(promise.State[Response]) {
		c.publish()
	})

	return c, nil
}

// Open activates the coordinator for api called through client with opts.
//
// If client identity, api and opts equal those of the active epoch, Open is
// a no-op. Otherwise the active epoch is cancelled, the accumulated result is
// dropped and the first page of a new epoch is requested in the background.
// The returned snapshot reflects the coordinator after activation.
func (c *Coordinator) Open(client Client, api string, opts Options) State {
	key := epochKey(client.Identity(), api, opts)

	c.effect.Update(key, func(ctx context.Context) promise.Factory[Response] {
		c.mu.Lock()
		c.seq++
		ep := &epoch{
			ctx:    ctx,
			id:     c.seq,
			client: client,
			api:    api,
			opts:   opts.Clone(),
		}
		c.epoch = ep
		c.result = nil
		c.hasMore = false
		c.mu.Unlock()

		epochsTotal.WithLabelValues(api).Inc()
		c.logger.Info().
			Str("api", api).
			Uint64("epoch", ep.id).
			Msg("Starting request epoch")

		return func(context.Context) (Response, error) {
			return c.loadFirst(ep)
		}
	})

	return c.State()
}

// LoadMore loads the next page of the active epoch and waits for it.
//
// It returns ErrNoMorePages when no continuation cursor is known, ErrAborted
// when the epoch was cancelled, and nil without doing anything when another
// page load is already in flight.
func (c *Coordinator) LoadMore() error {
	c.mu.Lock()
	ep := c.epoch
	c.mu.Unlock()

	return c.loadMore(ep)
}

// loadMore loads the next page of ep, which must still be the active epoch.
func (c *Coordinator) loadMore(ep *epoch) error {
	c.mu.Lock()
	switch {
	case ep == nil:
		c.mu.Unlock()
		return ErrNoMorePages
	case !c.isActive(ep):
		c.mu.Unlock()
		return ErrAborted
	case !ep.mayHaveMore:
		c.mu.Unlock()
		return ErrNoMorePages
	case ep.inFlight:
		c.mu.Unlock()
		loadsSkippedTotal.WithLabelValues(ep.api).Inc()
		c.logger.Debug().
			Str("api", ep.api).
			Uint64("epoch", ep.id).
			Msg("Page load already in flight, skipping")
		return nil
	}
	ep.inFlight = true
	c.mu.Unlock()

	_, err := c.effect.Run(ep.ctx, func(context.Context) (Response, error) {
		return c.fetch(ep, true)
	})
	if errors.Is(err, promise.ErrInactive) {
		c.mu.Lock()
		ep.inFlight = false
		c.mu.Unlock()
		return ErrAborted
	}
	return err
}

// Wait blocks until no page load is pending and returns the state.
func (c *Coordinator) Wait(ctx context.Context) (State, error) {
	for {
		changed := c.hub.Changed()
		s := c.State()
		if !s.Pending {
			return s, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return s, ctx.Err()
		}
	}
}

// Close disposes of the active epoch. Responses still in flight are
// discarded and the accumulated result is dropped.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if ep := c.epoch; ep != nil && !ep.closed {
		ep.closed = true
		c.logger.Debug().
			Str("api", ep.api).
			Uint64("epoch", ep.id).
			Msg("Request epoch closed")
	}
	c.result = nil
	c.hasMore = false
	c.mu.Unlock()

	// Resetting the tracker publishes the cleared state.
	c.effect.Close()
}

// State returns a snapshot of the coordinator.
func (c *Coordinator) State() State {
	tracked := c.effect.Tracker().State()

	c.mu.Lock()
	defer c.mu.Unlock()

	s := State{
		Pending: tracked.Pending(),
		Result:  c.result,
	}
	if tracked.Rejected() {
		s.Err = tracked.Err
	}
	if ep := c.epoch; c.hasMore && ep != nil {
		s.LoadMore = func() { c.loadMoreAsync(ep) }
	}
	return s
}

// Subscribe registers fn to receive every state change. Callbacks must not
// call blocking coordinator methods; use State.LoadMore instead of LoadMore.
func (c *Coordinator) Subscribe(fn func(State)) (cancel func()) {
	return c.hub.Subscribe(fn)
}

// Changed returns a channel closed on the next state change.
func (c *Coordinator) Changed() <-chan struct{} {
	return c.hub.Changed()
}

func (c *Coordinator) publish() {
	c.hub.Publish(c.State)
}

func (c *Coordinator) loadMoreAsync(ep *epoch) {
	go func() {
		if err := c.loadMore(ep); err != nil {
			c.logger.Debug().Err(err).Msg("Background page load failed")
		}
	}()
}

// loadFirst is the factory of an epoch's first page.
func (c *Coordinator) loadFirst(ep *epoch) (Response, error) {
	if ep.ctx.Err() != nil {
		return nil, ErrAborted
	}

	c.mu.Lock()
	if ep.inFlight {
		c.mu.Unlock()
		loadsSkippedTotal.WithLabelValues(ep.api).Inc()
		return nil, nil
	}
	ep.inFlight = true
	c.mu.Unlock()

	return c.fetch(ep, false)
}

// fetch performs one page call for ep, whose in-flight guard is already
// held, and folds the response into the coordinator's result.
func (c *Coordinator) fetch(ep *epoch, appendToResult bool) (Response, error) {
	if ep.ctx.Err() != nil {
		c.release(ep)
		return nil, ErrAborted
	}

	c.mu.Lock()
	opts := ep.effectiveOptions(c.config.CursorParam)
	c.mu.Unlock()

	kind := "first"
	if appendToResult {
		kind = "more"
	}

	callCtx := context.WithoutCancel(ep.ctx)
	if c.config.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, c.config.CallTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := ep.client.Call(callCtx, ep.api, opts)
	pageDuration.WithLabelValues(ep.api).Observe(time.Since(start).Seconds())

	c.mu.Lock()
	ep.inFlight = false

	if !c.isActive(ep) {
		c.mu.Unlock()
		staleResponsesTotal.WithLabelValues(ep.api).Inc()
		c.logger.Debug().
			Str("api", ep.api).
			Uint64("epoch", ep.id).
			AnErr("error", err).
			Msg("Discarding response of cancelled epoch")
		return nil, nil
	}

	if err != nil {
		c.mu.Unlock()
		pageErrorsTotal.WithLabelValues(ep.api).Inc()
		c.logger.Error().
			Err(err).
			Str("api", ep.api).
			Uint64("epoch", ep.id).
			Str("kind", kind).
			Msg("Page load failed")
		return nil, err
	}

	ep.mayHaveMore = false
	ep.cursor = ""
	if cursor, ok := cursorOf(resp, c.config.CursorField); ok {
		ep.cursor = cursor
		ep.field = accumulableField(resp, c.config.AccumulateField)
		ep.mayHaveMore = true
	}

	var added int
	if appendToResult && c.result != nil {
		c.result, added = mergePages(c.result, resp, ep.field)
	} else {
		c.result = resp.Clone()
		if c.result == nil {
			c.result = Response{}
		}
		added = itemCount(resp, ep.field)
	}
	c.hasMore = ep.mayHaveMore
	ep.pages++

	result := c.result
	pages := ep.pages
	hasMore := ep.mayHaveMore
	c.mu.Unlock()

	pagesTotal.WithLabelValues(ep.api, kind).Inc()
	itemsAccumulatedTotal.WithLabelValues(ep.api).Add(float64(added))
	c.logger.Info().
		Str("api", ep.api).
		Uint64("epoch", ep.id).
		Int("page", pages).
		Int("items_added", added).
		Bool("has_more", hasMore).
		Dur("duration", time.Since(start)).
		Msg("Page loaded")

	c.publish()
	return result, nil
}

// isActive reports whether ep is still the coordinator's live epoch. The
// caller holds c.mu.
func (c *Coordinator) isActive(ep *epoch) bool {
	return c.epoch == ep && !ep.closed && ep.ctx.Err() == nil
}

func (c *Coordinator) release(ep *epoch) {
	c.mu.Lock()
	ep.inFlight = false
	c.mu.Unlock()
}

// effectiveOptions returns the options for the next call: the caller's
// options, plus the stored cursor when more data may be available and the
// caller did not set the cursor param explicitly.
func (ep *epoch) effectiveOptions(cursorParam string) Options {
	if ep.mayHaveMore && !ep.opts.Has(cursorParam) {
		return ep.opts.With(cursorParam, ep.cursor)
	}
	return ep.opts.Clone()
}

func epochKey(identity, api string, opts Options) string {
	return identity + "\x1f" + api + "\x1f" + opts.Key()
}

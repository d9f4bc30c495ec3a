package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/simple-apps-suite/simple-notes/pkg/pagination"
)

// ErrNoScriptedStep is returned by FakeClient when its script is exhausted.
var ErrNoScriptedStep = errors.New("fake client: no scripted step left")

// FakeStep is one scripted outcome of FakeClient.Call.
type FakeStep struct {
	Response pagination.Response
	Err      error

	// Release, when non-nil, holds the call until it is closed.
	Release chan struct{}
}

// FakeCall records one call made to a FakeClient.
type FakeCall struct {
	API     string
	Options pagination.Options
}

// FakeClient is a scripted pagination.Client. Each call consumes the next
// step in order.
type FakeClient struct {
	identity string

	mu      sync.Mutex
	steps   []FakeStep
	calls   []FakeCall
	started chan FakeCall
}

// NewFakeClient creates a fake client with the given identity and script.
func NewFakeClient(identity string, steps ...FakeStep) *FakeClient {
	return &FakeClient{
		identity: identity,
		steps:    steps,
		started:  make(chan FakeCall, 64),
	}
}

// Push appends steps to the script.
func (f *FakeClient) Push(steps ...FakeStep) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = append(f.steps, steps...)
}

// Call implements pagination.Client.
func (f *FakeClient) Call(ctx context.Context, api string, opts pagination.Options) (pagination.Response, error) {
	call := FakeCall{API: api, Options: opts.Clone()}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	if len(f.steps) == 0 {
		f.mu.Unlock()
		f.started <- call
		return nil, ErrNoScriptedStep
	}
	step := f.steps[0]
	f.steps = f.steps[1:]
	f.mu.Unlock()

	f.started <- call

	if step.Release != nil {
		<-step.Release
	}
	return step.Response, step.Err
}

// Identity implements pagination.Client.
func (f *FakeClient) Identity() string {
	return f.identity
}

// Calls returns every call made so far.
func (f *FakeClient) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// Started delivers each call as it begins.
func (f *FakeClient) Started() <-chan FakeCall {
	return f.started
}

package pagination

import (
	"context"
	"encoding/json"
	"fmt"
)

// Response is the decoded payload of one API call.
type Response map[string]any

// Clone returns a shallow copy of the response.
func (r Response) Clone() Response {
	if r == nil {
		return nil
	}
	out := make(Response, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Options are the parameters of one API call.
type Options map[string]any

// Has reports whether the options set key explicitly.
func (o Options) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// Clone returns a shallow copy of the options. Cloning nil yields an empty map.
func (o Options) Clone() Options {
	out := make(Options, len(o)+1)
	for k, v := range o {
		out[k] = v
	}
	return out
}

// With returns a copy of the options with key set to value.
func (o Options) With(key string, value any) Options {
	out := o.Clone()
	out[key] = value
	return out
}

// Key returns a canonical encoding of the options. Two option sets with the
// same keys and values produce the same key regardless of insertion order.
func (o Options) Key() string {
	if len(o) == 0 {
		return "{}"
	}
	data, err := json.Marshal(map[string]any(o))
	if err != nil {
		return fmt.Sprintf("%v", map[string]any(o))
	}
	return string(data)
}

// Client performs API calls for a coordinator.
type Client interface {
	// Call invokes the API identified by api with opts.
	Call(ctx context.Context, api string, opts Options) (Response, error)

	// Identity identifies the session behind the client. A change of
	// identity (login, logout, different server) starts a new epoch.
	Identity() string
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/simple-apps-suite/simple-notes/pkg/logging"
	"github.com/simple-apps-suite/simple-notes/pkg/pagination"
)

// DefaultTTL is used when NewClient is given a non-positive TTL.
const DefaultTTL = 5 * time.Minute

// Client is a pagination.Client that serves responses from the cache and
// stores successful responses of the wrapped client.
type Client struct {
	next    pagination.Client
	manager *Manager
	ttl     time.Duration
	logger  zerolog.Logger
}

// NewClient wraps next with a response cache.
func NewClient(next pagination.Client, manager *Manager, ttl time.Duration) *Client {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Client{
		next:    next,
		manager: manager,
		ttl:     ttl,
		logger:  logging.NewLogger("response-cache"),
	}
}

// Call implements pagination.Client.
func (c *Client) Call(ctx context.Context, api string, opts pagination.Options) (pagination.Response, error) {
	key := CacheKey{API: api, Identity: c.next.Identity(), Options: opts}

	entry, err := c.manager.Get(ctx, key)
	switch {
	case err == nil:
		var resp pagination.Response
		if decodeErr := json.Unmarshal(entry.Data, &resp); decodeErr == nil && resp != nil {
			c.logger.Debug().
				Str("api", api).
				Dur("ttl", entry.TTL()).
				Msg("Serving cached response")
			return resp, nil
		}
		CacheErrors.WithLabelValues("decode").Inc()
		c.logger.Warn().Str("api", api).Msg("Dropping undecodable cache entry")
		_ = c.manager.Delete(ctx, key)
	case errors.Is(err, ErrCacheMiss):
	default:
		c.logger.Warn().Err(err).Str("api", api).Msg("Cache lookup failed, calling API")
	}

	resp, err := c.next.Call(ctx, api, opts)
	if err != nil {
		return nil, err
	}

	if err := c.store(ctx, key, resp); err != nil {
		c.logger.Warn().Err(err).Str("api", api).Msg("Failed to cache response")
	}

	return resp, nil
}

// Identity implements pagination.Client. Caching does not change the
// session a call is made in.
func (c *Client) Identity() string {
	return c.next.Identity()
}

// WithNext returns a cache client sharing the manager and TTL in front of a
// different client, typically the same API under another access token.
func (c *Client) WithNext(next pagination.Client) *Client {
	clone := *c
	clone.next = next
	return &clone
}

func (c *Client) store(ctx context.Context, key CacheKey, resp pagination.Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal response: %w", err)
	}
	return c.manager.Set(ctx, key, NewEntry(data, c.ttl))
}

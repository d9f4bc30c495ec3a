// Package client provides the HTTP JSON API client used as the calling
// capability of request coordinators.
package client

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/simple-apps-suite/simple-notes/pkg/logging"
	"github.com/simple-apps-suite/simple-notes/pkg/pagination"
)

// Prometheus metrics for API client operations.
var (
	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "api_requests_total",
		Help: "Total API requests by api and status",
	}, []string{"api", "status"})

	apiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "api_request_duration_seconds",
		Help:    "API request duration in seconds by api",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"api"})

	apiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "api_errors_total",
		Help: "Total API errors by class",
	}, []string{"class"})
)

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// ErrorClass represents a classification of failed calls.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 rate limit errors.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// Endpoint maps an API selector to an HTTP method and path.
type Endpoint struct {
	Method string
	Path   string
}

// DefaultEndpoints returns the Matrix client-server endpoints known by name.
func DefaultEndpoints() map[string]Endpoint {
	return map[string]Endpoint{
		"publicRooms":       {Method: http.MethodGet, Path: "/_matrix/client/v3/publicRooms"},
		"searchPublicRooms": {Method: http.MethodPost, Path: "/_matrix/client/v3/publicRooms"},
		"joinedRooms":       {Method: http.MethodGet, Path: "/_matrix/client/v3/joined_rooms"},
		"sync":              {Method: http.MethodGet, Path: "/_matrix/client/v3/sync"},
		"whoami":            {Method: http.MethodGet, Path: "/_matrix/client/v3/account/whoami"},
	}
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the homeserver, e.g. "https://matrix.example.org" (REQUIRED)
	BaseURL string

	// AccessToken is sent as a bearer token when set.
	AccessToken string

	// UserAgent header (REQUIRED)
	UserAgent string

	// Timeout per HTTP request
	Timeout time.Duration

	// Endpoints by API selector (default: DefaultEndpoints)
	Endpoints map[string]Endpoint
}

// DefaultConfig returns a default configuration for baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		UserAgent: "simple-notes/0.1.0",
		Timeout:   30 * time.Second,
		Endpoints: DefaultEndpoints(),
	}
}

// Client calls a JSON API over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	config     Config
	logger     zerolog.Logger
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0 (got %s)", cfg.Timeout)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	if cfg.Endpoints == nil {
		cfg.Endpoints = DefaultEndpoints()
	} else {
		endpoints := make(map[string]Endpoint, len(cfg.Endpoints))
		for name, endpoint := range cfg.Endpoints {
			endpoints[name] = endpoint
		}
		cfg.Endpoints = endpoints
	}

	return &Client{
		httpClient: newHTTPClient(cfg.Timeout, cfg.AccessToken),
		baseURL:    baseURL,
		config:     cfg,
		logger:     logging.NewLogger("api-client"),
	}, nil
}

// newHTTPClient returns an HTTP client that authenticates with token as a
// bearer token, or anonymously when token is empty.
func newHTTPClient(timeout time.Duration, token string) *http.Client {
	transport := http.DefaultTransport
	if token != "" {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   http.DefaultTransport,
		}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// Call performs the API call named api. GET and DELETE options become query
// parameters, other methods send them as a JSON body. The response body must
// be a JSON object.
func (c *Client) Call(ctx context.Context, api string, opts pagination.Options) (pagination.Response, error) {
	endpoint, ok := c.config.Endpoints[api]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAPI, api)
	}

	req, err := c.newRequest(ctx, endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	startTime := time.Now()
	defer func() {
		apiRequestDuration.WithLabelValues(api).Observe(time.Since(startTime).Seconds())
	}()

	c.logger.Debug().
		Str("api", api).
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Msg("Executing API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("api", api).Msg("HTTP request failed")
		apiErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		apiRequestsTotal.WithLabelValues(api, "network_error").Inc()
		return nil, &APIError{
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	apiRequestsTotal.WithLabelValues(api, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		apiErr := c.decodeError(resp)
		apiErrorsTotal.WithLabelValues(string(apiErr.ErrorClass)).Inc()
		c.logger.Warn().
			Str("api", api).
			Int("status", resp.StatusCode).
			Str("error_class", string(apiErr.ErrorClass)).
			Str("errcode", apiErr.Code).
			Msg("API request error")
		return nil, apiErr
	}

	var payload pagination.Response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedPayload, err)
	}
	if payload == nil {
		payload = pagination.Response{}
	}

	return payload, nil
}

// newRequest builds the HTTP request for endpoint with opts.
func (c *Client) newRequest(ctx context.Context, endpoint Endpoint, opts pagination.Options) (*http.Request, error) {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + endpoint.Path

	var body io.Reader
	switch endpoint.Method {
	case http.MethodGet, http.MethodDelete, "":
		query := u.Query()
		for key, value := range opts {
			if value == nil {
				continue
			}
			formatted, err := formatQueryValue(value)
			if err != nil {
				return nil, fmt.Errorf("encode option %q: %w", key, err)
			}
			query.Set(key, formatted)
		}
		u.RawQuery = query.Encode()
	default:
		payload := opts
		if payload == nil {
			payload = pagination.Options{}
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	method := endpoint.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// formatQueryValue renders scalars as-is and everything else as JSON.
func formatQueryValue(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, json.Number:
		return fmt.Sprint(v), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

// decodeError turns an error response into an APIError.
func (c *Client) decodeError(resp *http.Response) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		ErrorClass: classifyStatus(resp.StatusCode),
		Message:    resp.Status,
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return apiErr
	}

	var body struct {
		Code    string `json:"errcode"`
		Message string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil {
		apiErr.Code = body.Code
		if body.Message != "" {
			apiErr.Message = body.Message
		}
	}

	return apiErr
}

// classifyStatus categorizes an HTTP error status.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// Identity identifies the session: the base URL plus a digest of the access
// token. The token itself never appears in the identity.
func (c *Client) Identity() string {
	if c.config.AccessToken == "" {
		return c.baseURL.String()
	}
	sum := sha256.Sum256([]byte(c.config.AccessToken))
	return c.baseURL.String() + "#" + hex.EncodeToString(sum[:6])
}

// WithAccessToken returns a client for the same server with a different
// access token. An empty token yields an anonymous client.
func (c *Client) WithAccessToken(token string) *Client {
	clone := *c
	clone.config.AccessToken = token
	clone.httpClient = newHTTPClient(c.config.Timeout, token)
	return &clone
}

// APIs returns the configured API selectors in sorted order.
func (c *Client) APIs() []string {
	names := make([]string, 0, len(c.config.Endpoints))
	for name := range c.config.Endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Endpoint returns the endpoint configured for api.
func (c *Client) Endpoint(api string) (Endpoint, bool) {
	endpoint, ok := c.config.Endpoints[api]
	return endpoint, ok
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

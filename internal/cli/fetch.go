package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/simple-apps-suite/simple-notes/pkg/cache"
	"github.com/simple-apps-suite/simple-notes/pkg/client"
	"github.com/simple-apps-suite/simple-notes/pkg/logging"
	"github.com/simple-apps-suite/simple-notes/pkg/metrics"
	"github.com/simple-apps-suite/simple-notes/pkg/pagination"
)

// FetchOptions holds flags for the fetch command.
type FetchOptions struct {
	*RootOptions
	Options   []string
	MaxPages  int
	BaseURL   string
	Token     string
	RedisAddr string
	CacheTTL  time.Duration
	Timeout   time.Duration
	Metrics   bool
}

// NewFetchCommand creates the fetch command.
func NewFetchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FetchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fetch <api>",
		Short: "Fetch every page of an API and print the merged result",
		Long: `Fetch every page of an API and print the merged result.

Option values are parsed as JSON when possible and sent as strings otherwise.

Example:
  pagefetch fetch publicRooms --base-url https://matrix.example.org --option limit=20 --max-pages 3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			applyFetchFlags(cmd, opts)
			return runFetch(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Options, "option", "o", nil, "call option as key=value (repeatable)")
	cmd.Flags().IntVar(&opts.MaxPages, "max-pages", 0, "stop after this many pages (0 = all)")
	cmd.Flags().StringVar(&opts.BaseURL, "base-url", "", "API base URL")
	cmd.Flags().StringVar(&opts.Token, "token", "", "access token")
	cmd.Flags().StringVar(&opts.RedisAddr, "redis-addr", "", "Redis address for the response cache (empty = no cache)")
	cmd.Flags().DurationVar(&opts.CacheTTL, "cache-ttl", cache.DefaultTTL, "response cache TTL")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "HTTP timeout per call")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print request metrics to stderr when done")

	return cmd
}

// applyFetchFlags lets explicitly set flags override the resolved config.
func applyFetchFlags(cmd *cobra.Command, opts *FetchOptions) {
	flags := cmd.Flags()
	cfg := &opts.Config
	if flags.Changed("base-url") {
		cfg.BaseURL = opts.BaseURL
	}
	if flags.Changed("token") {
		cfg.AccessToken = opts.Token
	}
	if flags.Changed("redis-addr") {
		cfg.Redis.Addr = opts.RedisAddr
	}
	if flags.Changed("cache-ttl") {
		cfg.Redis.TTL = opts.CacheTTL
	}
	if flags.Changed("timeout") {
		cfg.Timeout = opts.Timeout
	}
	if flags.Changed("max-pages") {
		cfg.Pagination.MaxPages = opts.MaxPages
	}
}

func runFetch(cmd *cobra.Command, opts *FetchOptions, api string) error {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return err
	}

	callOpts, err := parseOptions(opts.Options)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	stack, err := newClientStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer stack.Close()

	result, err := collect(ctx, cfg, stack.Client(), api, callOpts, cfg.Pagination.MaxPages)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(result.Response, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))

	if opts.Metrics {
		return metrics.WriteText(cmd.ErrOrStderr(), "request_", "api_", "response_cache_")
	}
	return nil
}

// clientStack is the API client, optionally behind the response cache.
type clientStack struct {
	api   *client.Client
	cache *cache.Client
	redis *redis.Client
}

func newClientStack(ctx context.Context, cfg Config) (*clientStack, error) {
	api, err := client.New(cfg.ClientConfig())
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	stack := &clientStack{api: api}
	if cfg.Redis.Addr == "" {
		return stack, nil
	}

	stack.redis = redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	})
	manager := cache.NewManager(stack.redis)
	if err := manager.Ping(ctx); err != nil {
		stack.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
	}
	stack.cache = cache.NewClient(api, manager, cfg.Redis.TTL)

	logger := logging.NewLogger("cli")
	logger.Info().
		Str("redis", cfg.Redis.Addr).
		Dur("ttl", cfg.Redis.TTL).
		Msg("Response cache enabled")

	return stack, nil
}

// Client returns the outermost pagination.Client of the stack.
func (s *clientStack) Client() pagination.Client {
	if s.cache != nil {
		return s.cache
	}
	return s.api
}

// WithAccessToken returns the stack for another session sharing the cache.
func (s *clientStack) WithAccessToken(token string) pagination.Client {
	api := s.api.WithAccessToken(token)
	if s.cache != nil {
		return s.cache.WithNext(api)
	}
	return api
}

func (s *clientStack) Close() {
	s.api.Close()
	if s.redis != nil {
		s.redis.Close()
	}
}

// fetchResult is the outcome of collect.
type fetchResult struct {
	Response pagination.Response
	Pages    int
	HasMore  bool
}

// collect opens a coordinator on api and loads pages until none remain or
// maxPages (0 = unbounded) is reached. A cursor given in opts pins every call
// to the same page, so only that page is loaded.
func collect(ctx context.Context, cfg Config, c pagination.Client, api string, opts pagination.Options, maxPages int) (fetchResult, error) {
	coordCfg := cfg.CoordinatorConfig()
	if opts.Has(coordCfg.CursorParam) {
		maxPages = 1
	}

	coord, err := pagination.New(coordCfg)
	if err != nil {
		return fetchResult{}, err
	}
	defer coord.Close()

	logger := logging.NewLogger("cli")

	coord.Open(c, api, opts)
	state, err := coord.Wait(ctx)
	if err != nil {
		return fetchResult{}, err
	}

	pages := 1
	for state.Err == nil && state.LoadMore != nil && (maxPages == 0 || pages < maxPages) {
		if err := ctx.Err(); err != nil {
			return fetchResult{}, err
		}
		if err := coord.LoadMore(); err != nil && !errors.Is(err, pagination.ErrNoMorePages) {
			return fetchResult{}, fmt.Errorf("load page %d of %s: %w", pages+1, api, err)
		}
		state = coord.State()
		pages++
	}

	if state.Err != nil {
		return fetchResult{}, fmt.Errorf("fetch %s: %w", api, state.Err)
	}

	logger.Info().
		Str("api", api).
		Int("pages", pages).
		Bool("has_more", state.LoadMore != nil).
		Msg("Fetch complete")

	return fetchResult{
		Response: state.Result,
		Pages:    pages,
		HasMore:  state.LoadMore != nil,
	}, nil
}

// parseOptions turns key=value pairs into call options.
func parseOptions(pairs []string) (pagination.Options, error) {
	opts := pagination.Options{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid option %q: want key=value", pair)
		}
		opts[key] = parseValue(value)
	}
	return opts, nil
}

// parseValue decodes JSON scalars and documents, falling back to the raw string.
func parseValue(value string) any {
	var decoded any
	if err := json.Unmarshal([]byte(value), &decoded); err == nil {
		return decoded
	}
	return value
}

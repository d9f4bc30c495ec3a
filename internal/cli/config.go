package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/simple-apps-suite/simple-notes/pkg/cache"
	"github.com/simple-apps-suite/simple-notes/pkg/client"
	"github.com/simple-apps-suite/simple-notes/pkg/logging"
	"github.com/simple-apps-suite/simple-notes/pkg/pagination"
)

// envPrefix prefixes every environment variable read by the CLI.
const envPrefix = "PAGEFETCH_"

// Config is the resolved CLI configuration. Values come from defaults, the
// YAML file, PAGEFETCH_* environment variables and flags, in that order.
type Config struct {
	BaseURL     string        `yaml:"base_url"`
	AccessToken string        `yaml:"access_token"`
	UserAgent   string        `yaml:"user_agent"`
	Timeout     time.Duration `yaml:"timeout"`
	LogLevel    string        `yaml:"log_level"`
	Pretty      bool          `yaml:"pretty"`

	Redis      RedisConfig               `yaml:"redis"`
	Pagination PaginationConfig          `yaml:"pagination"`
	Endpoints  map[string]EndpointConfig `yaml:"endpoints"`
}

// RedisConfig configures the optional response cache.
type RedisConfig struct {
	Addr string        `yaml:"addr"` // empty disables caching
	DB   int           `yaml:"db"`
	TTL  time.Duration `yaml:"ttl"`
}

// PaginationConfig configures the coordinator.
type PaginationConfig struct {
	CursorField     string        `yaml:"cursor_field"`
	CursorParam     string        `yaml:"cursor_param"`
	AccumulateField string        `yaml:"accumulate_field"`
	CallTimeout     time.Duration `yaml:"call_timeout"`
	MaxPages        int           `yaml:"max_pages"` // 0 = until exhausted
}

// EndpointConfig adds or overrides an API selector.
type EndpointConfig struct {
	Method string `yaml:"method"`
	Path   string `yaml:"path"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	clientDefaults := client.DefaultConfig("")
	pageDefaults := pagination.DefaultConfig()

	return Config{
		UserAgent: clientDefaults.UserAgent,
		Timeout:   clientDefaults.Timeout,
		LogLevel:  string(logging.LevelInfo),
		Redis: RedisConfig{
			TTL: cache.DefaultTTL,
		},
		Pagination: PaginationConfig{
			CursorField: pageDefaults.CursorField,
			CursorParam: pageDefaults.CursorParam,
		},
	}
}

// LoadConfig resolves defaults, the YAML file at path (skipped when empty)
// and the environment.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// applyEnv overrides fields from PAGEFETCH_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"BASE_URL":     &c.BaseURL,
		"ACCESS_TOKEN": &c.AccessToken,
		"USER_AGENT":   &c.UserAgent,
		"LOG_LEVEL":    &c.LogLevel,
		"REDIS_ADDR":   &c.Redis.Addr,
	}
	for name, field := range strs {
		if v, ok := lookup(envPrefix + name); ok {
			*field = v
		}
	}

	durations := map[string]*time.Duration{
		"TIMEOUT":   &c.Timeout,
		"CACHE_TTL": &c.Redis.TTL,
	}
	for name, field := range durations {
		if v, ok := lookup(envPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, name, err)
			}
			*field = d
		}
	}

	if v, ok := lookup(envPrefix + "PRETTY"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sPRETTY: %w", envPrefix, err)
		}
		c.Pretty = b
	}

	if v, ok := lookup(envPrefix + "MAX_PAGES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sMAX_PAGES: %w", envPrefix, err)
		}
		c.Pagination.MaxPages = n
	}

	return nil
}

// Validate checks the fields every command needs.
func (c Config) Validate() error {
	var errs []error
	if c.BaseURL == "" {
		errs = append(errs, errors.New("base url is required (--base-url or PAGEFETCH_BASE_URL)"))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Pagination.MaxPages < 0 {
		errs = append(errs, fmt.Errorf("max pages must be >= 0 (got %d)", c.Pagination.MaxPages))
	}
	if c.Redis.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache ttl must be >= 0 (got %s)", c.Redis.TTL))
	}
	for name, ep := range c.Endpoints {
		if ep.Path == "" {
			errs = append(errs, fmt.Errorf("endpoint %q: path is required", name))
		}
	}
	return errors.Join(errs...)
}

// ClientConfig derives the API client configuration.
func (c Config) ClientConfig() client.Config {
	cfg := client.DefaultConfig(c.BaseURL)
	cfg.AccessToken = c.AccessToken
	cfg.UserAgent = c.UserAgent
	cfg.Timeout = c.Timeout
	for name, ep := range c.Endpoints {
		cfg.Endpoints[name] = client.Endpoint{Method: ep.Method, Path: ep.Path}
	}
	return cfg
}

// CoordinatorConfig derives the coordinator configuration.
func (c Config) CoordinatorConfig() pagination.Config {
	return pagination.Config{
		CursorField:     c.Pagination.CursorField,
		CursorParam:     c.Pagination.CursorParam,
		AccumulateField: c.Pagination.AccumulateField,
		CallTimeout:     c.Pagination.CallTimeout,
	}
}

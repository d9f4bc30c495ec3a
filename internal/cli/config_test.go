package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "pagefetch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "next_batch", cfg.Pagination.CursorField)
	assert.Equal(t, "since", cfg.Pagination.CursorParam)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.Redis.TTL)
	assert.NotEmpty(t, cfg.UserAgent)
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
base_url: https://matrix.example.org
timeout: 5s
log_level: debug
redis:
  addr: localhost:6379
  ttl: 90s
pagination:
  cursor_field: next_token
  cursor_param: from
  call_timeout: 2s
  max_pages: 4
endpoints:
  messages:
    method: GET
    path: /_matrix/client/v3/rooms/!r/messages
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://matrix.example.org", cfg.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 90*time.Second, cfg.Redis.TTL)
	assert.Equal(t, 4, cfg.Pagination.MaxPages)
	assert.NotEmpty(t, cfg.UserAgent, "defaults survive a partial file")

	coord := cfg.CoordinatorConfig()
	assert.Equal(t, "next_token", coord.CursorField)
	assert.Equal(t, "from", coord.CursorParam)
	assert.Equal(t, 2*time.Second, coord.CallTimeout)

	clientCfg := cfg.ClientConfig()
	assert.Equal(t, "/_matrix/client/v3/rooms/!r/messages", clientCfg.Endpoints["messages"].Path)
	assert.Contains(t, clientCfg.Endpoints, "publicRooms", "configured endpoints extend the defaults")
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")

	_, err = LoadConfig(writeConfig(t, "timeout: [not a duration"))
	assert.ErrorContains(t, err, "parse config")
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "base_url: https://file.example.org\nlog_level: warn\n")
	t.Setenv("PAGEFETCH_BASE_URL", "https://env.example.org")
	t.Setenv("PAGEFETCH_CACHE_TTL", "1m")
	t.Setenv("PAGEFETCH_PRETTY", "true")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.org", cfg.BaseURL)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, time.Minute, cfg.Redis.TTL)
	assert.True(t, cfg.Pretty)
}

func TestApplyEnv(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		errorMsg string
		check    func(t *testing.T, cfg Config)
	}{
		{
			name: "all fields",
			env: map[string]string{
				"PAGEFETCH_ACCESS_TOKEN": "tok",
				"PAGEFETCH_USER_AGENT":   "agent/2",
				"PAGEFETCH_REDIS_ADDR":   "redis:6379",
				"PAGEFETCH_TIMEOUT":      "3s",
				"PAGEFETCH_MAX_PAGES":    "7",
			},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, "tok", cfg.AccessToken)
				assert.Equal(t, "agent/2", cfg.UserAgent)
				assert.Equal(t, "redis:6379", cfg.Redis.Addr)
				assert.Equal(t, 3*time.Second, cfg.Timeout)
				assert.Equal(t, 7, cfg.Pagination.MaxPages)
			},
		},
		{
			name:     "bad duration",
			env:      map[string]string{"PAGEFETCH_TIMEOUT": "soon"},
			errorMsg: "PAGEFETCH_TIMEOUT",
		},
		{
			name:     "bad bool",
			env:      map[string]string{"PAGEFETCH_PRETTY": "maybe"},
			errorMsg: "PAGEFETCH_PRETTY",
		},
		{
			name:     "bad int",
			env:      map[string]string{"PAGEFETCH_MAX_PAGES": "many"},
			errorMsg: "PAGEFETCH_MAX_PAGES",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			err := cfg.applyEnv(func(key string) (string, bool) {
				v, ok := tt.env[key]
				return v, ok
			})
			if tt.errorMsg != "" {
				assert.ErrorContains(t, err, tt.errorMsg)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := DefaultConfig()
	valid.BaseURL = "https://matrix.example.org"
	require.NoError(t, valid.Validate())

	tests := []struct {
		name     string
		mutate   func(c *Config)
		errorMsg string
	}{
		{"missing base url", func(c *Config) { c.BaseURL = "" }, "base url is required"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "unknown log level"},
		{"negative max pages", func(c *Config) { c.Pagination.MaxPages = -1 }, "max pages must be >= 0"},
		{"negative ttl", func(c *Config) { c.Redis.TTL = -time.Second }, "cache ttl must be >= 0"},
		{"endpoint without path", func(c *Config) {
			c.Endpoints = map[string]EndpointConfig{"x": {Method: "GET"}}
		}, `endpoint "x": path is required`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errorMsg)
		})
	}
}

func TestAPIsCommand(t *testing.T) {
	path := writeConfig(t, `
endpoints:
  messages:
    path: /_matrix/client/v3/rooms/!r/messages
`)

	stdout, _, err := execute(t, "apis", "--config", path)
	require.NoError(t, err)

	assert.Contains(t, stdout, "API")
	assert.Contains(t, stdout, "publicRooms")
	assert.Contains(t, stdout, "searchPublicRooms")
	assert.Contains(t, stdout, "POST")
	assert.Contains(t, stdout, "/_matrix/client/v3/rooms/!r/messages")
}

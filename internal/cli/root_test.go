package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and captures its output.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	cmd := NewRootCommand()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)

	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "pagefetch", cmd.Use)
	assert.Contains(t, cmd.Long, "continuation cursors")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"fetch", "apis", "serve", "purge"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "", configFlag.DefValue)

	levelFlag := cmd.PersistentFlags().Lookup("log-level")
	require.NotNil(t, levelFlag)
	assert.Equal(t, "info", levelFlag.DefValue)

	prettyFlag := cmd.PersistentFlags().Lookup("pretty")
	require.NotNil(t, prettyFlag)
	assert.Equal(t, "false", prettyFlag.DefValue)
}

func TestFetchCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	fetchCmd, _, err := cmd.Find([]string{"fetch"})
	require.NoError(t, err)

	optionFlag := fetchCmd.Flags().Lookup("option")
	require.NotNil(t, optionFlag)
	assert.Equal(t, "o", optionFlag.Shorthand)

	for _, name := range []string{"max-pages", "base-url", "token", "redis-addr", "cache-ttl", "timeout", "metrics"} {
		assert.NotNil(t, fetchCmd.Flags().Lookup(name), "flag %s", name)
	}
}

func TestInvalidLogLevel(t *testing.T) {
	_, _, err := execute(t, "apis", "--log-level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown log level")
}

func TestPurge_RequiresRedis(t *testing.T) {
	t.Setenv("PAGEFETCH_REDIS_ADDR", "")

	_, _, err := execute(t, "purge", "publicRooms")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis address is required")
}

package cli

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/simple-apps-suite/simple-notes/pkg/cache"
)

// NewPurgeCommand creates the purge command.
func NewPurgeCommand(rootOpts *RootOptions) *cobra.Command {
	var redisAddr string

	cmd := &cobra.Command{
		Use:   "purge [api]",
		Short: "Remove cached responses of one API, or of all APIs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.Config
			if cmd.Flags().Changed("redis-addr") {
				cfg.Redis.Addr = redisAddr
			}
			if cfg.Redis.Addr == "" {
				return errors.New("redis address is required (--redis-addr or PAGEFETCH_REDIS_ADDR)")
			}

			var api string
			if len(args) == 1 {
				api = args[0]
			}

			rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
			defer rdb.Close()

			removed, err := cache.NewManager(rdb).Purge(cmd.Context(), api)
			if err != nil {
				return fmt.Errorf("purge cache at %s: %w", cfg.Redis.Addr, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "removed %d cached responses\n", removed)
			return nil
		},
	}

	cmd.Flags().StringVar(&redisAddr, "redis-addr", "", "Redis address of the response cache")
	return cmd
}

// Package cli implements the pagefetch command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/simple-apps-suite/simple-notes/pkg/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	Pretty     bool

	// Config is resolved before any subcommand runs.
	Config Config
}

// NewRootCommand creates the root command for the pagefetch CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "pagefetch",
		Short: "Fetch and merge paginated API results",
		Long: `pagefetch drives a request coordinator against a JSON API: it requests
the first page, follows continuation cursors and prints the merged result.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().BoolVar(&opts.Pretty, "pretty", false, "human-readable logs")

	// Add subcommands
	cmd.AddCommand(NewFetchCommand(opts))
	cmd.AddCommand(NewAPIsCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewPurgeCommand(opts))

	return cmd
}

// resolve loads the configuration, applies global flags and sets up logging.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	cfg, err := LoadConfig(o.ConfigPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = o.LogLevel
	}
	if flags.Changed("pretty") {
		cfg.Pretty = o.Pretty
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}

	logging.Setup(logging.Config{
		Level:  level,
		Pretty: cfg.Pretty,
		Output: cmd.ErrOrStderr(),
	})

	o.Config = cfg
	return nil
}

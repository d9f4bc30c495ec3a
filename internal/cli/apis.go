package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/simple-apps-suite/simple-notes/pkg/client"
)

// NewAPIsCommand creates the apis command.
func NewAPIsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "apis",
		Short: "List the API selectors known to fetch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.Config
			if cfg.BaseURL == "" {
				// listing needs no server
				cfg.BaseURL = "http://localhost"
			}

			c, err := client.New(cfg.ClientConfig())
			if err != nil {
				return err
			}
			defer c.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "API\tMETHOD\tPATH")
			for _, name := range c.APIs() {
				endpoint, _ := c.Endpoint(name)
				method := endpoint.Method
				if method == "" {
					method = "GET"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", name, method, endpoint.Path)
			}
			return w.Flush()
		},
	}
}

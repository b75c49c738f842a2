package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the hybridgraph CLI version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("hybridgraph %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
			return nil
		},
	}
}

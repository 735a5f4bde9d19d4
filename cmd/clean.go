package cmd

import (
	"github.com/spf13/cobra"
)

// cleanCmd represents the clean command.
var cleanCmd = newCleanCmd()

func newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove uploaded maps from the engine",
		Long:  cleanLongDescription,
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return workflow.Clean(cmd.Context())
		},
	}

	return cmd
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}

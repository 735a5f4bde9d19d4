package cmd

import (
	"github.com/spf13/cobra"
)

// listCmd represents the list command.
var listCmd = newListCmd()
var listMapFlags []string

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the mapping rules a run would verify",
		Long:  listLongDescription,
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDryRun(cmd, parseMaps(listMapFlags))
		},
	}
	cmd.Flags().StringArrayVarP(&listMapFlags, "map", "m", nil, "list only the named mapping file (can be repeated)")

	return cmd
}

func init() {
	rootCmd.AddCommand(listCmd)
}

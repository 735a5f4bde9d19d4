package cmd

import (
	"github.com/spf13/cobra"

	"github.com/BAL-DMU/mapcov/internal/controller"
	m "github.com/BAL-DMU/mapcov/internal/model"
)

// viewCmd represents the view command.
var viewCmd = newViewCmd()
var viewReportFlag string

func newViewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view",
		Short: "View a previously generated coverage report",
		Long:  "View a previously generated coverage report without rerunning verification.",
		Args:  cobra.ExactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			path := cfg.Report.Path
			if viewReportFlag != "" {
				path = viewReportFlag
			}

			report, err := reportStore.Load(m.Path(path))
			if err != nil {
				return err
			}

			if err := ui.Start(controller.WithViewMode()); err != nil {
				return err
			}
			defer ui.Close()

			ui.DisplayReport(report)
			ui.Wait()

			return nil
		},
	}
	cmd.Flags().StringVar(&viewReportFlag, "report", "", "report path to view (overrides configuration)")

	return cmd
}

func init() {
	rootCmd.AddCommand(viewCmd)
}

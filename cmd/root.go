// Package cmd provides the root command and CLI setup for mapcov.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BAL-DMU/mapcov/internal/adapter"
	"github.com/BAL-DMU/mapcov/internal/config"
	"github.com/BAL-DMU/mapcov/internal/controller"
	"github.com/BAL-DMU/mapcov/internal/domain"
	"github.com/BAL-DMU/mapcov/internal/logging"
	m "github.com/BAL-DMU/mapcov/internal/model"
)

var cfg *config.Config
var reportStore adapter.ReportStore
var workflow domain.Workflow
var ui controller.UI

var configFlag string
var verbosityFlag int
var noTTYFlag bool
var mapFlags []string
var dryRunFlag bool
var strictFlag bool
var depthFlag int
var reportFlag string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "mapcov",
		Short:             "Coverage verifier for FHIR mapping rules",
		Long:              rootLongDescription,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		RunE: func(cmd *cobra.Command, _ []string) error {
			maps := parseMaps(mapFlags)

			if dryRunFlag {
				return runDryRun(cmd, maps)
			}

			return runVerify(cmd, maps)
		},
	}

	cmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "configuration file (default mapcov.yaml if present)")
	cmd.PersistentFlags().CountVarP(&verbosityFlag, "verbose", "v", "increase log verbosity (-v info, -vv debug)")
	cmd.PersistentFlags().BoolVar(&noTTYFlag, "no-tty", false, "disable the interactive terminal UI")

	cmd.Flags().StringArrayVarP(&mapFlags, "map", "m", nil, "verify only the named mapping file (can be repeated)")
	cmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "list the rules that would be verified without touching the engine")
	cmd.Flags().BoolVar(&strictFlag, "strict", false, "fail the run when rules had to be skipped")
	cmd.Flags().IntVar(&depthFlag, "depth", -1, "verify only rules nested at most this deep (-1 for all)")
	cmd.Flags().StringVar(&reportFlag, "report", "", "report output path (overrides configuration)")

	return cmd
}

// setup loads the configuration and builds the adapter stack. It runs
// as PersistentPreRunE so every subcommand gets the same wiring.
func setup(cmd *cobra.Command, _ []string) error {
	var err error

	cfg, err = config.Load(configFlag)
	if err != nil {
		return err
	}

	logging.Init(logging.LevelFromVerbosity(verbosityFlag), "text", cmd.ErrOrStderr())

	client, err := adapter.NewMatchbox(cfg.Engine.BaseURL, cfg.Engine.CanonicalBase,
		adapter.WithTimeout(cfg.Engine.RequestTimeout.Std()),
		adapter.WithStartupTimeout(cfg.Engine.StartupTimeout.Std()),
		adapter.WithPollInterval(cfg.Engine.PollInterval.Std()),
	)
	if err != nil {
		return err
	}

	runner := adapter.NewPytestRunner(cfg.Tests.Runner, cfg.Tests.Args, ".", cfg.Tests.Timeout.Std())
	engine := adapter.NewEngine(client, runner)
	mapStore := adapter.NewMapStore(cfg.Maps.Dir)
	assoc := adapter.NewTestAssociation(cfg.Tests.Dir, cfg.Tests.Overrides)
	reportStore = adapter.NewReportStore()

	useTTY := controller.IsTTY(os.Stdout) && !noTTYFlag
	ui = controller.NewUI(cmd.Root(), useTTY)

	orchestrator := domain.NewOrchestrator(engine, cfg.Retry.Backoff.Std())
	workflow = domain.NewWorkflow(
		mapStore,
		reportStore,
		assoc,
		engine,
		ui,
		orchestrator,
		domain.NewExtractor(),
		cfg.Maps.Order,
	)

	return nil
}

// runVerify performs a full verification run and turns coverage gaps
// into a non-zero exit.
func runVerify(cmd *cobra.Command, maps []m.Path) error {
	reportPath := cfg.Report.Path
	if reportFlag != "" {
		reportPath = reportFlag
	}

	if err := ui.Start(controller.WithRunMode()); err != nil {
		return err
	}
	defer ui.Close()

	report, err := workflow.Verify(cmd.Context(), domain.VerifyArgs{
		Maps:       maps,
		MaxDepth:   depthFlag,
		ReportPath: reportPath,
	})
	if err != nil {
		return err
	}

	ui.Wait()

	if !report.Clean(strictFlag) {
		counts := report.Counts()

		return fmt.Errorf("coverage gaps: %d missing, %d errors, %d skipped",
			counts[m.StatusMissing], counts[m.StatusError], counts[m.StatusSkipped])
	}

	return nil
}

// runDryRun lists the rules that a verification run would mutate. The
// engine is never contacted.
func runDryRun(cmd *cobra.Command, maps []m.Path) error {
	if err := ui.Start(controller.WithListMode()); err != nil {
		return err
	}
	defer ui.Close()

	sets, err := workflow.ListRuleSets(cmd.Context(), maps)
	if err != nil {
		return err
	}

	ui.DisplayRuleSets(sets)
	ui.Wait()

	return nil
}

func parseMaps(names []string) []m.Path {
	maps := make([]m.Path, 0, len(names))
	for _, name := range names {
		maps = append(maps, m.Path(name))
	}

	return maps
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		os.Exit(1)
	}
}

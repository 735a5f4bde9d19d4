package controller

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	m "github.com/BAL-DMU/mapcov/internal/model"
)

// SimpleUI implements UI using cobra Command's output writer.
type SimpleUI struct {
	cmd *cobra.Command
}

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

// Start initializes the UI.
func (s *SimpleUI) Start(_ ...StartOption) error {
	return nil
}

// Close finalizes the UI.
func (s *SimpleUI) Close() {

}

// Wait returns immediately; plain output has nothing to wait for.
func (s *SimpleUI) Wait() {

}

// DisplayRuleSets prints one table of rules per mapping file.
func (s *SimpleUI) DisplayRuleSets(sets []m.RuleSet) {
	total := 0

	for _, set := range sets {
		s.printf("\n%s (%s)\n", set.File, set.URL)

		var tableBuffer bytes.Buffer

		table := tablewriter.NewWriter(&tableBuffer)
		table.SetHeader([]string{"Lines", "Group", "Kind", "Rule", "Label"})
		table.SetBorder(false)
		table.SetCenterSeparator("")
		table.SetColumnAlignment([]int{
			tablewriter.ALIGN_LEFT,
			tablewriter.ALIGN_LEFT,
			tablewriter.ALIGN_LEFT,
			tablewriter.ALIGN_LEFT,
			tablewriter.ALIGN_LEFT,
		})

		for _, rule := range set.Rules {
			table.Append([]string{rule.Span(), rule.Group, string(rule.Kind), rule.Desc, rule.Label})
		}

		table.Render()
		s.printf("%s", tableBuffer.String())

		total += len(set.Rules)
	}

	s.printf("\n%d rules in %d maps\n", total, len(sets))
}

// DisplayRunStart announces the size of the verification run.
func (s *SimpleUI) DisplayRunStart(files, rules int) {
	s.printf("Verifying %d rules across %d maps\n", rules, files)
}

// DisplayRuleStart is a no-op; SimpleUI prints one line per result.
func (s *SimpleUI) DisplayRuleStart(_ m.Rule, _, _ int) {

}

// DisplayRuleResult prints the classification of one rule.
func (s *SimpleUI) DisplayRuleResult(result m.CoverageResult, done, total int) {
	detail := ""

	switch {
	case len(result.Evidence) > 0:
		detail = fmt.Sprintf(" (%s)", strings.Join(result.Evidence, ", "))
	case result.Reason != "":
		detail = fmt.Sprintf(" (%s)", result.Reason)
	}

	s.printf("[%d/%d] %s %s %s -> %s%s\n",
		done, total, result.Rule.File, result.Rule.Span(), result.Rule.Desc, result.Status, detail)
}

// DisplayReport prints the per-map summary table and the list of rules
// that still need tests.
func (s *SimpleUI) DisplayReport(report m.Report) {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Map", "Covered", "Missing", "Error", "Skipped"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_CENTER,
	})

	for _, file := range report.Files {
		if file.Err != "" {
			table.Append([]string{fmt.Sprintf("%s (unparseable)", file.Set.File), "-", "-", "-", "-"})

			continue
		}

		counts := file.Counts()
		table.Append([]string{
			string(file.Set.File),
			fmt.Sprintf("%d", counts[m.StatusCovered]),
			fmt.Sprintf("%d", counts[m.StatusMissing]),
			fmt.Sprintf("%d", counts[m.StatusError]),
			fmt.Sprintf("%d", counts[m.StatusSkipped]),
		})
	}

	totals := report.Counts()
	table.SetFooter([]string{
		fmt.Sprintf("Total %d", report.Total()),
		fmt.Sprintf("%d", totals[m.StatusCovered]),
		fmt.Sprintf("%d", totals[m.StatusMissing]),
		fmt.Sprintf("%d", totals[m.StatusError]),
		fmt.Sprintf("%d", totals[m.StatusSkipped]),
	})

	table.Render()
	s.printf("\n%s", tableBuffer.String())
	s.printf("\nRule coverage: %.1f%%\n", report.CoveragePct())

	missing := report.Missing()
	if len(missing) == 0 {
		return
	}

	s.printf("\nTESTS TO ADD (%d rules without coverage):\n", len(missing))

	for _, res := range missing {
		s.printf("  %s %s  %s\n", res.Rule.File, res.Rule.Span(), res.Rule.Desc)
	}
}

func (s *SimpleUI) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.cmd.OutOrStdout(), format, args...)
}

package controller

import (
	"io"

	tea "github.com/charmbracelet/bubbletea"

	m "github.com/BAL-DMU/mapcov/internal/model"
)

// TUI implements UI using Bubble Tea for interactive display.
type TUI struct {
	output  io.Writer
	program *tea.Program
	done    chan struct{}
}

// NewTUI creates a new TUI.
func NewTUI(output io.Writer) *TUI {
	return &TUI{output: output}
}

// Start launches the Bubble Tea program in the background. Display
// calls from the workflow are forwarded to it as messages.
func (t *TUI) Start(options ...StartOption) error {
	cfg := &StartConfig{}
	for _, opt := range options {
		opt(cfg)
	}

	t.program = tea.NewProgram(newRunModel(cfg.mode), tea.WithOutput(t.output))
	t.done = make(chan struct{})

	go func() {
		_, _ = t.program.Run()
		close(t.done)
	}()

	return nil
}

// Close shuts the program down and waits for its goroutine to exit.
func (t *TUI) Close() {
	if t.program == nil {
		return
	}

	t.program.Quit()
	<-t.done
}

// Wait blocks until the user closes the UI.
func (t *TUI) Wait() {
	if t.done != nil {
		<-t.done
	}
}

// DisplayRuleSets shows the extracted rules of each mapping file.
func (t *TUI) DisplayRuleSets(sets []m.RuleSet) {
	t.send(ruleSetsMsg{sets: sets})
}

// DisplayRunStart announces the size of the verification run.
func (t *TUI) DisplayRunStart(files, rules int) {
	t.send(runStartMsg{files: files, rules: rules})
}

// DisplayRuleStart shows which rule is being verified.
func (t *TUI) DisplayRuleStart(rule m.Rule, done, total int) {
	t.send(ruleStartMsg{rule: rule, done: done, total: total})
}

// DisplayRuleResult shows the classification of one rule.
func (t *TUI) DisplayRuleResult(result m.CoverageResult, done, total int) {
	t.send(ruleResultMsg{result: result, done: done, total: total})
}

// DisplayReport switches the UI to the final report view.
func (t *TUI) DisplayReport(report m.Report) {
	t.send(reportMsg{report: report})
}

func (t *TUI) send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

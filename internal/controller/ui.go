// Package controller provides output adapters for displaying coverage
// verification progress and results.
package controller

import (
	m "github.com/BAL-DMU/mapcov/internal/model"
)

// StartMode defines the mode of operation for the UI.
type StartMode int

// Available StartMode values.
const (
	ModeRun StartMode = iota
	ModeList
	ModeView
)

// StartOption is a functional option for the Start method.
type StartOption func(*StartConfig)

// StartConfig holds configuration for starting the UI.
type StartConfig struct {
	mode StartMode
}

// WithRunMode sets the UI to verification run mode.
func WithRunMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModeRun
	}
}

// WithListMode sets the UI to rule listing mode.
func WithListMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModeList
	}
}

// WithViewMode sets the UI to report viewing mode.
func WithViewMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModeView
	}
}

// UI defines the interface for displaying verification progress and
// results. Implementations can use different output methods (simple
// text, TUI, etc).
type UI interface {
	Start(options ...StartOption) error
	Close()
	Wait() // Wait for UI to finish (user closes it)
	DisplayRuleSets(sets []m.RuleSet)
	DisplayRunStart(files, rules int)
	DisplayRuleStart(rule m.Rule, done, total int)
	DisplayRuleResult(result m.CoverageResult, done, total int)
	DisplayReport(report m.Report)
}

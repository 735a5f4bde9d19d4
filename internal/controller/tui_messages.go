package controller

import (
	"time"

	m "github.com/BAL-DMU/mapcov/internal/model"
)

// Message types.
type ruleSetsMsg struct {
	sets []m.RuleSet
}

type runStartMsg struct {
	files int
	rules int
}

type ruleStartMsg struct {
	rule  m.Rule
	done  int
	total int
}

type ruleResultMsg struct {
	result m.CoverageResult
	done   int
	total  int
}

type reportMsg struct {
	report m.Report
}

type tickMsg time.Time

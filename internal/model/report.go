package model

import "time"

// Status classifies the coverage signal for one rule.
type Status string

const (
	// StatusCovered means at least one associated test failed while the
	// rule was disabled: the suite notices when this rule breaks.
	StatusCovered Status = "COVERED"
	// StatusMissing means every associated test passed while the rule was
	// disabled, or the file has no associated tests at all.
	StatusMissing Status = "MISSING"
	// StatusError means upload or test execution failed with an
	// infrastructure fault on both the attempt and the retry.
	StatusError Status = "ERROR"
	// StatusSkipped means the rule could not be safely mutated and was
	// excluded from testing, with a recorded reason.
	StatusSkipped Status = "SKIPPED"
)

// TestOutcome is the verdict of one test execution.
type TestOutcome struct {
	Passed  bool
	Message string
}

// CoverageResult is the classification of a single rule.
type CoverageResult struct {
	Rule     Rule
	Status   Status
	Evidence []string `yaml:",omitempty"` // failing test ids, for COVERED
	Reason   string   `yaml:",omitempty"` // explanation, for SKIPPED and ERROR
}

// FileResult holds the ordered coverage results for one mapping file.
type FileResult struct {
	Set     RuleSet
	Results []CoverageResult
	Err     string `yaml:",omitempty"` // set when the file could not be parsed
}

// Counts tallies the file's results by status.
func (f FileResult) Counts() map[Status]int {
	counts := make(map[Status]int)
	for _, res := range f.Results {
		counts[res.Status]++
	}
	return counts
}

// Report aggregates coverage results across all verified files.
type Report struct {
	Started  time.Time
	Finished time.Time
	Files    []FileResult
}

// Counts tallies results by status across all files.
func (r Report) Counts() map[Status]int {
	counts := make(map[Status]int)
	for _, f := range r.Files {
		for status, n := range f.Counts() {
			counts[status] += n
		}
	}
	return counts
}

// Total returns the number of classified rules, skipped included.
func (r Report) Total() int {
	total := 0
	for _, f := range r.Files {
		total += len(f.Results)
	}
	return total
}

// Clean reports whether the run proved full coverage: zero MISSING and
// zero ERROR results. Skipped rules indicate a tooling limitation, not a
// proven gap, and only fail the run in strict mode.
func (r Report) Clean(strict bool) bool {
	counts := r.Counts()
	if counts[StatusMissing] > 0 || counts[StatusError] > 0 {
		return false
	}
	if strict && counts[StatusSkipped] > 0 {
		return false
	}
	return true
}

// CoveragePct returns the covered share of all tested rules, in percent.
// Skipped rules are excluded from the denominator.
func (r Report) CoveragePct() float64 {
	counts := r.Counts()
	tested := counts[StatusCovered] + counts[StatusMissing] + counts[StatusError]
	if tested == 0 {
		return 0
	}
	return float64(counts[StatusCovered]) / float64(tested) * 100
}

// Missing returns every rule classified MISSING, in report order.
func (r Report) Missing() []CoverageResult {
	var missing []CoverageResult
	for _, f := range r.Files {
		for _, res := range f.Results {
			if res.Status == StatusMissing {
				missing = append(missing, res)
			}
		}
	}
	return missing
}

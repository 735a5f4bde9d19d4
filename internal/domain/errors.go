package domain

import (
	"errors"
	"fmt"

	m "github.com/BAL-DMU/mapcov/internal/model"
)

// ParseError means rule boundaries could not be determined: brace or
// string nesting is unbalanced, or a statement never reaches its
// terminator. The scanner fails loudly instead of guessing, so no
// silently wrong mutant is ever produced.
type ParseError struct {
	File   m.Path
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s:%d: %s", e.File, e.Line, e.Reason)
}

// UnsafeMutationError means a rule cannot be disabled without producing
// text the engine would reject, typically because a multi-line string
// literal crosses the rule boundary.
type UnsafeMutationError struct {
	Rule   m.Rule
	Reason string
}

func (e *UnsafeMutationError) Error() string {
	return fmt.Sprintf("unsafe mutation of %s: %s", e.Rule.ID(), e.Reason)
}

// SkipReason extracts the reason when err is rule-local: a ParseError or
// an UnsafeMutationError. Rule-local errors mark one rule as skipped and
// never abort the run.
func SkipReason(err error) (string, bool) {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return parseErr.Reason, true
	}

	var unsafeErr *UnsafeMutationError
	if errors.As(err, &unsafeErr) {
		return unsafeErr.Reason, true
	}

	return "", false
}

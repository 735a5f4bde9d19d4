package domain

import (
	"fmt"
	"strings"

	m "github.com/BAL-DMU/mapcov/internal/model"
)

// Mutator produces a single-rule-disabled variant of a mapping file.
// Every line of the rule span gains the mutation prefix; text outside
// the span stays byte-identical and the total line count is unchanged,
// so the spans of all other rules remain valid in the mutated text.
// Pure: no I/O, no engine interaction.
type Mutator interface {
	Apply(content string, rule m.Rule) (m.Mutation, error)
}

type mutator struct{}

// NewMutator creates a new Mutator instance.
func NewMutator() Mutator {
	return &mutator{}
}

func (mu *mutator) Apply(content string, rule m.Rule) (m.Mutation, error) {
	lines := strings.Split(content, "\n")

	if rule.StartLine < 1 || rule.EndLine < rule.StartLine || rule.EndLine > len(lines) {
		return m.Mutation{}, &UnsafeMutationError{
			Rule:   rule,
			Reason: fmt.Sprintf("span %s outside file of %d lines", rule.Span(), len(lines)),
		}
	}

	metas, end := scanLines(lines)
	if err := mu.checkBoundaries(rule, lines, metas, end); err != nil {
		return m.Mutation{}, err
	}

	mutated := make([]string, len(lines))
	copy(mutated, lines)

	for i := rule.StartLine - 1; i < rule.EndLine; i++ {
		mutated[i] = m.MutationPrefix + lines[i]
	}

	return m.Mutation{
		Rule:     rule,
		Original: content,
		Mutated:  strings.Join(mutated, "\n"),
	}, nil
}

// checkBoundaries refuses spans that a line-by-line comment prefix would
// not neutralize: a literal or block comment crossing the span boundary
// keeps part of the rule live, or breaks the text for rules outside the
// span. A multi-line literal fully inside the span is fine because all
// of its lines are disabled together.
func (mu *mutator) checkBoundaries(rule m.Rule, lines []string, metas []lineMeta, end scanEnd) error {
	if end.inString {
		return &UnsafeMutationError{Rule: rule, Reason: "file contains an unterminated string literal"}
	}

	first := metas[rule.StartLine-1]
	if first.startsInString {
		return &UnsafeMutationError{Rule: rule, Reason: "rule starts inside a multi-line string literal"}
	}

	if first.startsInComment {
		return &UnsafeMutationError{Rule: rule, Reason: "rule starts inside a block comment"}
	}

	if rule.EndLine < len(lines) {
		after := metas[rule.EndLine]
		if after.startsInString {
			return &UnsafeMutationError{Rule: rule, Reason: "a string literal extends past the end of the rule"}
		}

		if after.startsInComment {
			return &UnsafeMutationError{Rule: rule, Reason: "a block comment extends past the end of the rule"}
		}
	}

	return nil
}

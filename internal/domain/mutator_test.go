package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "github.com/BAL-DMU/mapcov/internal/model"
)

// unsafeFixture has a string literal on lines 2-4 and a block comment on
// lines 5-6, so span boundaries can be placed on either side of both.
const unsafeFixture = `group G(source src, target tgt) {
  src.note as n -> tgt.text = 'first
middle
last' "note";
  /* explanation
     continues */
  src.a as a -> tgt.a = a "a";
}
`

func TestMutator_DisablesSingleLineRule(t *testing.T) {
	rule := m.Rule{File: "patient.map", StartLine: 7, EndLine: 7}

	mutation, err := NewMutator().Apply(patientMap, rule)
	require.NoError(t, err)

	assert.Equal(t, rule, mutation.Rule)
	assert.Equal(t, patientMap, mutation.Original)

	original := strings.Split(patientMap, "\n")
	mutated := strings.Split(mutation.Mutated, "\n")
	require.Len(t, mutated, len(original))

	for i := range original {
		if i == 6 {
			assert.Equal(t, m.MutationPrefix+original[i], mutated[i])
			continue
		}

		assert.Equal(t, original[i], mutated[i], "line %d", i+1)
	}
}

func TestMutator_DisablesMultiLineRule(t *testing.T) {
	rule := m.Rule{File: "patient.map", StartLine: 8, EndLine: 10}

	mutation, err := NewMutator().Apply(patientMap, rule)
	require.NoError(t, err)

	original := strings.Split(patientMap, "\n")
	mutated := strings.Split(mutation.Mutated, "\n")
	require.Len(t, mutated, len(original))

	for i := range original {
		if i >= 7 && i <= 9 {
			assert.Equal(t, m.MutationPrefix+original[i], mutated[i], "line %d", i+1)
			continue
		}

		assert.Equal(t, original[i], mutated[i], "line %d", i+1)
	}
}

func TestMutator_RejectsSpanOutsideFile(t *testing.T) {
	tests := []struct {
		name       string
		start, end int
	}{
		{"start before file", 0, 1},
		{"end before start", 4, 3},
		{"end past file", 4, 999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := m.Rule{File: "patient.map", StartLine: tt.start, EndLine: tt.end}

			_, err := NewMutator().Apply(patientMap, rule)
			require.Error(t, err)

			var unsafeErr *UnsafeMutationError
			require.ErrorAs(t, err, &unsafeErr)
			assert.Contains(t, unsafeErr.Reason, "outside file")
		})
	}
}

func TestMutator_RejectsBoundaryCrossingSpans(t *testing.T) {
	tests := []struct {
		name       string
		start, end int
		reason     string
	}{
		{"rule starts inside string", 3, 4, "rule starts inside a multi-line string literal"},
		{"string extends past rule", 2, 2, "a string literal extends past the end of the rule"},
		{"rule starts inside comment", 6, 7, "rule starts inside a block comment"},
		{"comment extends past rule", 5, 5, "a block comment extends past the end of the rule"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := m.Rule{File: "notes.map", StartLine: tt.start, EndLine: tt.end}

			_, err := NewMutator().Apply(unsafeFixture, rule)
			require.Error(t, err)

			var unsafeErr *UnsafeMutationError
			require.ErrorAs(t, err, &unsafeErr)
			assert.Equal(t, tt.reason, unsafeErr.Reason)
			assert.Contains(t, err.Error(), rule.ID())
		})
	}
}

func TestMutator_AllowsLiteralFullyInsideSpan(t *testing.T) {
	rule := m.Rule{File: "notes.map", StartLine: 2, EndLine: 4}

	mutation, err := NewMutator().Apply(unsafeFixture, rule)
	require.NoError(t, err)

	mutated := strings.Split(mutation.Mutated, "\n")
	assert.True(t, strings.HasPrefix(mutated[1], m.MutationPrefix))
	assert.True(t, strings.HasPrefix(mutated[2], m.MutationPrefix))
	assert.True(t, strings.HasPrefix(mutated[3], m.MutationPrefix))
	assert.Equal(t, strings.Count(unsafeFixture, "\n"), strings.Count(mutation.Mutated, "\n"))
}

func TestMutator_RejectsUnterminatedFile(t *testing.T) {
	rule := m.Rule{File: "bad.map", StartLine: 1, EndLine: 1}

	_, err := NewMutator().Apply("x -> y = 'open", rule)
	require.Error(t, err)

	var unsafeErr *UnsafeMutationError
	require.ErrorAs(t, err, &unsafeErr)
	assert.Equal(t, "file contains an unterminated string literal", unsafeErr.Reason)
}

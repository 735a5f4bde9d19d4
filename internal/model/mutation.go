// Package model defines the data structures for mapping rule coverage
// verification.
package model

// MutationPrefix is prepended to every line of a disabled rule. To the
// mapping engine the prefixed lines are comments; the line count of the
// file stays unchanged so the spans of all other rules remain valid.
const MutationPrefix = "// MUTATION: "

// Mutation is a single-rule-disabled variant of one mapping file. It
// exists only for the duration of that rule's verify cycle and is never
// persisted.
type Mutation struct {
	Rule     Rule
	Original string
	Mutated  string
}

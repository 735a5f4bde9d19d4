package model

import "fmt"

// Path represents a file system path or a mapping file key.
type Path string

// RuleKind categorizes what a mapping rule does. Kinds are display
// metadata for reports; they never influence coverage classification.
type RuleKind string

const (
	// KindID represents identifier construction rules (uuid(), 'prefix' + id).
	KindID RuleKind = "id"

	// KindTranslate represents concept map translate(...) calls.
	KindTranslate RuleKind = "translate"

	// KindCall represents invocations of named helper groups.
	KindCall RuleKind = "call"

	// KindCreate represents create('Type') rules populating a nested block.
	KindCreate RuleKind = "create"

	// KindField represents plain field-to-field mappings.
	KindField RuleKind = "field"

	// KindUnknown marks rules no classifier matched. Still verified.
	KindUnknown RuleKind = "unknown"
)

// Rule is one discrete mapping statement within a mapping file.
// The authoritative identity for reporting is (File, StartLine, EndLine);
// Label is a display hint and may collide across groups.
type Rule struct {
	File      Path
	StartLine int // 1-based, inclusive
	EndLine   int // 1-based, inclusive
	Depth     int // 0 = group level, >0 = nested inside then-blocks
	Group     string
	Label     string
	Kind      RuleKind
	Desc      string // short human summary synthesized from the rule text
	Text      string // exact source slice, without trailing newline
}

// ID returns the authoritative rule identity.
func (r Rule) ID() string {
	return fmt.Sprintf("%s:%d-%d", r.File, r.StartLine, r.EndLine)
}

// Span renders the line range for display.
func (r Rule) Span() string {
	if r.StartLine == r.EndLine {
		return fmt.Sprintf("L%d", r.StartLine)
	}
	return fmt.Sprintf("L%d-L%d", r.StartLine, r.EndLine)
}

// RuleSet is the ordered list of rules extracted from one mapping file,
// plus the file's declared imports. Imports are used only to decide the
// baseline upload order. A RuleSet is rebuilt from current file content
// on every run and never cached.
type RuleSet struct {
	File    Path
	Name    string   // map name from the map declaration header
	URL     string   // canonical map url from the map declaration header
	Imports []string // canonical urls of imported maps
	Rules   []Rule
}

// AtDepth returns the rules whose nesting depth does not exceed max.
// A negative max returns all rules.
func (s RuleSet) AtDepth(max int) []Rule {
	if max < 0 {
		return s.Rules
	}
	var rules []Rule
	for _, r := range s.Rules {
		if r.Depth <= max {
			rules = append(rules, r)
		}
	}
	return rules
}

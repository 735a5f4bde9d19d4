// Package domain contains the core rule extraction, mutation and
// coverage verification logic.
package domain

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/BAL-DMU/mapcov/internal/logging"
	m "github.com/BAL-DMU/mapcov/internal/model"
)

// Statement and header recognition. The extractor is a boundary scanner,
// not a grammar implementation: it only understands enough of the mapping
// language to find rule spans, labels and imports.
var (
	stmtStartRe  = regexp.MustCompile(`^\w+(\.[\w.]+)?(\s+first)?\s+(as\s+\w+\s*)?(->|then|where)`)
	mapHeaderRe  = regexp.MustCompile(`^map\s+"([^"]+)"\s*=\s*"?([\w.-]+)"?`)
	importsRe    = regexp.MustCompile(`^imports\s+"([^"]+)"`)
	groupRe      = regexp.MustCompile(`^group\s+(\w+)\s*\(`)
	conceptmapRe = regexp.MustCompile(`^conceptmap\s+`)
)

// Extractor parses mapping file text into an ordered RuleSet. It fails
// with ParseError when brace or string nesting is unbalanced at end of
// input, or a statement never reaches its terminator.
type Extractor interface {
	Extract(file m.Path, content string) (m.RuleSet, error)
}

type extractor struct {
	logger *slog.Logger
}

// NewExtractor creates a new Extractor instance.
func NewExtractor() Extractor {
	return &extractor{logger: logging.New("extractor")}
}

// openStmt is a statement whose terminator has not been reached yet.
type openStmt struct {
	line  int // 1-based start line
	depth int // brace depth at the statement start
	group string
}

func (e *extractor) Extract(file m.Path, content string) (m.RuleSet, error) {
	set := m.RuleSet{File: file}
	lines := strings.Split(content, "\n")

	metas, end := scanLines(lines)
	if end.inString {
		return m.RuleSet{}, &ParseError{File: file, Line: end.stringLine, Reason: "unterminated string literal at end of input"}
	}

	var (
		depth int
		cmap  bool
		group string
		stack []openStmt
		rules []m.Rule
	)

	for i, line := range lines {
		ln := i + 1
		meta := metas[i]

		// Lines opening inside a literal or a block comment are data,
		// never statement starts.
		if !meta.startsInString && !meta.startsInComment {
			trimmed := strings.TrimSpace(line)

			if depth == 0 && len(stack) == 0 {
				switch {
				case mapHeaderRe.MatchString(trimmed):
					header := mapHeaderRe.FindStringSubmatch(trimmed)
					set.URL, set.Name = header[1], header[2]
				case importsRe.MatchString(trimmed):
					set.Imports = append(set.Imports, importsRe.FindStringSubmatch(trimmed)[1])
				case groupRe.MatchString(trimmed):
					group = groupRe.FindStringSubmatch(trimmed)[1]
				case conceptmapRe.MatchString(trimmed):
					cmap = true
				}
			} else if !cmap && depth >= 1 && stmtStartRe.MatchString(trimmed) {
				// A new statement may only open when nothing is pending at
				// this depth; continuation lines never match the start
				// pattern.
				if len(stack) == 0 || depth > stack[len(stack)-1].depth {
					stack = append(stack, openStmt{line: ln, depth: depth, group: group})
				}
			}
		}

		for _, ev := range meta.events {
			switch ev.ch {
			case '{':
				depth++
			case '}':
				depth--
				if depth < 0 {
					return m.RuleSet{}, &ParseError{File: file, Line: ln, Reason: "unbalanced closing brace"}
				}

				if depth == 0 {
					cmap = false
					group = ""
				}
			case ';':
				if len(stack) == 0 {
					continue // header terminator, e.g. a uses declaration
				}

				top := stack[len(stack)-1]
				if depth != top.depth {
					continue
				}

				stack = stack[:len(stack)-1]
				rules = append(rules, e.buildRule(file, lines, meta, line, top, ln, ev.col))
			}
		}
	}

	if len(stack) > 0 {
		return m.RuleSet{}, &ParseError{File: file, Line: stack[0].line, Reason: "statement not terminated before end of input"}
	}

	if depth != 0 {
		return m.RuleSet{}, &ParseError{File: file, Line: len(lines), Reason: "unbalanced braces at end of input"}
	}

	sort.SliceStable(rules, func(a, b int) bool {
		if rules[a].StartLine != rules[b].StartLine {
			return rules[a].StartLine < rules[b].StartLine
		}

		return rules[a].EndLine > rules[b].EndLine // parent before child
	})

	synthesizeLabels(rules)
	set.Rules = rules

	e.logger.Debug("extracted rules",
		slog.String("map", string(file)),
		slog.Int("rules", len(rules)),
		slog.Int("imports", len(set.Imports)))

	return set, nil
}

func (e *extractor) buildRule(file m.Path, lines []string, meta lineMeta, line string, top openStmt, endLine, endCol int) m.Rule {
	text := strings.Join(lines[top.line-1:endLine], "\n")
	kind, desc := classifyRule(text)

	return m.Rule{
		File:      file,
		StartLine: top.line,
		EndLine:   endLine,
		Depth:     top.depth - 1,
		Group:     top.group,
		Label:     labelBefore(meta, line, endCol),
		Kind:      kind,
		Desc:      desc,
		Text:      text,
	}
}

// synthesizeLabels fills empty labels with <group>#<ordinal>, where the
// ordinal counts the group's rules in source order. Synthesized labels
// are display hints; identity stays (file, start, end).
func synthesizeLabels(rules []m.Rule) {
	ordinals := make(map[string]int)

	for i := range rules {
		ordinals[rules[i].Group]++

		if rules[i].Label == "" {
			rules[i].Label = fmt.Sprintf("%s#%d", rules[i].Group, ordinals[rules[i].Group])
		}
	}
}

// labelBefore returns the content of the trailing double-quoted string
// sitting directly before the terminator, if any. Value literals in rule
// expressions are single-quoted, so only rule labels match.
func labelBefore(meta lineMeta, line string, col int) string {
	for k := len(meta.literals) - 1; k >= 0; k-- {
		lit := meta.literals[k]
		if lit.endCol > col {
			continue
		}

		if strings.TrimSpace(line[lit.endCol:col]) == "" {
			return lit.text
		}

		break
	}

	return ""
}

// Rule classification, for report display only.
var (
	idAssignRe  = regexp.MustCompile(`\.id\s*=\s*(\(|uuid)`)
	idPrefixRe  = regexp.MustCompile(`\.id\s*=\s*\(['"]([^'"&]+)`)
	translateRe = regexp.MustCompile(`translate\([^,]+,\s*['"]#([^'"]+)['"]\)`)
	helperRe    = regexp.MustCompile(`then\s+(\w+)\(`)
	createRe    = regexp.MustCompile(`(\w+\.\w+)\s*=\s*create\(['"](\w+)['"]\)`)
	fieldFullRe = regexp.MustCompile(`(\w+\.[\w.]+)\s+as\s+\w+\s*->\s*(\w+\.[\w.]+)\s*=`)
	fieldTgtRe  = regexp.MustCompile(`->\s*(\w+\.[\w.]+)\s*=`)
)

// classifyRule derives a display kind and a short summary from the rule
// text. Classification never influences coverage semantics.
func classifyRule(text string) (m.RuleKind, string) {
	if idAssignRe.MatchString(text) {
		if match := idPrefixRe.FindStringSubmatch(text); match != nil {
			return m.KindID, fmt.Sprintf("ID: '%s' prefix", strings.TrimSpace(match[1]))
		}

		if strings.Contains(text, "uuid()") {
			return m.KindID, "ID: uuid()"
		}

		return m.KindID, "ID assignment"
	}

	if strings.Contains(text, "translate(") {
		if match := translateRe.FindStringSubmatch(text); match != nil {
			return m.KindTranslate, fmt.Sprintf("translate(#%s)", match[1])
		}

		return m.KindTranslate, "translate()"
	}

	hasBlock := strings.Contains(text, " then {") || strings.Contains(text, "then{")

	if strings.Contains(text, " then ") && !hasBlock {
		if match := helperRe.FindStringSubmatch(text); match != nil {
			return m.KindCall, match[1] + "()"
		}

		return m.KindCall, "helper call"
	}

	if hasBlock {
		if match := createRe.FindStringSubmatch(text); match != nil {
			return m.KindCreate, fmt.Sprintf("Create %s -> %s", match[2], match[1])
		}

		return m.KindCreate, "block mapping"
	}

	if strings.Contains(text, "->") && strings.Contains(text, "=") {
		if match := fieldFullRe.FindStringSubmatch(text); match != nil {
			return m.KindField, fmt.Sprintf("%s -> %s", match[1], match[2])
		}

		if match := fieldTgtRe.FindStringSubmatch(text); match != nil {
			return m.KindField, "-> " + match[1]
		}
	}

	singleLine := strings.Join(strings.Fields(text), " ")
	if len(singleLine) > 55 {
		singleLine = singleLine[:55] + "..."
	}

	return m.KindUnknown, singleLine
}

package domain

import (
	"strings"

	m "github.com/BAL-DMU/mapcov/internal/model"
)

// ignoreDirective marks a rule as deliberately unverified. The
// directive occupies a comment line of its own, directly above the rule
// it suppresses; free text after the keyword is kept as the reason.
const ignoreDirective = "mapcov:ignore"

// ruleIgnores resolves every ignore directive in content to the rules
// it suppresses, keyed by rule identity. A directive applies to each
// rule starting on the line below it; a directive with no such rule has
// no effect. Directive-shaped text inside string literals or block
// comments is not a directive.
func ruleIgnores(content string, rules []m.Rule) map[string]string {
	lines := strings.Split(content, "\n")
	metas, _ := scanLines(lines)

	reasons := make(map[int]string)

	for i, line := range lines {
		meta := metas[i]
		if meta.startsInString || meta.startsInComment || len(meta.events) > 0 {
			continue
		}

		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "//") {
			continue
		}

		comment := strings.TrimSpace(strings.TrimPrefix(trimmed, "//"))

		rest, ok := strings.CutPrefix(comment, ignoreDirective)
		if !ok || (rest != "" && rest[0] != ' ' && rest[0] != '\t') {
			continue
		}

		reason := "ignored"
		if rest = strings.TrimSpace(rest); rest != "" {
			reason = "ignored: " + rest
		}

		// The directive on line i+1 targets the line below it.
		reasons[i+2] = reason
	}

	if len(reasons) == 0 {
		return nil
	}

	ignored := make(map[string]string)

	for _, rule := range rules {
		if reason, ok := reasons[rule.StartLine]; ok {
			ignored[rule.ID()] = reason
		}
	}

	return ignored
}

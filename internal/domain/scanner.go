package domain

// lineMeta describes the structural content of one source line. Braces
// and terminators inside string literals or comments never produce
// events.
type lineMeta struct {
	startsInString  bool
	startsInComment bool
	events          []event
	literals        []literalSpan
}

// event is a structural character together with its column.
type event struct {
	col int
	ch  byte
}

// literalSpan is a double-quoted literal opened and closed on the same
// line; endCol points one past the closing quote.
type literalSpan struct {
	startCol int
	endCol   int
	text     string
}

// scanEnd is the scanner state after the last line.
type scanEnd struct {
	inString   bool
	stringLine int
}

// scanLines walks the text once, tracking string-literal and comment
// state across line boundaries. Literals may span lines and may contain
// backslash escapes; both quote styles are recognized. Semicolons inside
// parentheses are argument separators, not statement terminators, and
// produce no event.
func scanLines(lines []string) ([]lineMeta, scanEnd) {
	metas := make([]lineMeta, len(lines))

	var (
		inString   bool
		quote      byte
		stringLine int
		inComment  bool
		parenDepth int
	)

	for i, line := range lines {
		meta := lineMeta{startsInString: inString, startsInComment: inComment}
		litStart := -1

		for j := 0; j < len(line); j++ {
			c := line[j]

			switch {
			case inString:
				switch c {
				case '\\':
					j++ // skip the escaped character
				case quote:
					inString = false
					if quote == '"' && litStart >= 0 {
						meta.literals = append(meta.literals, literalSpan{
							startCol: litStart,
							endCol:   j + 1,
							text:     line[litStart+1 : j],
						})
					}
				}
			case inComment:
				if c == '*' && j+1 < len(line) && line[j+1] == '/' {
					inComment = false
					j++
				}
			default:
				switch c {
				case '/':
					if j+1 < len(line) && line[j+1] == '/' {
						j = len(line) // rest of the line is a comment
					} else if j+1 < len(line) && line[j+1] == '*' {
						inComment = true
						j++
					}
				case '"', '\'':
					inString = true
					quote = c
					stringLine = i + 1
					litStart = j
				case '(':
					parenDepth++
				case ')':
					if parenDepth > 0 {
						parenDepth--
					}
				case '{', '}':
					meta.events = append(meta.events, event{col: j, ch: c})
				case ';':
					if parenDepth == 0 {
						meta.events = append(meta.events, event{col: j, ch: c})
					}
				}
			}
		}

		metas[i] = meta
	}

	return metas, scanEnd{inString: inString, stringLine: stringLine}
}

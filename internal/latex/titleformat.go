package latex

import (
	"regexp"
	"strings"
)

// stylingMacro describes a titlesec command by its mandatory group count.
type stylingMacro struct {
	groups        int
	starredGroups int
}

var stylingMacros = map[string]stylingMacro{
	"titleformat":  {groups: 5, starredGroups: 2},
	"titlespacing": {groups: 4, starredGroups: 4},
}

var (
	// styleHardStopRe marks lines that can never belong to a styling invocation.
	styleHardStopRe = regexp.MustCompile(`(?m)^[ \t]*\\(?:begin\{document\}|end\{document\}|titleformat|titlespacing|usepackage|documentclass|newcommand|renewcommand|newenvironment|renewenvironment|definecolor|setlength|pagestyle|(?:sub)*section\*?\s*\{)`)
	blankRunRe      = regexp.MustCompile(`\n[ \t]*\n(?:[ \t]*\n)*`)
	lineJoinRe      = regexp.MustCompile(`[ \t]*\n\s*`)
	casePrimitiveRe = regexp.MustCompile(`\\(MakeTextUppercase|MakeTextLowercase|MakeUppercase|MakeLowercase|uppercase|lowercase)`)
)

func stylingMacroPass(doc string) (string, counts) {
	var c counts
	var b strings.Builder
	last := 0
	for i := 0; i < len(doc); {
		t := nextToken(doc, i)
		i = t.end
		if t.kind != tokControlWord {
			continue
		}
		macro, ok := stylingMacros[doc[t.start+1:t.end]]
		if !ok {
			continue
		}
		end, text, fixes := repairInvocation(doc, t.start, t.end, macro)
		i = end
		if text == doc[t.start:end] {
			continue
		}
		c.merge(fixes)
		b.WriteString(doc[last:t.start])
		b.WriteString(text)
		last = end
	}
	if last == 0 {
		return doc, c
	}
	b.WriteString(doc[last:])
	return b.String(), c
}

// RepairStylingMacros runs only the titlesec repair over the whole document.
func RepairStylingMacros(doc string) string {
	out, _ := stylingMacroPass(doc)
	return out
}

// styleRegionEnd returns the furthest offset an invocation starting on the
// line containing from may extend to.
func styleRegionEnd(doc string, from int) int {
	nl := strings.IndexByte(doc[from:], '\n')
	if nl < 0 {
		return len(doc)
	}
	next := from + nl + 1
	if loc := styleHardStopRe.FindStringIndex(doc[next:]); loc != nil {
		return next + loc[0]
	}
	return len(doc)
}

// skipFiller skips whitespace and comments between macro arguments.
func skipFiller(s string, i int) int {
	for {
		i = skipWhitespace(s, i)
		if i >= len(s) || s[i] != '%' {
			return i
		}
		i = nextToken(s, i).end
	}
}

// repairInvocation scans the styling command whose name spans [start,
// nameEnd) and returns the end of the invocation together with its repaired
// text.
func repairInvocation(doc string, start, nameEnd int, macro stylingMacro) (int, string, counts) {
	var c counts
	region := doc[:styleRegionEnd(doc, nameEnd)]

	j := nameEnd
	required := macro.groups
	if j < len(region) && region[j] == '*' {
		j++
		required = macro.starredGroups
	}

	var b strings.Builder
	b.WriteString(doc[start:j])
	groups := 0
	for {
		k := skipFiller(region, j)
		if k >= len(region) {
			break
		}
		if region[k] == '[' {
			end := matchOptional(region, k)
			if end < 0 {
				break
			}
			b.WriteString(region[j:end])
			j = end
			if groups >= required {
				break
			}
			continue
		}
		if groups >= required || region[k] != '{' {
			break
		}
		end := matchGroup(region, k)
		if end < 0 {
			body := strings.TrimRight(region[j:], " \t\r\n")
			depth := braceDepth(body)
			b.WriteString(body)
			if inComment(body, len(body)) {
				b.WriteByte('\n')
			}
			b.WriteString(strings.Repeat("}", depth))
			c.add("unclosed groups closed", depth)
			j += len(body)
			groups++
			break
		}
		b.WriteString(region[j:end])
		j = end
		groups++
	}
	if missing := required - groups; missing > 0 {
		b.WriteString(strings.Repeat("{}", missing))
		c.add("missing groups appended", missing)
	}

	text := b.String()
	if n := len(blankRunRe.FindAllStringIndex(text, -1)); n > 0 {
		text = blankRunRe.ReplaceAllString(text, "\n")
		c.add("blank lines collapsed", n)
	}
	text, n := stripBareCasePrimitives(text)
	c.add("bare case commands stripped", n)
	return j, text, c
}

// stripBareCasePrimitives removes case-changing primitives that are not
// given an explicit argument; titlesec feeds them the title and they break
// when the format is reused.
func stripBareCasePrimitives(s string) (string, int) {
	var b strings.Builder
	last, n := 0, 0
	for _, m := range casePrimitiveRe.FindAllStringIndex(s, -1) {
		if m[1] < len(s) && isLetter(s[m[1]]) {
			continue
		}
		if isEscaped(s, m[0]) || inComment(s, m[0]) {
			continue
		}
		if k := skipWhitespace(s, m[1]); k < len(s) && s[k] == '{' {
			continue
		}
		b.WriteString(s[last:m[0]])
		last = m[1]
		n++
	}
	if n == 0 {
		return s, 0
	}
	b.WriteString(s[last:])
	return b.String(), n
}

// mergeStylingNear joins onto one line every styling invocation that starts
// within window lines of line (1-based). Invocations carrying comments are
// left alone since joining would comment out the rest of the line.
func mergeStylingNear(doc string, line, window int) (string, int) {
	var b strings.Builder
	last, merged := 0, 0
	lineNo := 1
	for i := 0; i < len(doc); {
		t := nextToken(doc, i)
		lineNo += strings.Count(doc[i:t.end], "\n")
		i = t.end
		if t.kind != tokControlWord {
			continue
		}
		macro, ok := stylingMacros[doc[t.start+1:t.end]]
		if !ok {
			continue
		}
		end, _, _ := repairInvocation(doc, t.start, t.end, macro)
		span := doc[t.start:end]
		lineNo += strings.Count(doc[i:end], "\n")
		i = end

		startLine := lineNo - strings.Count(span, "\n")
		if startLine < line-window || startLine > line+window || hasComment(span) {
			continue
		}
		joined := lineJoinRe.ReplaceAllString(span, " ")
		if joined == span {
			continue
		}
		b.WriteString(doc[last:t.start])
		b.WriteString(joined)
		last = end
		merged++
	}
	if merged == 0 {
		return doc, 0
	}
	b.WriteString(doc[last:])
	return b.String(), merged
}

func hasComment(s string) bool {
	for i := 0; i < len(s); {
		t := nextToken(s, i)
		if t.kind == tokComment {
			return true
		}
		i = t.end
	}
	return false
}

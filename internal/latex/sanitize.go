package latex

import (
	"fmt"
	"regexp"
	"strings"
)

// RepairAttempt records one sanitization pass or error-driven fix.
type RepairAttempt struct {
	Description   string `json:"description"`
	DocumentAfter string `json:"-"`
}

// maxSanitizeRounds bounds the fixpoint loop; real documents settle in two.
const maxSanitizeRounds = 8

// counts accumulates what a pass changed, keyed by a human-readable label.
type counts struct {
	order []string
	n     map[string]int
}

func (c *counts) add(label string, n int) {
	if n <= 0 {
		return
	}
	if c.n == nil {
		c.n = make(map[string]int)
	}
	if _, ok := c.n[label]; !ok {
		c.order = append(c.order, label)
	}
	c.n[label] += n
}

func (c *counts) merge(o counts) {
	for _, label := range o.order {
		c.add(label, o.n[label])
	}
}

func (c *counts) empty() bool { return len(c.order) == 0 }

func (c *counts) String() string {
	parts := make([]string, 0, len(c.order))
	for _, label := range c.order {
		parts = append(parts, fmt.Sprintf("%d %s", c.n[label], label))
	}
	return strings.Join(parts, ", ")
}

type sanitizePass struct {
	name  string
	apply func(doc string) (string, counts)
}

var sanitizePasses = []sanitizePass{
	{"escaped special characters", escapeSpecialsPass},
	{"balanced braces", balanceBracesPass},
	{"fixed command typos", commandTypoPass},
	{"repaired styling macros", stylingMacroPass},
	{"converted markdown", markdownPass},
}

// Sanitize applies the conservative repair passes until nothing changes.
// It is total and idempotent.
func Sanitize(doc string) string {
	out, _ := SanitizeWithReport(doc)
	return out
}

// SanitizeWithReport is Sanitize plus one RepairAttempt per pass that changed
// the document, in pass order.
func SanitizeWithReport(doc string) (string, []RepairAttempt) {
	totals := make([]counts, len(sanitizePasses))
	after := make([]string, len(sanitizePasses))

	current := doc
	for round := 0; round < maxSanitizeRounds; round++ {
		changed := false
		for i, pass := range sanitizePasses {
			next, c := pass.apply(current)
			if next != current {
				changed = true
				totals[i].merge(c)
				after[i] = next
				current = next
			}
		}
		if !changed {
			break
		}
	}

	var report []RepairAttempt
	for i, pass := range sanitizePasses {
		if after[i] == "" {
			continue
		}
		desc := pass.name
		if !totals[i].empty() {
			desc += ": " + totals[i].String()
		}
		report = append(report, RepairAttempt{Description: desc, DocumentAfter: after[i]})
	}
	return current, report
}

// escapeSet selects which characters escapeBody touches.
type escapeSet struct {
	hash, dollar, underscore, percent bool
}

var allSpecials = escapeSet{hash: true, dollar: true, underscore: true, percent: true}

// protectedArgs are commands whose next brace group is copied through
// untouched: URLs, labels and file names legitimately contain _ and #.
var protectedArgs = map[string]bool{
	"url": true, "href": true, "label": true, "ref": true, "eqref": true, "pageref": true,
	"cite": true, "includegraphics": true, "input": true, "include": true,
	"begin": true, "end": true, "usepackage": true, "documentclass": true,
	"hypersetup": true, "newcommand": true, "renewcommand": true, "definecolor": true,
	"color": true, "textcolor": true, "hspace": true, "vspace": true,
}

func escapeSpecialsPass(doc string) (string, counts) {
	var c counts
	out := mapBody(doc, func(body string) string {
		var s string
		s, c = escapeBody(body, allSpecials)
		return s
	})
	return out, c
}

// escapeBody escapes the selected special characters in text mode. Comments,
// verbatim regions, inline math and protected arguments pass through.
func escapeBody(s string, set escapeSet) (string, counts) {
	var c counts
	var b strings.Builder
	b.Grow(len(s) + 16)

	for i := 0; i < len(s); {
		t := nextToken(s, i)
		switch t.kind {
		case tokComment:
			if set.percent && i > 0 && isDigit(s[i-1]) {
				b.WriteString(`\%`)
				c.add("'%' after a digit", 1)
				i++
				continue
			}
		case tokControlSymbol:
			if end := displayMathEnd(s, t); end > 0 {
				b.WriteString(s[i:end])
				i = end
				continue
			}
		case tokControlWord:
			if end := displayMathEnd(s, t); end > 0 {
				b.WriteString(s[i:end])
				i = end
				continue
			}
			if protectedArgs[s[t.start+1:t.end]] {
				end := protectedArgEnd(s, t.end)
				b.WriteString(s[t.start:end])
				i = end
				continue
			}
		case tokText:
			switch s[i] {
			case '#':
				if set.hash && !(i+1 < len(s) && isDigit(s[i+1])) {
					b.WriteString(`\#`)
					c.add("'#'", 1)
					i++
					continue
				}
			case '_':
				if set.underscore {
					b.WriteString(`\_`)
					c.add("'_'", 1)
					i++
					continue
				}
			case '$':
				if end := mathSpanEnd(s, i); end > 0 {
					b.WriteString(s[i:end])
					i = end
					continue
				}
				if set.dollar {
					b.WriteString(`\$`)
					c.add("'$'", 1)
					i++
					continue
				}
			}
		}
		b.WriteString(s[t.start:t.end])
		i = t.end
	}
	return b.String(), c
}

// protectedArgEnd returns the end of the optional and first mandatory
// argument following a protected command whose name ends at i.
func protectedArgEnd(s string, i int) int {
	j := skipSpaces(s, i)
	if end := matchOptional(s, j); end > 0 {
		j = skipSpaces(s, end)
	}
	if end := matchGroup(s, j); end > 0 {
		return end
	}
	return i
}

var mathEnvironments = []string{"equation", "equation*", "align", "align*", "math", "displaymath"}

// displayMathEnd returns the end of a \( \) or \[ \] span, or of a math
// environment, opened by t. It returns -1 when t opens neither or the span
// never closes.
func displayMathEnd(s string, t token) int {
	var closer string
	switch s[t.start:t.end] {
	case `\(`:
		closer = `\)`
	case `\[`:
		closer = `\]`
	case `\begin`:
		for _, env := range mathEnvironments {
			if strings.HasPrefix(s[t.end:], "{"+env+"}") {
				closer = `\end{` + env + "}"
				break
			}
		}
	}
	if closer == "" {
		return -1
	}
	k := strings.Index(s[t.end:], closer)
	if k < 0 {
		return -1
	}
	return t.end + k + len(closer)
}

// mathSpanEnd returns the end of the inline ($...$) or display ($$...$$)
// math span opened at s[i], or -1 when the dollar is a literal. A dollar
// directly followed by a digit is currency. Inline spans stay on one line.
func mathSpanEnd(s string, i int) int {
	if i+1 >= len(s) {
		return -1
	}
	if s[i+1] == '$' {
		for j := i + 2; j < len(s); {
			t := nextToken(s, j)
			if t.kind == tokText && s[j] == '$' && j+1 < len(s) && s[j+1] == '$' {
				return j + 2
			}
			j = t.end
		}
		return -1
	}
	if isDigit(s[i+1]) {
		return -1
	}
	for j := i + 1; j < len(s); {
		t := nextToken(s, j)
		switch {
		case t.kind == tokComment:
			return -1
		case t.kind == tokText && s[j] == '\n':
			return -1
		case t.kind == tokText && s[j] == '$':
			return j + 1
		}
		j = t.end
	}
	return -1
}

func balanceBracesPass(doc string) (string, counts) {
	start, end := bodyBounds(doc)
	body, escaped, missing := balanceBody(doc[start:end])
	var c counts
	c.add("unmatched '}' escaped", escaped)
	c.add("unclosed '{' closed before \\end{document}", missing)
	if escaped == 0 && missing == 0 {
		return doc, c
	}
	closers := strings.Repeat("}", missing)
	if missing > 0 && inComment(body, len(body)) {
		closers = "\n" + closers
	}
	return doc[:start] + body + closers + doc[end:], c
}

// balanceBody escapes every '}' that would take the depth negative and
// reports how many groups remain open at the end.
func balanceBody(s string) (out string, escaped, open int) {
	var b strings.Builder
	b.Grow(len(s) + 4)
	depth := 0
	for i := 0; i < len(s); {
		t := nextToken(s, i)
		switch t.kind {
		case tokOpen:
			depth++
		case tokClose:
			if depth == 0 {
				b.WriteString(`\}`)
				escaped++
				i = t.end
				continue
			}
			depth--
		}
		b.WriteString(s[t.start:t.end])
		i = t.end
	}
	return b.String(), escaped, depth
}

// BalanceBraces runs only the brace-balancing pass over the body.
func BalanceBraces(doc string) string {
	out, _ := balanceBracesPass(doc)
	return out
}

const (
	sectionCommands    = `section|subsection|subsubsection|paragraph|chapter`
	structuralCommands = sectionCommands + `|item|begin|end`
)

var (
	doubledBackslashRe = regexp.MustCompile(`(\\+)(` + structuralCommands + `|textbf|textit|emph|underline|itemize|enumerate)\b`)
	emptyEmphasisRe    = regexp.MustCompile(`\\(textbf|textit|emph|underline)\{\s*\}`)
	breakBeforeSection = newBreakStripper(sectionCommands)
	breakBeforeStruct  = newBreakStripper(structuralCommands)
)

func commandTypoPass(doc string) (string, counts) {
	var c counts
	out := mapBody(doc, func(body string) string {
		return mapActive(body, func(s string) string {
			var n int
			s, n = collapseDoubledBackslashes(s)
			c.add("doubled backslash collapsed", n)
			s, n = removeEmptyEmphasis(s)
			c.add("empty emphasis removed", n)
			s, n = breakBeforeSection.strip(s)
			c.add("line break before section removed", n)
			return s
		})
	})
	return out, c
}

// collapseDoubledBackslashes turns \\section into \section. An odd run is a
// line break followed by a real command and is left alone.
func collapseDoubledBackslashes(s string) (string, int) {
	matches := doubledBackslashRe.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, 0
	}
	var b strings.Builder
	last, n := 0, 0
	for _, m := range matches {
		run := m[3] - m[2]
		if run%2 != 0 {
			continue
		}
		b.WriteString(s[last:m[2]])
		b.WriteString(s[m[2]+1 : m[3]])
		last = m[3]
		n++
	}
	b.WriteString(s[last:])
	return b.String(), n
}

func removeEmptyEmphasis(s string) (string, int) {
	total := 0
	for {
		n := 0
		s = replaceUnescaped(emptyEmphasisRe, s, func(string) string {
			n++
			return ""
		})
		if n == 0 {
			return s, total
		}
		total += n
	}
}

// replaceUnescaped is ReplaceAllStringFunc that skips matches whose leading
// backslash is itself escaped.
func replaceUnescaped(re *regexp.Regexp, s string, fn func(string) string) string {
	matches := re.FindAllStringIndex(s, -1)
	if len(matches) == 0 {
		return s
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		if isEscaped(s, m[0]) {
			continue
		}
		b.WriteString(s[last:m[0]])
		b.WriteString(fn(s[m[0]:m[1]]))
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

// breakStripper removes \\ (with an optional [len]) or \newline that
// immediately precede one of a set of commands.
type breakStripper struct {
	breakRe   *regexp.Regexp
	newlineRe *regexp.Regexp
}

func newBreakStripper(commands string) breakStripper {
	return breakStripper{
		breakRe:   regexp.MustCompile(`(\\+)(\[[^\]\n]*\])?(\s*)\\(` + commands + `)\b`),
		newlineRe: regexp.MustCompile(`\\newline(\s*)\\(` + commands + `)\b`),
	}
}

func (bs breakStripper) strip(s string) (string, int) {
	n := 0
	var b strings.Builder
	last := 0
	for _, m := range bs.breakRe.FindAllStringSubmatchIndex(s, -1) {
		// an odd run means the last backslash belongs to a command
		if (m[3]-m[2])%2 != 0 {
			continue
		}
		b.WriteString(s[last:m[0]])
		b.WriteString(s[m[6]:m[1]])
		last = m[1]
		n++
	}
	b.WriteString(s[last:])
	s = b.String()

	s = replaceUnescaped(bs.newlineRe, s, func(match string) string {
		n++
		return strings.TrimPrefix(match, `\newline`)
	})
	return s, n
}

var (
	markdownBoldRe   = regexp.MustCompile(`\*\*([^*\s](?:[^*\n]*[^*\s])?)\*\*`)
	markdownItalicRe = regexp.MustCompile(`(?m)(^|[\s(\[])\*([^*\s](?:[^*\n]*[^*\s])?)\*([\s.,;:!?)\]]|$)`)
	markdownCodeRe   = regexp.MustCompile("(?m)(^|[^`\\\\])`([^`'\\n{}\\\\]+)`")
)

func markdownPass(doc string) (string, counts) {
	var c counts
	out := mapBody(doc, func(body string) string {
		return mapActive(body, func(s string) string {
			var n int
			s, n = convertMarkdown(s, markdownBoldRe, 1, `\textbf`)
			c.add("bold", n)
			s, n = convertMarkdown(s, markdownItalicRe, 2, `\textit`)
			c.add("italic", n)
			s, n = convertMarkdown(s, markdownCodeRe, 2, `\texttt`)
			c.add("inline code", n)
			return s
		})
	})
	return out, c
}

// convertMarkdown wraps the inner group of each match in cmd{...}, keeping
// any context groups around it. Matches whose content is not brace-balanced
// are left alone. Adjacent matches that share a delimiter need a second
// sweep, so it loops until stable.
func convertMarkdown(s string, re *regexp.Regexp, group int, cmd string) (string, int) {
	total := 0
	for {
		n := 0
		var b strings.Builder
		last := 0
		for _, m := range re.FindAllStringSubmatchIndex(s, -1) {
			inner := s[m[2*group]:m[2*group+1]]
			if braceDepth(inner) != 0 || isEscaped(s, m[0]) {
				continue
			}
			b.WriteString(s[last:m[0]])
			if group > 1 {
				b.WriteString(s[m[2]:m[3]])
			}
			b.WriteString(cmd + "{" + inner + "}")
			if len(m) > 2*group+2 && m[2*group+2] >= 0 {
				b.WriteString(s[m[2*group+2]:m[2*group+3]])
			}
			last = m[1]
			n++
		}
		if n == 0 {
			return s, total
		}
		b.WriteString(s[last:])
		s = b.String()
		total += n
	}
}

package latex

import "strings"

const (
	beginDocument = `\begin{document}`
	endDocument   = `\end{document}`
)

// tokenKind classifies one lexical unit of LaTeX source.
type tokenKind int

const (
	tokText          tokenKind = iota // a single plain byte
	tokControlWord                    // \name
	tokControlSymbol                  // \ followed by one non-letter, e.g. \\ \% \{
	tokOpen                           // {
	tokClose                          // }
	tokComment                        // unescaped % up to (not including) the newline
	tokVerbatim                       // verbatim-like environment or \verb|...|
)

type token struct {
	kind       tokenKind
	start, end int
}

// verbatimEnvironments are copied through untouched by every pass.
var verbatimEnvironments = []string{"verbatim", "verbatim*", "lstlisting", "minted", "comment"}

// nextToken lexes the token starting at i. i must be < len(s).
// Walking tokens left to right means escaped characters are never
// visited on their own, so no pass has to look behind the cursor.
func nextToken(s string, i int) token {
	switch s[i] {
	case '\\':
		if i+1 >= len(s) {
			return token{tokText, i, i + 1}
		}
		if !isLetter(s[i+1]) {
			return token{tokControlSymbol, i, i + 2}
		}
		j := i + 1
		for j < len(s) && isLetter(s[j]) {
			j++
		}
		switch s[i+1 : j] {
		case "verb":
			if end, ok := verbEnd(s, j); ok {
				return token{tokVerbatim, i, end}
			}
		case "begin":
			if end, ok := verbatimEnvEnd(s, j); ok {
				return token{tokVerbatim, i, end}
			}
		}
		return token{tokControlWord, i, j}
	case '{':
		return token{tokOpen, i, i + 1}
	case '}':
		return token{tokClose, i, i + 1}
	case '%':
		end := strings.IndexByte(s[i:], '\n')
		if end < 0 {
			return token{tokComment, i, len(s)}
		}
		return token{tokComment, i, i + end}
	}
	return token{tokText, i, i + 1}
}

// verbEnd returns the end of a \verb<d>...<d> span whose delimiter sits at j.
func verbEnd(s string, j int) (int, bool) {
	if j < len(s) && s[j] == '*' {
		j++
	}
	if j >= len(s) || s[j] == ' ' || s[j] == '\n' || isLetter(s[j]) {
		return 0, false
	}
	delim := s[j]
	close := strings.IndexByte(s[j+1:], delim)
	nl := strings.IndexByte(s[j+1:], '\n')
	if close < 0 || (nl >= 0 && nl < close) {
		return 0, false
	}
	return j + 1 + close + 1, true
}

// verbatimEnvEnd returns the end of a verbatim environment whose
// "{name}" argument starts at j. An environment with no closer in s is not
// verbatim: passes run over the body alone, and anything they append at its
// end must stay visible to them.
func verbatimEnvEnd(s string, j int) (int, bool) {
	for _, env := range verbatimEnvironments {
		open := "{" + env + "}"
		if !strings.HasPrefix(s[j:], open) {
			continue
		}
		closer := `\end{` + env + "}"
		k := strings.Index(s[j+len(open):], closer)
		if k < 0 {
			return 0, false
		}
		return j + len(open) + k + len(closer), true
	}
	return 0, false
}

// braceDepth returns the nesting depth at the end of s, ignoring escaped
// braces, comments and verbatim regions. The result is negative when s
// closes more groups than it opens.
func braceDepth(s string) int {
	depth := 0
	for i := 0; i < len(s); {
		t := nextToken(s, i)
		switch t.kind {
		case tokOpen:
			depth++
		case tokClose:
			depth--
		}
		i = t.end
	}
	return depth
}

// matchGroup returns the index just past the brace that closes the group
// opened at s[i], or -1 when the group never closes within s.
func matchGroup(s string, i int) int {
	if i >= len(s) || s[i] != '{' {
		return -1
	}
	depth := 0
	for j := i; j < len(s); {
		t := nextToken(s, j)
		switch t.kind {
		case tokOpen:
			depth++
		case tokClose:
			depth--
			if depth == 0 {
				return t.end
			}
		}
		j = t.end
	}
	return -1
}

// matchOptional returns the index just past the ']' closing the optional
// argument opened at s[i], or -1. Optional arguments never span lines here.
func matchOptional(s string, i int) int {
	if i >= len(s) || s[i] != '[' {
		return -1
	}
	depth := 0
	for j := i; j < len(s); {
		t := nextToken(s, j)
		if t.kind == tokText {
			switch s[j] {
			case '[':
				depth++
			case ']':
				depth--
				if depth == 0 {
					return t.end
				}
			case '\n':
				return -1
			}
		}
		j = t.end
	}
	return -1
}

// bodyBounds returns the half-open range of the document body. The body
// falls back to the whole text when \begin{document} is missing and runs
// to EOF when \end{document} is missing.
func bodyBounds(doc string) (start, end int) {
	start = 0
	if i := strings.Index(doc, beginDocument); i >= 0 {
		start = i + len(beginDocument)
	}
	end = len(doc)
	if i := strings.LastIndex(doc, endDocument); i >= start {
		end = i
	}
	return start, end
}

// mapBody applies fn to the body and splices the result back in place.
func mapBody(doc string, fn func(body string) string) string {
	start, end := bodyBounds(doc)
	body := doc[start:end]
	out := fn(body)
	if out == body {
		return doc
	}
	return doc[:start] + out + doc[end:]
}

// mapActive applies fn to every stretch of s that is neither a comment nor
// a verbatim region, leaving those regions byte-for-byte intact.
func mapActive(s string, fn func(string) string) string {
	var b strings.Builder
	b.Grow(len(s))
	last := 0
	for i := 0; i < len(s); {
		t := nextToken(s, i)
		if t.kind == tokComment || t.kind == tokVerbatim {
			b.WriteString(fn(s[last:t.start]))
			b.WriteString(s[t.start:t.end])
			last = t.end
		}
		i = t.end
	}
	b.WriteString(fn(s[last:]))
	return b.String()
}

// isEscaped reports whether s[i] is preceded by an odd run of backslashes.
func isEscaped(s string, i int) bool {
	n := 0
	for j := i - 1; j >= 0 && s[j] == '\\'; j-- {
		n++
	}
	return n%2 == 1
}

// inComment reports whether position i sits after an unescaped % on its line.
func inComment(s string, i int) bool {
	lineStart := strings.LastIndexByte(s[:i], '\n') + 1
	for j := lineStart; j < i; {
		t := nextToken(s, j)
		if t.kind == tokComment {
			return true
		}
		if t.kind == tokVerbatim && t.end > i {
			return false
		}
		j = t.end
	}
	return false
}

func skipSpaces(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return i
}

func skipWhitespace(s string, i int) int {
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return i
}

func isLetter(c byte) bool { return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }

// lineStarts returns the byte offset of the start of every line.
func lineStarts(s string) []int {
	starts := []int{0}
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func isBlankLine(line string) bool {
	return strings.TrimSpace(line) == ""
}

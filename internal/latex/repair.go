package latex

import (
	"fmt"
	"regexp"
	"strings"
)

// RepairOutcome is the result of one error-driven repair attempt.
type RepairOutcome struct {
	Fixed       bool     `json:"fixed"`
	Document    string   `json:"-"`
	Description string   `json:"description"`
	Rules       []string `json:"rules,omitempty"`
}

// repairRule maps one class of engine error to a targeted fix. when, if
// set, narrows a pattern match using the parsed diagnostic.
type repairRule struct {
	name    string
	pattern *regexp.Regexp
	when    func(match []string, d Diagnostic) bool
	apply   func(doc string, match []string, d Diagnostic) (string, string)
}

// casePrimitives are the formatting commands an LLM likes to invent or
// misuse; unwrapping them keeps the text and drops the styling.
var casePrimitives = map[string]bool{
	"MakeUppercase": true, "MakeLowercase": true, "MakeTextUppercase": true, "MakeTextLowercase": true,
	"uppercase": true, "lowercase": true, "capitalisewords": true, "titlecap": true, "textcaps": true,
}

var repairRules = []repairRule{
	{
		name:    "missing-brace",
		pattern: regexp.MustCompile(`Missing [{}] inserted`),
		apply:   fixMissingBrace,
	},
	{
		name:    "runaway-styling",
		pattern: regexp.MustCompile(`(?i)Runaway argument|\\ttl@|titlesec`),
		apply:   fixRunawayStyling,
	},
	{
		name:    "paragraph-ended",
		pattern: regexp.MustCompile(`Paragraph ended before \\([A-Za-z@]+) was complete`),
		when: func(m []string, _ Diagnostic) bool {
			return !strings.Contains(m[1], "ttl@")
		},
		apply: fixParagraphEnded,
	},
	{
		name:    "undefined-case-primitive",
		pattern: regexp.MustCompile(`Undefined control sequence`),
		when: func(_ []string, d Diagnostic) bool {
			return casePrimitives[d.UndefinedCommand]
		},
		apply: fixCasePrimitive,
	},
	{
		name:    "extra-brace",
		pattern: regexp.MustCompile(`Extra \}|forgotten \$`),
		apply: func(doc string, _ []string, _ Diagnostic) (string, string) {
			out, c := balanceBracesPass(doc)
			if c.empty() {
				return out, "re-balanced braces (no change)"
			}
			return out, "re-balanced braces: " + c.String()
		},
	},
	{
		name:    "missing-dollar",
		pattern: regexp.MustCompile(`Missing \$ inserted`),
		apply: func(doc string, _ []string, _ Diagnostic) (string, string) {
			var c counts
			out := mapBody(doc, func(body string) string {
				var s string
				s, c = escapeBody(body, escapeSet{underscore: true})
				return s
			})
			return out, fmt.Sprintf("escaped %d text-mode underscores", c.n["'_'"])
		},
	},
}

// AttemptFix applies every rule whose pattern matches the diagnostic log, in
// table order. A matching rule counts as a fix even when it leaves the text
// unchanged; callers bound the number of attempts.
func AttemptFix(doc, diagnosticLog string) RepairOutcome {
	d := ParseDiagnostic(diagnosticLog)
	out := RepairOutcome{Document: doc}
	var descriptions []string

	for _, rule := range repairRules {
		m := rule.pattern.FindStringSubmatch(diagnosticLog)
		if m == nil {
			continue
		}
		if rule.when != nil && !rule.when(m, d) {
			continue
		}
		var desc string
		out.Document, desc = rule.apply(out.Document, m, d)
		out.Rules = append(out.Rules, rule.name)
		descriptions = append(descriptions, rule.name+": "+desc)
	}

	if len(out.Rules) == 0 {
		out.Description = "no automatic remedy available"
		if s := d.Summary(); s != "" {
			out.Description += " for: " + s
		}
		return out
	}
	out.Fixed = true
	out.Description = strings.Join(descriptions, "; ")
	return out
}

var trailingBreakRe = regexp.MustCompile(`^(.*?)(\\+)(\[[^\]\n]*\])?[ \t]*$`)

var structuralLineRe = regexp.MustCompile(`^[ \t]*\\(?:` + structuralCommands + `)\b`)

func fixMissingBrace(doc string, _ []string, d Diagnostic) (string, string) {
	removed := 0
	if d.Line > 0 {
		lines := strings.Split(doc, "\n")
		for l := d.Line; l >= d.Line-3 && l >= 1; l-- {
			idx := l - 1
			if idx >= len(lines) {
				continue
			}
			m := trailingBreakRe.FindStringSubmatch(lines[idx])
			if m == nil || len(m[2]) < 2 || len(m[2])%2 != 0 {
				continue
			}
			if !nextNonBlankIsStructural(lines, idx+1) {
				continue
			}
			lines[idx] = strings.TrimRight(m[1]+m[2][2:], " \t")
			removed++
		}
		doc = strings.Join(lines, "\n")
	}

	global := 0
	doc = mapBody(doc, func(body string) string {
		return mapActive(body, func(s string) string {
			var n int
			s, n = breakBeforeStruct.strip(s)
			global += n
			return s
		})
	})
	return doc, fmt.Sprintf("removed %d line breaks near the error line and %d before structural commands", removed, global)
}

func nextNonBlankIsStructural(lines []string, from int) bool {
	for i := from; i < len(lines); i++ {
		if isBlankLine(lines[i]) {
			continue
		}
		return structuralLineRe.MatchString(lines[i])
	}
	return false
}

func fixRunawayStyling(doc string, _ []string, d Diagnostic) (string, string) {
	doc, c := stylingMacroPass(doc)
	line, window := d.Line, 5
	if line == 0 {
		line, window = 1, len(doc)
	}
	doc, merged := mergeStylingNear(doc, line, window)
	desc := fmt.Sprintf("merged %d styling invocations", merged)
	if !c.empty() {
		desc = "repaired styling macros (" + c.String() + "), " + desc
	}
	return doc, desc
}

// fixParagraphEnded removes blank lines near the error line that sit inside
// an open group, where they end a paragraph mid-argument.
func fixParagraphEnded(doc string, _ []string, d Diagnostic) (string, string) {
	if d.Line == 0 {
		return doc, "no line number reported"
	}
	starts := lineStarts(doc)
	drop := make(map[int]bool)
	for l := d.Line - 3; l <= d.Line+3; l++ {
		idx := l - 1
		if idx < 0 || idx >= len(starts) {
			continue
		}
		end := len(doc)
		if idx+1 < len(starts) {
			end = starts[idx+1]
		}
		if !isBlankLine(doc[starts[idx]:end]) {
			continue
		}
		if braceDepth(doc[:starts[idx]]) > 0 {
			drop[idx] = true
		}
	}
	if len(drop) == 0 {
		return doc, "no blank lines inside open groups"
	}

	var b strings.Builder
	for idx, start := range starts {
		end := len(doc)
		if idx+1 < len(starts) {
			end = starts[idx+1]
		}
		if !drop[idx] {
			b.WriteString(doc[start:end])
		}
	}
	return b.String(), fmt.Sprintf("removed %d blank lines inside open groups", len(drop))
}

// fixCasePrimitive replaces \cmd{text} with text for the undefined command.
func fixCasePrimitive(doc string, _ []string, d Diagnostic) (string, string) {
	name := `\` + d.UndefinedCommand
	n := 0
	doc = mapBody(doc, func(body string) string {
		return mapActive(body, func(s string) string {
			var b strings.Builder
			last := 0
			for i := 0; i < len(s); {
				t := nextToken(s, i)
				i = t.end
				if t.kind != tokControlWord || s[t.start:t.end] != name {
					continue
				}
				b.WriteString(s[last:t.start])
				k := skipSpaces(s, t.end)
				if end := matchGroup(s, k); end > 0 {
					b.WriteString(s[k+1 : end-1])
					i = end
				} else {
					i = k
				}
				last = i
				n++
			}
			if last == 0 {
				return s
			}
			b.WriteString(s[last:])
			return b.String()
		})
	})
	return doc, fmt.Sprintf("unwrapped %d uses of %s", n, name)
}

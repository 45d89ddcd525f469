package latex

import (
	"regexp"
	"strconv"
	"strings"
)

// Diagnostic is what the repair engine needs from an engine log.
type Diagnostic struct {
	Messages         []string
	Line             int
	UndefinedCommand string
}

var (
	errorMessageRe  = regexp.MustCompile(`(?m)^!\s*(.+)$`)
	errorLineRe     = regexp.MustCompile(`(?m)^l\.(\d+)\s?(.*)$`)
	fileLineErrorRe = regexp.MustCompile(`(?m)^[^\s:]+\.tex:(\d+):\s*(.+)$`)
	controlSeqRe    = regexp.MustCompile(`\\[A-Za-z@]+`)
)

// ParseDiagnostic extracts error messages, the first reported line number
// and the undefined control sequence (if any) from a TeX log.
func ParseDiagnostic(log string) Diagnostic {
	var d Diagnostic
	for _, m := range errorMessageRe.FindAllStringSubmatch(log, -1) {
		d.Messages = append(d.Messages, strings.TrimSpace(m[1]))
	}

	if m := errorLineRe.FindStringSubmatch(log); m != nil {
		d.Line, _ = strconv.Atoi(m[1])
		if seqs := controlSeqRe.FindAllString(m[2], -1); len(seqs) > 0 {
			d.UndefinedCommand = seqs[len(seqs)-1][1:]
		}
	}

	for _, m := range fileLineErrorRe.FindAllStringSubmatch(log, -1) {
		if d.Line == 0 {
			d.Line, _ = strconv.Atoi(m[1])
		}
		if len(d.Messages) == 0 {
			d.Messages = append(d.Messages, strings.TrimSpace(m[2]))
		}
	}

	if d.UndefinedCommand != "" && !strings.Contains(log, "Undefined control sequence") {
		d.UndefinedCommand = ""
	}
	return d
}

// Summary is the first error message, or "" when the log carried none.
func (d Diagnostic) Summary() string {
	if len(d.Messages) == 0 {
		return ""
	}
	return d.Messages[0]
}

// TailLines returns the last n lines of s.
func TailLines(s string, n int) string {
	s = strings.TrimRight(s, "\n")
	if n <= 0 || s == "" {
		return ""
	}
	idx := len(s)
	for i := 0; i < n; i++ {
		k := strings.LastIndexByte(s[:idx], '\n')
		if k < 0 {
			return s
		}
		idx = k
	}
	return s[idx+1:]
}

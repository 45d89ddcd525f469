package artifacts

import (
	"fmt"
	"strings"
	"time"
)

// Artifact kinds used in file names.
const (
	KindResume   = "resume"
	KindFallback = "resume_fallback"
)

const fileTimeLayout = "20060102T150405"

// FileName names an output file, e.g. resume_20250102T150405.pdf.
func FileName(kind, ext string, at time.Time) string {
	ext = strings.TrimPrefix(ext, ".")
	return fmt.Sprintf("%s_%s.%s", kind, at.UTC().Format(fileTimeLayout), ext)
}

// AnnotateFallback prepends a comment block recording why the document did
// not compile, so the saved source is self-explanatory when opened by hand.
// The diagnostic is commented line by line and the document itself is left
// untouched.
func AnnotateFallback(latex, reason, diagnostic string, at time.Time) string {
	var b strings.Builder
	b.WriteString("% ------------------------------------------------------------\n")
	b.WriteString("% Automatic compilation failed; this source needs manual repair.\n")
	fmt.Fprintf(&b, "%% Generated: %s\n", at.UTC().Format(time.RFC3339))
	for _, line := range splitLines(reason) {
		fmt.Fprintf(&b, "%% Reason: %s\n", line)
	}
	if diag := strings.TrimSpace(diagnostic); diag != "" {
		b.WriteString("% Diagnostic:\n")
		for _, line := range splitLines(diag) {
			b.WriteString("%   ")
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	b.WriteString("% ------------------------------------------------------------\n")
	b.WriteString(latex)
	return b.String()
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	return lines
}

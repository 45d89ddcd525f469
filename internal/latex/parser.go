package latex

import (
	"regexp"
	"strings"
)

const (
	startMarker = `\documentclass`
	endMarker   = endDocument
)

var (
	fencedBlockRe = regexp.MustCompile("(?s)```[ \t]*([A-Za-z]*)[ \t]*\r?\n(.*?)```")
	openFenceRe   = regexp.MustCompile("(?s)```[ \t]*[A-Za-z]*[ \t]*\r?\n(.*)$")
)

// ExtractDocument pulls a LaTeX document candidate out of raw generator
// output. Fenced content wins over the surrounding prose. The candidate is
// accepted only when it carries both \documentclass and \end{document}.
func ExtractDocument(responseText string) (string, bool) {
	candidate := strings.TrimSpace(responseText)

	if blocks := fencedBlockRe.FindAllStringSubmatch(responseText, -1); len(blocks) > 0 {
		candidate = strings.TrimSpace(blocks[0][2])
		for _, block := range blocks {
			if strings.Contains(block[2], startMarker) {
				candidate = strings.TrimSpace(block[2])
				break
			}
		}
	} else if m := openFenceRe.FindStringSubmatch(responseText); m != nil {
		// truncated generations often lose the closing fence
		candidate = strings.TrimSpace(m[1])
	}

	if !strings.Contains(candidate, startMarker) || !strings.Contains(candidate, endMarker) {
		return "", false
	}
	return candidate, true
}

// Preview returns at most n leading characters of raw output for diagnostics.
func Preview(raw string, n int) string {
	r := []rune(raw)
	if len(r) <= n {
		return raw
	}
	return string(r[:n])
}

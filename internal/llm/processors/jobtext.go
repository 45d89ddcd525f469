// Package processors prepares user-supplied text before it is prompted.
package processors

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	htmlTagPattern    = regexp.MustCompile(`(?i)<\s*(html|body|div|p|ul|ol|li|br|h[1-6]|span|section|article|main|strong|em|table)\b[^>]*>`)
	inlineSpace       = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	excessiveNewlines = regexp.MustCompile(`\n{3,}`)
	boilerplate       = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bJavaScript\s+is\s+disabled\b[^\n]*`),
		regexp.MustCompile(`(?i)\bPlease\s+enable\s+JavaScript\b[^\n]*`),
		regexp.MustCompile(`(?i)\bThis\s+site\s+requires\s+JavaScript\b[^\n]*`),
		regexp.MustCompile(`(?i)\bCookies?\s+are\s+disabled\b[^\n]*`),
	}
)

// JobTextNormalizer reduces a job description that may have been copied as
// HTML to plain text with paragraph and list structure kept.
type JobTextNormalizer struct {
	// Tags to remove completely
	removeTags []string
	// Containers tried before falling back to <body>
	contentSelectors []string
	// Minimum text length for a container to count as the posting
	minContentLength int
}

func NewJobTextNormalizer() *JobTextNormalizer {
	return &JobTextNormalizer{
		removeTags: []string{
			"script", "style", "noscript", "iframe", "object", "embed",
			"form", "input", "button", "select", "textarea",
			"nav", "header", "footer", "aside", "menu",
			"svg", "meta", "link", "title", "base",
		},
		contentSelectors: []string{
			"main", "[role='main']", "article",
			".job-description", ".job-posting", ".job-detail", ".job",
			".posting", ".description", "section[class*='job']",
			"[data-testid*='job']", "[data-qa*='job']",
		},
		minContentLength: 50,
	}
}

// LooksLikeHTML reports whether s carries common HTML markup.
func LooksLikeHTML(s string) bool {
	return htmlTagPattern.MatchString(s)
}

// Normalize returns plain text unchanged apart from whitespace cleanup.
// HTML is parsed, stripped of chrome, and flattened with one line per block
// and "- " before list items.
func (n *JobTextNormalizer) Normalize(input string) (string, error) {
	if !LooksLikeHTML(input) {
		return n.cleanText(input), nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(input))
	if err != nil {
		return "", err
	}
	for _, tag := range n.removeTags {
		doc.Find(tag).Remove()
	}

	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("li").Each(func(_ int, s *goquery.Selection) {
		s.PrependHtml("- ")
		s.AppendHtml("\n")
	})
	doc.Find("p, div, h1, h2, h3, h4, h5, h6, tr, section, article").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	return n.cleanText(n.pickContent(doc)), nil
}

// pickContent returns the longest matching container's text, or the body.
func (n *JobTextNormalizer) pickContent(doc *goquery.Document) string {
	best := ""
	for _, selector := range n.contentSelectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			text := s.Text()
			if len(strings.TrimSpace(text)) >= n.minContentLength && len(text) > len(best) {
				best = text
			}
		})
	}
	if best != "" {
		return best
	}
	return doc.Find("body").Text()
}

func (n *JobTextNormalizer) cleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	for _, re := range boilerplate {
		text = re.ReplaceAllString(text, "")
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(inlineSpace.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = excessiveNewlines.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}

// EstimateTokens is a rough ~4 characters per token count.
func EstimateTokens(text string) int {
	return len(text) / 4
}

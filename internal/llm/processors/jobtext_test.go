package processors

import (
	"strings"
	"testing"
)

func TestLooksLikeHTML(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"Senior Go engineer, 5+ years <3 distributed systems", false},
		{"<p>Senior Go engineer</p>", true},
		{"<DIV class='x'>text</DIV>", true},
		{"use a < b and c > d", false},
	}
	for _, tt := range tests {
		if got := LooksLikeHTML(tt.in); got != tt.want {
			t.Errorf("LooksLikeHTML(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNormalizePlainText(t *testing.T) {
	n := NewJobTextNormalizer()
	got, err := n.Normalize("  Backend   Engineer\r\n\r\n\r\n\r\nWe use Go.  \n")
	if err != nil {
		t.Fatal(err)
	}
	if want := "Backend Engineer\n\nWe use Go."; got != want {
		t.Errorf("Normalize = %q, want %q", got, want)
	}
}

func TestNormalizeHTML(t *testing.T) {
	html := `<html><head><title>Jobs</title><style>p{}</style></head><body>
<nav>Home | Careers</nav>
<main>
  <h1>Backend Engineer</h1>
  <p>We build   reliable payment infrastructure for R&amp;D teams across the world.</p>
  <ul><li>Go</li><li>Redis</li></ul>
</main>
<script>track()</script>
<footer>Copyright</footer>
</body></html>`

	got, err := NewJobTextNormalizer().Normalize(html)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Backend Engineer\n", "We build reliable payment infrastructure for R&D teams", "- Go\n", "- Redis"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	for _, unwanted := range []string{"Careers", "track()", "Copyright", "Jobs", "p{}"} {
		if strings.Contains(got, unwanted) {
			t.Errorf("output kept %q:\n%s", unwanted, got)
		}
	}
}

func TestNormalizeFallsBackToBody(t *testing.T) {
	got, err := NewJobTextNormalizer().Normalize("<div>Short</div><p>Data engineer</p>")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Short\nData engineer" {
		t.Errorf("Normalize = %q", got)
	}
}

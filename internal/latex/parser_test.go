package latex

import (
	"strings"
	"testing"
)

func TestExtractDocument(t *testing.T) {
	const doc = "\\documentclass{article}\n\\begin{document}\nHi\n\\end{document}"

	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{
			name:   "fenced latex block",
			input:  "Here you go:\n```latex\n\\documentclass{article}...\\end{document}\n```",
			want:   "\\documentclass{article}...\\end{document}",
			wantOK: true,
		},
		{
			name:   "untagged fence with prose after",
			input:  "```\n" + doc + "\n```\nLet me know if you need changes.",
			want:   doc,
			wantOK: true,
		},
		{
			name:   "prefers the fence holding the document",
			input:  "```text\nnotes\n```\nand\n```tex\n" + doc + "\n```",
			want:   doc,
			wantOK: true,
		},
		{
			name:   "unterminated fence",
			input:  "```latex\n" + doc + "\n",
			want:   doc,
			wantOK: true,
		},
		{
			name:   "bare document",
			input:  "\n\n  " + doc + "  \n",
			want:   doc,
			wantOK: true,
		},
		{
			name:   "missing end marker",
			input:  "```latex\n\\documentclass{article}\n\\begin{document}\nHi\n```",
			wantOK: false,
		},
		{
			name:   "no document at all",
			input:  "I cannot help with that.",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractDocument(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ExtractDocument() ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("ExtractDocument() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPreview(t *testing.T) {
	long := strings.Repeat("é", 600)
	if got := Preview(long, 500); len([]rune(got)) != 500 {
		t.Errorf("Preview rune length = %d, want 500", len([]rune(got)))
	}
	if got := Preview("short", 500); got != "short" {
		t.Errorf("Preview(short) = %q", got)
	}
}

func TestValidateSource(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{"clean", wrapBody("Hello \\input{sections/experience}"), false},
		{"readline-like macro allowed", wrapBody("\\readlist{x}"), false},
		{"write18", wrapBody("\\immediate\\write18{rm -rf /}"), true},
		{"openout", wrapBody("\\newwrite\\f \\openout\\f=x.txt"), true},
		{"read primitive", wrapBody("\\read16 to \\x"), true},
		{"shell escape package", "\\documentclass{article}\n\\usepackage{xcolor, shellesc}\n\\begin{document}\\end{document}", true},
		{"absolute input", wrapBody("\\input{/etc/passwd}"), true},
		{"parent input", wrapBody("\\include{../secrets}"), true},
		{"empty", "   ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSource(tt.doc)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSource() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

package validation

import (
	"strings"
	"testing"

	"resumetex/pkg/models"
)

func TestGenerateRequestValidation(t *testing.T) {
	v := New()
	jd := strings.Repeat("Senior Go engineer. ", 5)
	resume := strings.Repeat("Built distributed systems in Go. ", 5)

	tests := []struct {
		name    string
		req     models.GenerateRequest
		wantErr bool
	}{
		{"valid", models.GenerateRequest{JobDescription: jd, MasterResume: resume}, false},
		{"valid with request id", models.GenerateRequest{JobDescription: jd, MasterResume: resume, RequestID: "req_12345678"}, false},
		{"short job description", models.GenerateRequest{JobDescription: "Go dev", MasterResume: resume}, true},
		{"short resume", models.GenerateRequest{JobDescription: jd, MasterResume: "me"}, true},
		{"unsafe request id", models.GenerateRequest{JobDescription: jd, MasterResume: resume, RequestID: "../../etc"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(&tt.req)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCompileRequestValidation(t *testing.T) {
	v := New()
	ok := models.CompileRequest{Latex: "\\documentclass{article}\n\\begin{document}\nHi\n\\end{document}"}
	if err := v.Struct(&ok); err != nil {
		t.Errorf("valid document rejected: %v", err)
	}
	bad := models.CompileRequest{Latex: "Hello world"}
	if err := v.Struct(&bad); err == nil {
		t.Error("fragment accepted")
	}
}

func TestMessage(t *testing.T) {
	v := New()
	err := v.Struct(&models.SanitizeRequest{})
	if got := Message(err); got != "invalid request: Latex failed required" {
		t.Errorf("Message = %q", got)
	}
}

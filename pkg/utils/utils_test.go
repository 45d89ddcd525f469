package utils

import (
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestGenerateProcessID(t *testing.T) {
	a, b := GenerateProcessID(), GenerateProcessID()
	if a == b {
		t.Error("process ids collide")
	}
	if !strings.HasPrefix(a, "gen_") || strings.Contains(a, "-") || len(a) != 36 {
		t.Errorf("process id = %q", a)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.50s"},
		{90 * time.Second, "1.5m"},
		{3 * time.Hour, "3.0h"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCustomError(t *testing.T) {
	err := NewCompilationError("Undefined control sequence")
	if err.Code != http.StatusUnprocessableEntity {
		t.Errorf("code = %d", err.Code)
	}
	if err.Error() != "LaTeX compilation failed: Undefined control sequence" {
		t.Errorf("Error() = %q", err.Error())
	}
	if NewNotFoundError("task not found").Error() != "task not found" {
		t.Error("message-only error formatting")
	}
}

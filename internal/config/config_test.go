package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Pipeline.PageBudget != 2 || cfg.Pipeline.MaxRetries != 2 || cfg.Pipeline.MaxCompressionRounds != 1 {
		t.Errorf("pipeline defaults = %+v", cfg.Pipeline)
	}
	if cfg.LaTeX.RemoteMaxBytes != 7000 || cfg.LaTeX.Timeout != 30*time.Second || cfg.LaTeX.LogTailLines != 40 {
		t.Errorf("latex defaults = %+v", cfg.LaTeX)
	}
	if cfg.Callback.Enabled {
		t.Error("callback enabled by default")
	}
}

func TestLoadConfigLayers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 9090
latex:
  engine: xelatex
  renderer_url: ${TEST_RENDERER_URL}
pipeline:
  max_retries: 4
logging:
  adapters:
    - name: console
      type: stdout
      enabled: true
      options:
        format: text
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PORT", "")
	t.Setenv("LATEX_ENGINE", "")
	t.Setenv("PDF_RENDERER_URL", "")
	t.Setenv("PAGE_BUDGET", "")
	t.Setenv("TEST_RENDERER_URL", "http://renderer:8999")
	t.Setenv("LATEX_MAX_RETRIES", "1")
	t.Setenv("LOG_COLORIZED", "true")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want yaml value 9090", cfg.Server.Port)
	}
	if cfg.LaTeX.Engine != "xelatex" {
		t.Errorf("engine = %q", cfg.LaTeX.Engine)
	}
	if cfg.LaTeX.RendererURL != "http://renderer:8999" {
		t.Errorf("renderer url = %q, want expanded env var", cfg.LaTeX.RendererURL)
	}
	if cfg.Pipeline.MaxRetries != 1 {
		t.Errorf("max retries = %d, want env override 1", cfg.Pipeline.MaxRetries)
	}
	if cfg.Pipeline.PageBudget != 2 {
		t.Errorf("page budget = %d, want default 2", cfg.Pipeline.PageBudget)
	}
	if len(cfg.Logging.Adapters) != 1 || cfg.Logging.Adapters[0].Options["colorized"] != true {
		t.Errorf("adapters = %+v", cfg.Logging.Adapters)
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LaTeX.Engine == "" {
		t.Error("defaults not applied")
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("RESUMETEX_A", "x")
	if got := expandEnvVars("a=${RESUMETEX_A} b=$RESUMETEX_A c=${RESUMETEX_UNSET}"); got != "a=x b=x c=${RESUMETEX_UNSET}" {
		t.Errorf("expandEnvVars() = %q", got)
	}
}

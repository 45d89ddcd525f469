package latex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// waitDelay bounds how long Wait blocks on output pipes after the engine's
// process group has been killed.
const waitDelay = 2 * time.Second

// Resource limits applied to sandboxed engine runs.
const (
	sandboxCPUSeconds     = 20
	sandboxAddressSpaceKB = 512 * 1024
	sandboxMaxFileBytes   = 200 << 20
)

// compileLocal runs the engine in a fresh temp directory that is removed on
// every path, including timeouts.
func (c *Compiler) compileLocal(ctx context.Context, doc string) ([]byte, error) {
	if _, err := exec.LookPath(c.cfg.Engine); err != nil {
		return nil, &BackendUnavailableError{Backend: BackendLocal, Err: err}
	}

	workDir, err := os.MkdirTemp(c.cfg.TempDir, "latex-build-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	if c.cfg.Sandbox {
		// the engine may run as nobody
		if err := os.Chmod(workDir, 0o777); err != nil {
			return nil, fmt.Errorf("chmod temp dir: %w", err)
		}
	}

	texFile := filepath.Join(workDir, "document.tex")
	if err := os.WriteFile(texFile, []byte(doc), 0o644); err != nil {
		return nil, fmt.Errorf("write tex file: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	cmd := c.buildCommand(runCtx, workDir, texFile)
	out := &cappedBuffer{limit: c.cfg.MaxOutputBytes}
	cmd.Stdout = out
	cmd.Stderr = out
	configureProcess(cmd, c.cfg.Sandbox)
	cmd.WaitDelay = waitDelay

	start := time.Now()
	runErr := cmd.Run()

	if runCtx.Err() != nil && ctx.Err() == nil {
		c.logger.Warn("LaTeX engine timed out", map[string]interface{}{
			"engine":  c.cfg.Engine,
			"timeout": c.cfg.Timeout.String(),
		})
		return nil, &CompilationError{
			DiagnosticLog: c.diagnostic(workDir, out),
			RawError:      fmt.Sprintf("engine exceeded %s", c.cfg.Timeout),
			Backend:       BackendLocal,
			TimedOut:      true,
		}
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("local compile: %w", ctx.Err())
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, &BackendUnavailableError{Backend: BackendLocal, Err: runErr}
		}
		return nil, &CompilationError{
			DiagnosticLog: c.diagnostic(workDir, out),
			RawError:      runErr.Error(),
			Backend:       BackendLocal,
		}
	}

	pdf, err := os.ReadFile(filepath.Join(workDir, "document.pdf"))
	if err != nil {
		return nil, &CompilationError{
			DiagnosticLog: c.diagnostic(workDir, out),
			RawError:      fmt.Sprintf("engine produced no PDF: %v", err),
			Backend:       BackendLocal,
		}
	}

	c.logger.Debug("LaTeX compiled locally", map[string]interface{}{
		"engine":      c.cfg.Engine,
		"duration_ms": time.Since(start).Milliseconds(),
		"pdf_bytes":   len(pdf),
	})
	return pdf, nil
}

// diagnostic prefers the tail of document.log over captured console output.
func (c *Compiler) diagnostic(workDir string, out *cappedBuffer) string {
	if data, err := os.ReadFile(filepath.Join(workDir, "document.log")); err == nil && len(bytes.TrimSpace(data)) > 0 {
		return TailLines(string(data), c.cfg.LogTailLines)
	}
	return TailLines(out.String(), c.cfg.LogTailLines)
}

func (c *Compiler) engineArgs(workDir, texFile string) []string {
	if filepath.Base(c.cfg.Engine) == "latexmk" {
		return []string{
			c.cfg.Engine,
			"-pdf",
			"-interaction=nonstopmode",
			"-halt-on-error",
			"-outdir=" + workDir,
			"-pdflatex=pdflatex -interaction=nonstopmode -halt-on-error -no-shell-escape",
			texFile,
		}
	}
	return []string{
		c.cfg.Engine,
		"-interaction=nonstopmode",
		"-halt-on-error",
		"-no-shell-escape",
		"-output-directory",
		workDir,
		texFile,
	}
}

func (c *Compiler) buildCommand(ctx context.Context, workDir, texFile string) *exec.Cmd {
	args := c.engineArgs(workDir, texFile)

	var cmd *exec.Cmd
	if c.cfg.Sandbox {
		// ulimit -f counts 512-byte blocks
		maxFileBlocks := (sandboxMaxFileBytes + 511) / 512
		script := fmt.Sprintf("ulimit -t %d; ulimit -v %d; ulimit -f %d; ulimit -n 32; exec %s",
			sandboxCPUSeconds, sandboxAddressSpaceKB, maxFileBlocks, shellJoin(args))
		cmd = exec.CommandContext(ctx, "/bin/sh", "-c", script)
		cmd.Env = sandboxEnv(workDir)
	} else {
		cmd = exec.CommandContext(ctx, args[0], args[1:]...)
		cmd.Env = append(os.Environ(), "TEXMFVAR="+filepath.Join(workDir, "texmf-var"))
	}
	cmd.Dir = workDir
	return cmd
}

// sandboxEnv is a minimal environment that drops proxies and credentials.
func sandboxEnv(workDir string) []string {
	env := []string{
		"PATH=/usr/bin:/bin:/usr/local/bin",
		"HOME=" + workDir,
		"TEXMFVAR=" + filepath.Join(workDir, "texmf-var"),
		"NO_PROXY=*",
		"http_proxy=",
		"https_proxy=",
	}
	for _, key := range []string{"LANG", "LC_ALL", "LC_CTYPE"} {
		if val, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+val)
		}
	}
	return env
}

// shellJoin quotes arguments for a POSIX shell.
func shellJoin(args []string) string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		out = append(out, shellQuote(a))
	}
	return strings.Join(out, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// cappedBuffer keeps the first limit bytes written and silently drops the
// rest so a chatty engine cannot exhaust memory.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	remaining := b.limit - b.buf.Len()
	switch {
	case remaining <= 0:
		b.truncated = true
	case len(p) > remaining:
		b.buf.Write(p[:remaining])
		b.truncated = true
	default:
		b.buf.Write(p)
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	if b.truncated {
		return b.buf.String() + "\n[output truncated]"
	}
	return b.buf.String()
}

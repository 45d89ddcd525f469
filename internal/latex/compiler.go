package latex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"resumetex/internal/config"
	"resumetex/internal/logging"
	"resumetex/internal/logging/types"

	"golang.org/x/time/rate"
)

const (
	BackendRemote = "remote"
	BackendLocal  = "local"
)

// CompileResult is a successfully typeset document.
type CompileResult struct {
	PDF       []byte
	PageCount int
	Backend   string
}

// CompilerConfig controls backend selection and local engine limits.
type CompilerConfig struct {
	Engine         string
	RemoteURL      string
	RemoteMaxBytes int
	RemoteRate     float64 // requests per second, 0 disables pacing
	RemoteBurst    int
	LocalOnly      bool
	Timeout        time.Duration
	MaxOutputBytes int
	LogTailLines   int
	TempDir        string
	Sandbox        bool
	HTTPClient     *http.Client
}

// DefaultCompilerConfig returns local pdflatex with the standard limits.
func DefaultCompilerConfig() CompilerConfig {
	return CompilerConfig{
		Engine:         "pdflatex",
		RemoteMaxBytes: 7000,
		Timeout:        30 * time.Second,
		MaxOutputBytes: 1 << 20,
		LogTailLines:   40,
	}
}

// Compiler turns LaTeX source into a PDF using the remote renderer when the
// document is small enough, and a local engine otherwise.
type Compiler struct {
	cfg        CompilerConfig
	client     *http.Client
	limiter    *rate.Limiter
	countPages func([]byte) (int, error)
	logger     types.Logger
}

// NewCompiler fills unset limits from DefaultCompilerConfig.
func NewCompiler(cfg CompilerConfig) *Compiler {
	def := DefaultCompilerConfig()
	if cfg.Engine == "" {
		cfg.Engine = def.Engine
	}
	if cfg.RemoteMaxBytes <= 0 {
		cfg.RemoteMaxBytes = def.RemoteMaxBytes
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = def.MaxOutputBytes
	}
	if cfg.LogTailLines <= 0 {
		cfg.LogTailLines = def.LogTailLines
	}

	c := &Compiler{
		cfg:        cfg,
		client:     cfg.HTTPClient,
		countPages: CountPages,
		logger:     logging.GetGlobalLogger(),
	}
	if c.client == nil {
		c.client = http.DefaultClient
	}
	if cfg.RemoteRate > 0 {
		burst := cfg.RemoteBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RemoteRate), burst)
	}
	return c
}

// NewCompilerFromConfig builds a Compiler from the latex section of cfg.
func NewCompilerFromConfig(cfg *config.Config) *Compiler {
	return NewCompiler(CompilerConfig{
		Engine:         cfg.LaTeX.Engine,
		RemoteURL:      cfg.LaTeX.RendererURL,
		RemoteMaxBytes: cfg.LaTeX.RemoteMaxBytes,
		RemoteRate:     cfg.LaTeX.RemoteRate,
		RemoteBurst:    cfg.LaTeX.RemoteBurst,
		LocalOnly:      cfg.LaTeX.LocalOnly,
		Timeout:        cfg.LaTeX.Timeout,
		MaxOutputBytes: cfg.LaTeX.MaxOutputBytes,
		LogTailLines:   cfg.LaTeX.LogTailLines,
		TempDir:        cfg.LaTeX.TempDir,
		Sandbox:        cfg.LaTeX.Sandbox,
	})
}

// Compile typesets doc. Failures are *CompilationError when the engine
// rejected the document and *BackendUnavailableError when no engine could
// be reached.
func (c *Compiler) Compile(ctx context.Context, doc string) (*CompileResult, error) {
	if strings.TrimSpace(doc) == "" {
		return nil, &CompilationError{RawError: "empty LaTeX source", Backend: BackendLocal}
	}

	if c.useRemote(doc) {
		pdf, err := c.compileRemote(ctx, doc)
		switch {
		case err == nil:
			return c.result(pdf, BackendRemote)
		case errors.Is(err, errRemoteTooLarge):
			c.logger.Info("Remote renderer rejected document size, compiling locally", map[string]interface{}{
				"bytes": len(doc),
			})
		default:
			return nil, err
		}
	}

	pdf, err := c.compileLocal(ctx, doc)
	if err != nil {
		return nil, err
	}
	return c.result(pdf, BackendLocal)
}

func (c *Compiler) useRemote(doc string) bool {
	return c.cfg.RemoteURL != "" && !c.cfg.LocalOnly && len(doc) <= c.cfg.RemoteMaxBytes
}

func (c *Compiler) result(pdf []byte, backend string) (*CompileResult, error) {
	pages, err := c.countPages(pdf)
	if err != nil {
		return nil, &CompilationError{
			RawError: fmt.Sprintf("unreadable PDF: %v", err),
			Backend:  backend,
		}
	}
	return &CompileResult{PDF: pdf, PageCount: pages, Backend: backend}, nil
}

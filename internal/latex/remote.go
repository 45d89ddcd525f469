package latex

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxRemoteResponse caps how much of a renderer response is read.
const maxRemoteResponse = 32 << 20

// compileRemote sends the document to the renderer as GET /compile?text=.
func (c *Compiler) compileRemote(ctx context.Context, doc string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for renderer slot: %w", err)
		}
	}

	u, err := url.Parse(strings.TrimRight(c.cfg.RemoteURL, "/") + "/compile")
	if err != nil {
		return nil, &BackendUnavailableError{Backend: BackendRemote, Err: fmt.Errorf("parse renderer url: %w", err)}
	}
	q := u.Query()
	q.Set("text", doc)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &BackendUnavailableError{Backend: BackendRemote, Err: fmt.Errorf("create request: %w", err)}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &BackendUnavailableError{Backend: BackendRemote, Err: fmt.Errorf("renderer request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteResponse))
	if err != nil {
		return nil, &BackendUnavailableError{Backend: BackendRemote, Err: fmt.Errorf("read renderer response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		if len(body) == 0 {
			return nil, &BackendUnavailableError{Backend: BackendRemote, Err: fmt.Errorf("renderer returned empty pdf")}
		}
		return body, nil
	case resp.StatusCode == http.StatusRequestURITooLong,
		resp.StatusCode == http.StatusRequestHeaderFieldsTooLarge:
		// net/http answers 431 itself when the request line outgrows its header limit
		return nil, errRemoteTooLarge
	case resp.StatusCode >= 500:
		return nil, &BackendUnavailableError{
			Backend: BackendRemote,
			Err:     fmt.Errorf("renderer error: status=%d body=%s", resp.StatusCode, Preview(string(body), 200)),
		}
	default:
		return nil, &CompilationError{
			DiagnosticLog: TailLines(string(body), c.cfg.LogTailLines),
			RawError:      fmt.Sprintf("renderer status %d", resp.StatusCode),
			Backend:       BackendRemote,
		}
	}
}

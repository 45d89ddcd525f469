// Package providers adapts vendor SDKs to a single text-completion call.
package providers

// Request is one completion: a system instruction plus the user turn.
type Request struct {
	System    string
	User      string
	MaxTokens int
}

// Response carries the concatenated text of the first candidate and the
// token counts the vendor reported.
type Response struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}

func maxTokens(req Request, fallback int) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if fallback > 0 {
		return fallback
	}
	return 8192
}

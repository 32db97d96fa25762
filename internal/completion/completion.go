package completion

import (
	"context"
)

// Request carries one prompt to the completion service along with the
// sampling parameters for the call.
type Request struct {
	Prompt      string
	Model       string
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// Response is the raw text returned for one attempt.
type Response struct {
	Text       string
	DurationMs int64
}

// Completer is the completion-service boundary. Implementations own their
// transport; callers treat any returned error as a transient call failure.
// Implementations must honor ctx cancellation and deadlines.
type Completer interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
}

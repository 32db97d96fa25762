package completion

import (
	"context"
	"fmt"
	"sync"
)

// MockReply scripts one Complete call of a MockCompleter.
type MockReply struct {
	Text string
	Err  error
}

// MockCompleter is a scripted Completer for tests and dry runs. Replies are
// consumed in order; once the script is exhausted (or when no script was
// given) every call returns a canned, well-formed response.
type MockCompleter struct {
	mu      sync.Mutex
	replies []MockReply
	calls   int
	prompts []string
}

var _ Completer = (*MockCompleter)(nil)

func NewMockCompleter(replies ...MockReply) *MockCompleter {
	return &MockCompleter{replies: replies}
}

func (m *MockCompleter) Complete(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.prompts = append(m.prompts, req.Prompt)
	idx := m.calls
	m.calls++

	if idx >= len(m.replies) {
		return &Response{Text: cannedResponse(req.Model)}, nil
	}

	reply := m.replies[idx]
	if reply.Err != nil {
		return nil, reply.Err
	}

	return &Response{Text: reply.Text}, nil
}

// CallCount reports how many times Complete was invoked.
func (m *MockCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls
}

// Prompts returns a copy of every prompt received, in call order.
func (m *MockCompleter) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, len(m.prompts))
	copy(out, m.prompts)

	return out
}

func cannedResponse(model string) string {
	return fmt.Sprintf("Tag: Conversion [Mock reply from %s].\n1) Read the session log\n2) Produced a scripted classification", model)
}

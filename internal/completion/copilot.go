package completion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	copilot "github.com/github/copilot-sdk/go"
)

// CopilotCompleter runs prompts through the GitHub Copilot CLI via its SDK.
// The CLI exposes no sampling knobs, so Temperature, TopP and MaxTokens on
// the request are ignored by this backend.
type CopilotCompleter struct {
	client copilotClient

	startOnce sync.Once
}

var _ Completer = (*CopilotCompleter)(nil)

// CopilotCompleterBuilder builds a CopilotCompleter with options
type CopilotCompleterBuilder struct {
	completer *CopilotCompleter
}

type CopilotCompleterBuilderOptions struct {
	NewCopilotClient func(clientOptions *copilot.ClientOptions) copilotClient
}

func NewCopilotCompleterBuilder(options *CopilotCompleterBuilderOptions) *CopilotCompleterBuilder {
	var client copilotClient

	copilotOptions := &copilot.ClientOptions{
		LogLevel:  "error",
		AutoStart: copilot.Bool(false),
	}

	if options == nil || options.NewCopilotClient == nil {
		client = newCopilotClient(copilotOptions)
	} else {
		client = options.NewCopilotClient(copilotOptions)
	}

	return &CopilotCompleterBuilder{
		completer: &CopilotCompleter{client: client},
	}
}

func (b *CopilotCompleterBuilder) Build() *CopilotCompleter {
	return b.completer
}

func (c *CopilotCompleter) Complete(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, fmt.Errorf("nil req was passed to CopilotCompleter.Complete")
	}

	var startErr error

	c.startOnce.Do(func() {
		// NOTE: this is a workaround, copilot client has an 'autostart' feature, but it runs into issues
		// when it tries to autostart from separate goroutines.
		startErr = c.client.Start(ctx)
	})

	if startErr != nil {
		return nil, fmt.Errorf("copilot failed to start: %w", startErr)
	}

	start := time.Now()

	session, err := c.client.CreateSession(ctx, &copilot.SessionConfig{
		Model: req.Model,
	})

	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	collector := newMessageCollector()

	unsubscribe := session.On(collector.On)
	defer unsubscribe()

	unsubscribe = session.On(sessionEventToSlog)
	defer unsubscribe()

	_, err = session.SendAndWait(ctx, copilot.MessageOptions{
		Prompt: req.Prompt,
	})

	if err != nil {
		return nil, fmt.Errorf("sending prompt failed: %w", err)
	}

	if msg := collector.ErrorMessage(); msg != "" {
		return nil, fmt.Errorf("session failed: %s", msg)
	}

	duration := time.Since(start)

	slog.Debug("Copilot session finished",
		"sessionID", session.SessionID(),
		"durationMs", duration.Milliseconds())

	return &Response{
		Text:       strings.TrimSpace(strings.Join(collector.Parts(), "")),
		DurationMs: duration.Milliseconds(),
	}, nil
}

// Close stops the underlying Copilot client.
func (c *CopilotCompleter) Close() error {
	return c.client.Stop()
}

func sessionEventToSlog(event copilot.SessionEvent) {
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	attrs := []any{
		"type", event.Type,
	}

	attrs = addIf(attrs, "content", event.Data.Content)
	attrs = addIf(attrs, "deltaContent", event.Data.DeltaContent)
	attrs = addIf(attrs, "toolName", event.Data.ToolName)

	slog.Debug("Event received", attrs...)
}

func addIf[T any](attrs []any, name string, v *T) []any {
	if v != nil {
		attrs = append(attrs, name)
		attrs = append(attrs, *v)
	}

	return attrs
}

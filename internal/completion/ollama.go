package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is where a locally running Ollama server listens.
const DefaultBaseURL = "http://localhost:11434"

// OllamaCompleter talks to an Ollama server over its native REST API.
type OllamaCompleter struct {
	baseURL    string
	httpClient *http.Client
}

var _ Completer = (*OllamaCompleter)(nil)

type OllamaOption func(*OllamaCompleter)

// WithHTTPClient swaps the underlying HTTP client, mostly for tests.
func WithHTTPClient(client *http.Client) OllamaOption {
	return func(o *OllamaCompleter) {
		o.httpClient = client
	}
}

func NewOllamaCompleter(baseURL string, opts ...OllamaOption) *OllamaCompleter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	o := &OllamaCompleter{
		baseURL: strings.TrimRight(baseURL, "/"),
		// Timeouts come from the caller's context, not the client.
		httpClient: &http.Client{},
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (o *OllamaCompleter) Complete(ctx context.Context, req *Request) (*Response, error) {
	payload := generateRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: req.Temperature,
			TopP:        req.TopP,
			NumPredict:  req.MaxTokens,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()

	httpResp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling completion service: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, fmt.Errorf("completion service returned %s: %s", httpResp.Status, strings.TrimSpace(string(snippet)))
	}

	var genResp generateResponse

	if err := json.NewDecoder(httpResp.Body).Decode(&genResp); err != nil {
		return nil, fmt.Errorf("decoding completion response: %w", err)
	}

	elapsed := time.Since(start)

	slog.Debug("Completion call finished",
		"model", req.Model,
		"promptChars", len(req.Prompt),
		"responseChars", len(genResp.Response),
		"durationMs", elapsed.Milliseconds())

	return &Response{
		Text:       strings.TrimSpace(genResp.Response),
		DurationMs: elapsed.Milliseconds(),
	}, nil
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels returns the model names the server has pulled locally.
func (o *OllamaCompleter) ListModels(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("building model list request: %w", err)
	}

	httpResp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling completion service: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("completion service returned %s", httpResp.Status)
	}

	var tags tagsResponse

	if err := json.NewDecoder(httpResp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decoding model list: %w", err)
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}

	return names, nil
}

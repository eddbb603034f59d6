// Package agent translates free-text operator instructions into a single
// validated, tenant-scoped SQL statement and executes it.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Sentinel errors for the command engine
var (
	// ErrProviderUnavailable means the language model cannot be called at
	// all (no credential, transport failure). The service degrades, it
	// does not crash.
	ErrProviderUnavailable = errors.New("language model unavailable")

	// ErrUnsafeStatement means the generated statement failed validation.
	// It is a hard security boundary: the statement is never executed.
	ErrUnsafeStatement = errors.New("unsafe statement rejected")

	// ErrExecution means the store rejected a statement that passed
	// validation, e.g. a constraint violation. Not retried automatically.
	ErrExecution = errors.New("statement execution failed")
)

// LLMProvider produces one completion for a system prompt and user text.
// Output is untrusted: everything it returns must pass validation.
type LLMProvider interface {
	Complete(ctx context.Context, systemPrompt, userText string) (string, error)
}

// OpenAIChatProvider implements LLMProvider over the chat completions API
type OpenAIChatProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOpenAIChatProvider creates a chat completions provider
func NewOpenAIChatProvider(apiKey, baseURL, model string, timeout time.Duration) *OpenAIChatProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIChatProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends the prompt pair and returns the raw completion text
func (p *OpenAIChatProvider) Complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	if p.apiKey == "" {
		return "", fmt.Errorf("%w: no API key configured", ErrProviderUnavailable)
	}

	reqBody := chatCompletionRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userText},
		},
		// Deterministic output keeps generated statements reviewable
		Temperature: 0,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("%w: failed to marshal request: %v", ErrProviderUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("%w: failed to create request: %v", ErrProviderUnavailable, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: request failed: %v", ErrProviderUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %v", ErrProviderUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: API status %d: %s", ErrProviderUnavailable, resp.StatusCode, string(body))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: failed to parse response: %v", ErrProviderUnavailable, err)
	}

	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", ErrProviderUnavailable)
	}

	return parsed.Choices[0].Message.Content, nil
}

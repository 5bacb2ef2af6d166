// Package ai holds the summarization collaborator. The real implementation
// talks to an OpenAI-style chat-completions endpoint; summarization failures
// are soft (the note is saved without a summary).
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Summarizer produces a short summary of a shared note.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Client calls a chat-completions HTTP API.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	httpc   *http.Client
}

// NewClient creates a summarizer client. baseURL is the API root, e.g.
// https://api.openai.com/v1.
func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

const summarizePrompt = "Summarize the following study note in at most three sentences for a classmate:"

// Summarize asks the completion API for a short summary of text.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: summarizePrompt},
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode summarize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build summarize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("summarize request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("summarize request: status %d", resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode summarize response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("summarize response has no choices")
	}
	return out.Choices[0].Message.Content, nil
}

// Disabled is a no-op summarizer used when no API key is configured.
type Disabled struct{}

// Summarize always returns an empty summary.
func (Disabled) Summarize(ctx context.Context, text string) (string, error) {
	return "", nil
}

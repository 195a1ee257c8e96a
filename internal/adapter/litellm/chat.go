package litellm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Strob0t/moecore/internal/domain/expert"
	"github.com/Strob0t/moecore/internal/port/expertbackend"
)

// BackendName is the expertbackend registry name of this adapter.
const BackendName = "litellm"

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is an OpenAI-compatible chat completion request.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// ChatCompletion sends req and returns the content of the first choice.
func (c *Client) ChatCompletion(ctx context.Context, req ChatRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/chat/completions", body)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	var out chatResponse
	if err := json.Unmarshal(resp, &out); err != nil {
		return "", fmt.Errorf("unmarshal chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("chat completion: no choices returned")
	}
	return out.Choices[0].Message.Content, nil
}

// Callable adapts the client into an expert. The system prompt, when set,
// precedes every call; a non-empty run context is appended to the user turn.
func (c *Client) Callable(model, system string) expert.Callable {
	return func(text string, runCtx map[string]any) (string, error) {
		var msgs []Message
		if system != "" {
			msgs = append(msgs, Message{Role: "system", Content: system})
		}
		user := text
		if len(runCtx) > 0 {
			if data, err := json.Marshal(runCtx); err == nil {
				user += "\n\nContext: " + string(data)
			}
		}
		msgs = append(msgs, Message{Role: "user", Content: user})
		return c.ChatCompletion(context.Background(), ChatRequest{Model: model, Messages: msgs})
	}
}

// Factory returns an expertbackend.Factory using client for calls. Config
// keys: "model" (defaults to defaultModel) and "system".
func Factory(client *Client, defaultModel string) expertbackend.Factory {
	return func(cfg map[string]string) (expert.Callable, error) {
		model := cfg["model"]
		if model == "" {
			model = defaultModel
		}
		if model == "" {
			return nil, errors.New("litellm: model is required")
		}
		return client.Callable(model, cfg["system"]), nil
	}
}

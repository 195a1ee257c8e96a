// Package gemini is an expert backend on Google's Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/Strob0t/moecore/internal/domain/expert"
	"github.com/Strob0t/moecore/internal/port/expertbackend"
)

// BackendName is the expertbackend registry name of this adapter.
const BackendName = "gemini"

const defaultModel = "gemini-2.5-flash"

// generator is the slice of the genai models API the backend uses.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Backend generates expert answers with one Gemini client.
type Backend struct {
	models       generator
	defaultModel string
}

// New creates a backend authenticated with apiKey.
func New(ctx context.Context, apiKey, model string) (*Backend, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newBackend(client.Models, model), nil
}

func newBackend(models generator, model string) *Backend {
	if model == "" {
		model = defaultModel
	}
	return &Backend{models: models, defaultModel: model}
}

// Generate sends text as a single user turn and returns the response text.
func (b *Backend) Generate(ctx context.Context, model, system, text string) (string, error) {
	var cfg *genai.GenerateContentConfig
	if system != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		}
	}
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}

	resp, err := b.models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	out := strings.TrimSpace(resp.Text())
	if out == "" {
		return "", errors.New("gemini generate: empty response")
	}
	return out, nil
}

// Factory returns an expertbackend.Factory. Config keys: "model" and "system".
func (b *Backend) Factory() expertbackend.Factory {
	return func(cfg map[string]string) (expert.Callable, error) {
		model := cfg["model"]
		if model == "" {
			model = b.defaultModel
		}
		system := cfg["system"]
		return func(text string, runCtx map[string]any) (string, error) {
			if len(runCtx) > 0 {
				if data, err := json.Marshal(runCtx); err == nil {
					text += "\n\nContext: " + string(data)
				}
			}
			return b.Generate(context.Background(), model, system, text)
		}, nil
	}
}

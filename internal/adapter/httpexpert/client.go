// Package httpexpert calls experts hosted behind plain HTTP endpoints,
// including Ollama's generate API.
package httpexpert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Strob0t/moecore/internal/domain/expert"
)

// Backend names.
const (
	BackendHTTP   = "http"
	BackendOllama = "ollama"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultOllamaURL = "http://localhost:11434"
	maxResponseSize  = 4 << 20
)

// answerKeys are tried in order when extracting the reply from a JSON object.
var answerKeys = []string{"text", "output", "result", "response"}

// HTTPFactory builds a callable that POSTs {"prompt", "context"} to
// config["url"]. config["timeout"] is a Go duration; config["api_key"] is
// sent as a bearer token.
func HTTPFactory(cfg map[string]string) (expert.Callable, error) {
	url := cfg["url"]
	if url == "" {
		return nil, errors.New("http: url is required")
	}
	client, err := newHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	apiKey := cfg["api_key"]
	return func(text string, runCtx map[string]any) (string, error) {
		body := map[string]any{"prompt": text}
		if len(runCtx) > 0 {
			body["context"] = runCtx
		}
		return post(client, url, apiKey, body)
	}, nil
}

// OllamaFactory builds a callable for Ollama's /api/generate. config["model"]
// is required; config["url"] defaults to the local daemon.
func OllamaFactory(cfg map[string]string) (expert.Callable, error) {
	model := cfg["model"]
	if model == "" {
		return nil, errors.New("ollama: model is required")
	}
	base := cfg["url"]
	if base == "" {
		base = defaultOllamaURL
	}
	client, err := newHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	url := strings.TrimRight(base, "/") + "/api/generate"
	system := cfg["system"]
	return func(text string, _ map[string]any) (string, error) {
		body := map[string]any{"model": model, "prompt": text, "stream": false}
		if system != "" {
			body["system"] = system
		}
		return post(client, url, "", body)
	}, nil
}

func newHTTPClient(cfg map[string]string) (*http.Client, error) {
	timeout := defaultTimeout
	if v := cfg["timeout"]; v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", v, err)
		}
		timeout = d
	}
	return &http.Client{Timeout: timeout}, nil
}

func post(client *http.Client, url, apiKey string, body any) (string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("expert endpoint error %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return extractAnswer(raw), nil
}

// extractAnswer returns the first answer key of a JSON object, else its
// first string value by key order, else the trimmed body.
func extractAnswer(raw []byte) string {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return s
		}
		return strings.TrimSpace(string(raw))
	}
	for _, k := range answerKeys {
		if s, ok := obj[k].(string); ok {
			return s
		}
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if s, ok := obj[k].(string); ok {
			return s
		}
	}
	return strings.TrimSpace(string(raw))
}

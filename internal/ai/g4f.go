package ai

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// DefaultG4FEngine is used when no engine is configured.
const DefaultG4FEngine = "g4f:gpt-oss-120b"

type G4FProvider struct {
	baseURL string
	model   string
	client  *http.Client
	timeout time.Duration
}

// NewG4FProvider resolves engine to an endpoint and model. Examples:
//
//	g4f:gpt-oss-120b
//	g4f:groq/qwen/qwen3-32b
//	g4f:ollama/gpt-oss:20b
//
// A non-empty baseURL replaces the resolved endpoint.
func NewG4FProvider(engine, baseURL string, timeout time.Duration, client *http.Client) *G4FProvider {
	parts := strings.SplitN(engine, ":", 2)
	if len(parts) != 2 || parts[1] == "" {
		parts = strings.SplitN(DefaultG4FEngine, ":", 2)
	}
	target := parts[1]

	var base, model string
	switch {
	case strings.HasPrefix(target, "groq/"):
		base = "https://g4f.dev/api/groq"
		model = strings.TrimPrefix(target, "groq/")
	case strings.HasPrefix(target, "ollama/"):
		base = "https://g4f.dev/api/ollama"
		model = strings.TrimPrefix(target, "ollama/")
	default:
		base = "https://g4f.dev/api/gpt-oss-120b"
		model = target
	}
	if baseURL != "" {
		base = strings.TrimRight(baseURL, "/")
	}
	if client == nil {
		client = &http.Client{}
	}
	return &G4FProvider{baseURL: base, model: model, client: client, timeout: timeout}
}

func (p *G4FProvider) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	payload := map[string]any{
		"model":    p.model,
		"messages": []Message{{Role: "system", Content: systemPrompt}, {Role: "user", Content: userPrompt}},
	}
	body, _, err := postJSON(ctx, p.client, p.baseURL+"/chat/completions", p.timeout, payload, "g4f")
	if err != nil {
		return "", err
	}
	return firstChoice(body, "g4f")
}

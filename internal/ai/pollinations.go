package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const pollinationsURL = "https://text.pollinations.ai/openai"

type PollinationsProvider struct {
	url     string
	client  *http.Client
	timeout time.Duration
}

// NewPollinationsProvider creates a provider. url and client are optional.
func NewPollinationsProvider(url string, timeout time.Duration, client *http.Client) *PollinationsProvider {
	if url == "" {
		url = pollinationsURL
	}
	if client == nil {
		client = &http.Client{}
	}
	return &PollinationsProvider{url: url, client: client, timeout: timeout}
}

func (p *PollinationsProvider) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	payload := map[string]any{
		"model":       "openai",
		"messages":    []Message{{Role: "system", Content: systemPrompt}, {Role: "user", Content: userPrompt}},
		"temperature": 1,
		"private":     true,
	}
	body, header, err := postJSON(ctx, p.client, p.url, p.timeout, payload, "pollinations")
	if err != nil {
		return "", err
	}
	if strings.Contains(header.Get("Content-Type"), "text/html") {
		return "", fmt.Errorf("pollinations returned html")
	}
	reply, err := firstChoice(body, "pollinations")
	if err != nil {
		return "", err
	}
	if isGarbageResponse(reply) {
		return "", fmt.Errorf("pollinations returned garbage")
	}
	return reply, nil
}

// postJSON sends payload and returns the body of a 2xx answer. Non-2xx
// answers become *StatusError.
func postJSON(ctx context.Context, client *http.Client, url string, timeout time.Duration, payload any, provider string) ([]byte, http.Header, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256*1024))
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, &StatusError{Provider: provider, Code: resp.StatusCode, Body: truncate(body)}
	}
	return body, resp.Header, nil
}

func firstChoice(body []byte, provider string) (string, error) {
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%s: unmarshal: %w body=%s", provider, err, truncate(body))
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%s: empty choices", provider)
	}
	return cleanReply(parsed.Choices[0].Message.Content), nil
}

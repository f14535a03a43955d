package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// dialect captures how one provider's chat endpoint is addressed: where it
// lives, how callers authenticate, and the shape of its request and reply.
type dialect struct {
	name         string
	endpoint     string
	defaultModel string
	authorize    func(h http.Header, apiKey string)
	encode       func(c *providerClient, prompt string) any
	decode       func(body []byte) (string, error)
}

var dialects = map[string]dialect{
	"openai": {
		name:         "OpenAI",
		endpoint:     "https://api.openai.com/v1/chat/completions",
		defaultModel: "gpt-4o-mini",
		authorize: func(h http.Header, apiKey string) {
			h.Set("Authorization", "Bearer "+apiKey)
		},
		encode: func(c *providerClient, prompt string) any {
			return chatRequest{
				Model: c.model,
				Messages: []chatMessage{
					{Role: "system", Content: systemPrompt},
					{Role: "user", Content: prompt},
				},
				Temperature: c.temperature,
				MaxTokens:   c.maxTokens,
			}
		},
		decode: decodeChatReply,
	},
	"anthropic": {
		name:         "anthropic",
		endpoint:     "https://api.anthropic.com/v1/messages",
		defaultModel: "claude-3-5-haiku-latest",
		authorize: func(h http.Header, apiKey string) {
			h.Set("x-api-key", apiKey)
			h.Set("anthropic-version", "2023-06-01")
		},
		encode: func(c *providerClient, prompt string) any {
			return chatRequest{
				Model:       c.model,
				System:      systemPrompt,
				Messages:    []chatMessage{{Role: "user", Content: prompt}},
				Temperature: c.temperature,
				MaxTokens:   c.maxTokens,
			}
		},
		decode: decodeMessagesReply,
	},
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	System      string        `json:"system,omitempty"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

// providerClient speaks one dialect over HTTP.
type providerClient struct {
	dialect     dialect
	httpClient  *http.Client
	apiKey      string
	model       string
	url         string
	temperature float64
	maxTokens   int
}

// NewClient creates a raw LLM client for cfg.Provider.
func NewClient(cfg Config) (Client, error) {
	d, ok := dialects[strings.ToLower(strings.TrimSpace(cfg.Provider))]
	if !ok {
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
	return newProviderClient(d, cfg)
}

func newProviderClient(d dialect, cfg Config) (*providerClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s API key is required", d.name)
	}

	c := &providerClient{
		dialect:     d,
		httpClient:  newHTTPClient(),
		apiKey:      cfg.APIKey,
		model:       firstNonEmpty(cfg.Model, d.defaultModel),
		url:         firstNonEmpty(cfg.BaseURL, d.endpoint),
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
	if c.temperature == 0 {
		c.temperature = 0.1
	}
	if c.maxTokens == 0 {
		c.maxTokens = 2000
	}
	return c, nil
}

// Complete posts prompt to the provider and returns the reply text.
func (c *providerClient) Complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(c.dialect.encode(c, prompt))
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.dialect.authorize(req.Header, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s request failed: %w", c.dialect.name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", statusError(c.dialect.name, resp.StatusCode, body)
	}

	return c.dialect.decode(body)
}

func decodeChatReply(body []byte) (string, error) {
	var reply struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(reply.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}
	return reply.Choices[0].Message.Content, nil
}

func decodeMessagesReply(body []byte) (string, error) {
	var reply struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	var text strings.Builder
	for _, block := range reply.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("no content in response")
	}
	return text.String(), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

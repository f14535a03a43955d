package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Veraticus/cardwise/internal/common"
)

// Client defines the interface for LLM providers.
type Client interface {
	// Complete sends a single prompt and returns the raw text of the reply.
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config holds configuration for the LLM clients and the merchant oracle.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	MaxRetries  int
	RetryDelay  time.Duration
	CacheTTL    time.Duration
	RateLimit   int
	Temperature float64
	MaxTokens   int
}

const systemPrompt = "You classify merchants from card statements into merchant category codes. Respond with JSON only."

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// statusError classifies a non-200 provider response for the retry loop.
func statusError(provider string, status int, body []byte) error {
	err := fmt.Errorf("%s API error (status %d): %s", provider, status, string(body))
	switch {
	case status == http.StatusTooManyRequests:
		return common.Transient(fmt.Errorf("%w: %w", common.ErrRateLimit, err))
	case status >= 500:
		return common.Transient(err)
	default:
		return common.Permanent(err)
	}
}

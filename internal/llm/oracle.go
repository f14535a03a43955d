package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/Veraticus/cardwise/internal/common"
	"github.com/Veraticus/cardwise/internal/merchant"
)

var _ merchant.Oracle = (*MerchantOracle)(nil)

// errUnparsable marks a reply with no recoverable JSON payload.
var errUnparsable = errors.New("oracle response is not valid JSON")

// MerchantOracle asks a language model to propose merchant category codes.
// Proposals are cached per merchant so repeated imports of the same
// statement do not hit the provider again.
type MerchantOracle struct {
	client      Client
	cache       *proposalCache
	logger      *slog.Logger
	rateLimiter *rateLimiter
	retry       common.RetryPolicy
}

// NewMerchantOracle creates an oracle backed by the configured provider.
func NewMerchantOracle(cfg Config, logger *slog.Logger) (*MerchantOracle, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return NewMerchantOracleWithClient(client, cfg, logger), nil
}

// NewMerchantOracleWithClient wraps an existing client. Used by tests and by
// callers that bring their own transport.
func NewMerchantOracleWithClient(client Client, cfg Config, logger *slog.Logger) *MerchantOracle {
	if logger == nil {
		logger = slog.Default()
	}

	delay := cfg.RetryDelay
	if delay == 0 {
		delay = time.Second
	}

	return &MerchantOracle{
		client: client,
		cache:  newProposalCache(cfg.CacheTTL),
		logger: logger.With("component", "oracle"),
		retry: common.RetryPolicy{
			Attempts:   cfg.MaxRetries,
			Delay:      delay,
			MaxDelay:   max(delay, 30*time.Second),
			Multiplier: 2,
		},
		rateLimiter: newRateLimiter(cfg.RateLimit),
	}
}

// ResolveMerchants classifies a batch of merchants. Cached proposals are
// served locally; only the misses are sent to the provider. A reply that
// contains no parsable JSON at all fails the batch, while individual
// malformed entries are dropped.
func (o *MerchantOracle) ResolveMerchants(ctx context.Context, req merchant.OracleRequest) (merchant.OracleResponse, error) {
	var (
		response merchant.OracleResponse
		misses   []string
	)
	for _, name := range req.MerchantNames {
		key := cacheKey(name)
		if key == "" {
			continue
		}
		if cached, ok := o.cache.get(key); ok {
			response.Results = append(response.Results, cached)
			continue
		}
		misses = append(misses, name)
	}

	if len(misses) == 0 {
		o.logger.Debug("all merchants served from cache", "count", len(response.Results))
		return response, nil
	}

	prompt := buildPrompt(misses, req.KnownMCCHints)

	var results []merchant.OracleResult
	err := common.Retry(ctx, o.retry, func(ctx context.Context) error {
		if err := o.rateLimiter.wait(ctx); err != nil {
			return common.Permanent(err)
		}
		reply, err := o.client.Complete(ctx, prompt)
		if err != nil {
			return err
		}
		parsed, err := parseResults(reply, o.logger)
		if err != nil {
			return common.Permanent(err)
		}
		results = parsed
		return nil
	})
	if err != nil {
		return response, fmt.Errorf("%w: %w", common.ErrOracleUnavailable, err)
	}

	requested := make(map[string]bool, len(misses))
	for _, name := range misses {
		requested[cacheKey(name)] = true
	}
	for _, result := range results {
		if key := cacheKey(result.Merchant); requested[key] {
			o.cache.set(key, result)
		}
		response.Results = append(response.Results, result)
	}

	o.logger.Info("oracle batch resolved",
		"requested", len(misses),
		"returned", len(results))

	return response, nil
}

// Close implements io.Closer.
func (o *MerchantOracle) Close() error {
	return nil
}

func cacheKey(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

func buildPrompt(merchants []string, hints []merchant.MCCHint) string {
	var b strings.Builder
	b.WriteString("Classify each merchant below into a four-digit merchant category code (MCC).\n")
	b.WriteString("Prefer one of the known codes when it fits.\n\n")

	if len(hints) > 0 {
		b.WriteString("Known codes:\n")
		for _, hint := range hints {
			fmt.Fprintf(&b, "- %s: %s\n", hint.Code, hint.Description)
		}
		b.WriteString("\n")
	}

	b.WriteString("Merchants:\n")
	for _, name := range merchants {
		fmt.Fprintf(&b, "- %s\n", name)
	}

	b.WriteString(`
Respond with JSON only, in exactly this shape:
{"results": [{"merchant": "<merchant as given>", "mcc": "<4 digits>", "category": "<category>", "subCategory": "<sub-category>", "confidence": <0.0-1.0>, "description": "<what the mcc covers>", "reasoning": "<one sentence>"}]}
Omit merchants you cannot classify.`)

	return b.String()
}

// stripFences removes a surrounding markdown code block, if any.
func stripFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```")
	if nl := strings.IndexByte(content, '\n'); nl >= 0 {
		content = content[nl+1:]
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

// parseResults accepts either {"results": [...]} or a bare array.
func parseResults(reply string, logger *slog.Logger) ([]merchant.OracleResult, error) {
	content := stripFences(reply)
	if content == "" {
		return nil, nil
	}

	var entries []json.RawMessage
	if strings.HasPrefix(content, "[") {
		if err := json.Unmarshal([]byte(content), &entries); err != nil {
			return nil, fmt.Errorf("%w: %w", errUnparsable, err)
		}
	} else {
		var envelope struct {
			Results []json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal([]byte(content), &envelope); err != nil {
			return nil, fmt.Errorf("%w: %w", errUnparsable, err)
		}
		entries = envelope.Results
	}

	results := make([]merchant.OracleResult, 0, len(entries))
	for i, raw := range entries {
		result, err := decodeResult(raw)
		if err != nil {
			logger.Warn("dropping malformed oracle entry", "index", i, "error", err)
			continue
		}
		results = append(results, result)
	}
	return results, nil
}

func decodeResult(raw json.RawMessage) (merchant.OracleResult, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return merchant.OracleResult{}, err
	}

	name := strings.TrimSpace(cast.ToString(fields["merchant"]))
	if name == "" {
		return merchant.OracleResult{}, fmt.Errorf("missing merchant")
	}

	code, err := cast.ToStringE(fields["mcc"])
	if err != nil {
		return merchant.OracleResult{}, fmt.Errorf("mcc: %w", err)
	}

	confidence, err := cast.ToFloat64E(fields["confidence"])
	if err != nil {
		return merchant.OracleResult{}, fmt.Errorf("confidence: %w", err)
	}

	return merchant.OracleResult{
		Merchant:    name,
		MCCCode:     strings.TrimSpace(code),
		Category:    strings.TrimSpace(cast.ToString(fields["category"])),
		SubCategory: strings.TrimSpace(cast.ToString(fields["subCategory"])),
		Description: strings.TrimSpace(cast.ToString(fields["description"])),
		Reasoning:   strings.TrimSpace(cast.ToString(fields["reasoning"])),
		Confidence:  confidence,
	}, nil
}

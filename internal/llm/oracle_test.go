package llm

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/cardwise/internal/common"
	"github.com/Veraticus/cardwise/internal/merchant"
)

func newTestOracle(t *testing.T, client Client) *MerchantOracle {
	t.Helper()
	oracle := NewMerchantOracleWithClient(client, Config{
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		RateLimit:  1000,
	}, slog.Default())
	t.Cleanup(func() { _ = oracle.Close() })
	return oracle
}

func TestResolveMerchants(t *testing.T) {
	client := NewMockClient(MockReply{Text: "```json\n" + `{"results": [
		{"merchant": "BLUE TOKAI", "mcc": "5814", "category": "Dining", "subCategory": "Coffee Shops", "confidence": 0.92,
		 "description": " Fast Food Restaurants ", "reasoning": "Coffee roaster chain with cafes"},
		{"merchant": "INDIGO", "mcc": 4511, "category": "Travel", "confidence": "0.8"},
		{"merchant": "", "mcc": "5999", "confidence": 0.5},
		{"merchant": "BROKEN", "mcc": "5999", "confidence": "high"}
	]}` + "\n```"})
	oracle := newTestOracle(t, client)

	resp, err := oracle.ResolveMerchants(context.Background(), merchant.OracleRequest{
		MerchantNames: []string{"BLUE TOKAI", "INDIGO", "BROKEN"},
		KnownMCCHints: []merchant.MCCHint{{Code: "5814", Description: "Fast Food Restaurants"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)

	assert.Equal(t, merchant.OracleResult{
		Merchant:    "BLUE TOKAI",
		MCCCode:     "5814",
		Category:    "Dining",
		SubCategory: "Coffee Shops",
		Description: "Fast Food Restaurants",
		Reasoning:   "Coffee roaster chain with cafes",
		Confidence:  0.92,
	}, resp.Results[0])
	assert.Empty(t, resp.Results[1].Description)
	assert.Empty(t, resp.Results[1].Reasoning)
	assert.Equal(t, "4511", resp.Results[1].MCCCode)
	assert.InDelta(t, 0.8, resp.Results[1].Confidence, 1e-9)

	prompts := client.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "- 5814: Fast Food Restaurants")
	assert.Contains(t, prompts[0], "- BLUE TOKAI")
	assert.Contains(t, prompts[0], "JSON only")
	assert.Contains(t, prompts[0], `"reasoning"`)
}

func TestResolveMerchantsCachesPerMerchant(t *testing.T) {
	client := NewMockClient(
		MockReply{Text: `[{"merchant": "BLUE TOKAI", "mcc": "5814", "category": "Dining", "confidence": 0.9}]`},
		MockReply{Text: `[{"merchant": "INDIGO", "mcc": "4511", "category": "Travel", "confidence": 0.9}]`},
	)
	oracle := newTestOracle(t, client)
	ctx := context.Background()

	_, err := oracle.ResolveMerchants(ctx, merchant.OracleRequest{MerchantNames: []string{"BLUE TOKAI"}})
	require.NoError(t, err)

	resp, err := oracle.ResolveMerchants(ctx, merchant.OracleRequest{MerchantNames: []string{"blue tokai", "INDIGO"}})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "5814", resp.Results[0].MCCCode)
	assert.Equal(t, "4511", resp.Results[1].MCCCode)

	prompts := client.Prompts()
	require.Len(t, prompts, 2)
	assert.NotContains(t, prompts[1], "BLUE TOKAI")
	assert.Equal(t, 2, oracle.cache.size())

	resp, err = oracle.ResolveMerchants(ctx, merchant.OracleRequest{MerchantNames: []string{"INDIGO"}})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 1)
	assert.Equal(t, 2, client.CallCount())
}

func TestResolveMerchantsFailures(t *testing.T) {
	t.Run("unparsable reply fails the batch without retry", func(t *testing.T) {
		client := NewMockClient(MockReply{Text: "I think it's a coffee shop."})
		oracle := newTestOracle(t, client)

		_, err := oracle.ResolveMerchants(context.Background(), merchant.OracleRequest{MerchantNames: []string{"X"}})
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrOracleUnavailable)
		assert.ErrorIs(t, err, errUnparsable)
		assert.Equal(t, 1, client.CallCount())
	})

	t.Run("transient errors are retried", func(t *testing.T) {
		client := NewMockClient(
			MockReply{Err: common.Transient(errors.New("bad gateway"))},
			MockReply{Text: `{"results": [{"merchant": "X", "mcc": "5999", "confidence": 0.7}]}`},
		)
		oracle := newTestOracle(t, client)

		resp, err := oracle.ResolveMerchants(context.Background(), merchant.OracleRequest{MerchantNames: []string{"X"}})
		require.NoError(t, err)
		assert.Len(t, resp.Results, 1)
		assert.Equal(t, 2, client.CallCount())
	})

	t.Run("exhausted retries report unavailable", func(t *testing.T) {
		client := NewMockClient(MockReply{Err: common.Transient(errors.New("bad gateway"))})
		oracle := newTestOracle(t, client)

		_, err := oracle.ResolveMerchants(context.Background(), merchant.OracleRequest{MerchantNames: []string{"X"}})
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrOracleUnavailable)
		assert.ErrorIs(t, err, common.ErrMaxRetries)
		assert.Equal(t, 2, client.CallCount())
	})

	t.Run("empty reply is an empty result", func(t *testing.T) {
		client := NewMockClient(MockReply{Text: "  "})
		oracle := newTestOracle(t, client)

		resp, err := oracle.ResolveMerchants(context.Background(), merchant.OracleRequest{MerchantNames: []string{"X"}})
		require.NoError(t, err)
		assert.Empty(t, resp.Results)
	})
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```\n{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, stripFences(`  {"a":1}  `))
}

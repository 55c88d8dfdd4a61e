// Package cost estimates the USD cost of inference calls from token usage.
package cost

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/pagedigest/internal/model"
)

// ModelRate holds per-model token pricing (USD per million tokens).
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// Rates maps model IDs to pricing.
type Rates map[string]ModelRate

// Calculator computes costs for inference usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator from DefaultRates with overrides
// applied on top.
func NewCalculator(overrides Rates) *Calculator {
	rates := DefaultRates()
	for id, r := range overrides {
		rates[id] = r
	}
	return &Calculator{rates: rates}
}

// Rate returns the pricing for modelID. Bedrock IDs such as
// "anthropic.claude-3-5-sonnet-20240620-v1:0" fall back to their base model.
func (c *Calculator) Rate(modelID string) (ModelRate, bool) {
	if r, ok := c.rates[modelID]; ok {
		return r, true
	}
	base := modelID
	if i := strings.LastIndex(base, "."); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.Index(base, "-v"); i >= 0 && strings.Contains(base[i:], ":") {
		base = base[:i]
	}
	r, ok := c.rates[base]
	return r, ok
}

// Estimate returns the cost of usage on modelID, or 0 for unknown models.
func (c *Calculator) Estimate(modelID string, u model.TokenUsage) float64 {
	rate, ok := c.Rate(modelID)
	if !ok {
		return 0
	}

	in := (float64(u.InputTokens) / 1e6) * rate.Input
	out := (float64(u.OutputTokens) / 1e6) * rate.Output
	cw := (float64(u.CacheCreationInputTokens) / 1e6) * rate.Input * rate.CacheWriteMul
	cr := (float64(u.CacheReadInputTokens) / 1e6) * rate.Input * rate.CacheReadMul

	return in + out + cw + cr
}

// Log records usage and estimated cost for one inference call.
func (c *Calculator) Log(provider, modelID, kind string, u model.TokenUsage) {
	zap.L().Info("cost attribution",
		zap.String("provider", provider),
		zap.String("model", modelID),
		zap.String("kind", kind),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Int64("cache_write_tokens", u.CacheCreationInputTokens),
		zap.Int64("cache_read_tokens", u.CacheReadInputTokens),
		zap.Float64("estimated_cost_usd", c.Estimate(modelID, u)),
	)
}

// DefaultRates returns list prices for the models pagedigest defaults to.
func DefaultRates() Rates {
	return Rates{
		"claude-3-5-sonnet-20240620": {Input: 3.00, Output: 15.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
		"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
		"claude-haiku-4-5-20251001":  {Input: 1.00, Output: 5.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
		"claude-opus-4-1-20250805":   {Input: 15.00, Output: 75.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
		"gpt-5-2025-08-07":           {Input: 1.25, Output: 10.00, CacheReadMul: 0.1},
		"gpt-5-mini-2025-08-07":      {Input: 0.25, Output: 2.00, CacheReadMul: 0.1},
		"gpt-4.1-2025-04-14":         {Input: 2.00, Output: 8.00, CacheReadMul: 0.25},
	}
}

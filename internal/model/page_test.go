package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageBaseURL(t *testing.T) {
	t.Parallel()

	t.Run("prefers final url after redirects", func(t *testing.T) {
		t.Parallel()
		p := &Page{URL: "http://example.com/docs", FinalURL: "https://example.com/docs/"}
		assert.Equal(t, "https://example.com/docs/", p.BaseURL())
	})

	t.Run("falls back to request url", func(t *testing.T) {
		t.Parallel()
		p := &Page{URL: "https://example.com/a"}
		assert.Equal(t, "https://example.com/a", p.BaseURL())
	})
}

func TestTokenUsageAdd(t *testing.T) {
	t.Parallel()

	u := TokenUsage{InputTokens: 10, OutputTokens: 5}
	u.Add(TokenUsage{InputTokens: 3, OutputTokens: 2, CacheReadInputTokens: 7})

	assert.Equal(t, int64(13), u.InputTokens)
	assert.Equal(t, int64(7), u.OutputTokens)
	assert.Equal(t, int64(7), u.CacheReadInputTokens)
	assert.Equal(t, int64(20), u.Total())
}

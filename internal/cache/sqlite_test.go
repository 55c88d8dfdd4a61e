package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pagedigest/internal/model"
)

func newTestCache(t *testing.T) *SQLite {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() }) //nolint:errcheck
	require.NoError(t, c.Migrate(context.Background()))
	return c
}

func TestCache_SetAndGet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	sum := &model.Summary{
		Text:     "# Summary",
		URLs:     []string{"https://example.com"},
		Provider: "anthropic",
		Model:    "claude-sonnet-4-5-20250929",
		Usage:    model.TokenUsage{InputTokens: 10, OutputTokens: 5},
		Calls:    1,
	}
	require.NoError(t, c.Set(ctx, "k1", "https://example.com", "page", sum, time.Hour))

	got, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "# Summary", got.Text)
	assert.Equal(t, []string{"https://example.com"}, got.URLs)
	assert.Equal(t, int64(10), got.Usage.InputTokens)
	assert.True(t, got.Cached)
	assert.False(t, sum.Cached)
}

func TestCache_Miss(t *testing.T) {
	c := newTestCache(t)

	got, err := c.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCache_Replace(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "u", "page", &model.Summary{Text: "old"}, time.Hour))
	require.NoError(t, c.Set(ctx, "k", "u", "page", &model.Summary{Text: "new"}, time.Hour))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "new", got.Text)
}

func TestCache_ExpiryAndPrune(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	require.NoError(t, c.Set(ctx, "short", "u", "page", &model.Summary{Text: "a"}, time.Minute))
	require.NoError(t, c.Set(ctx, "long", "u", "page", &model.Summary{Text: "b"}, 24*time.Hour))

	c.now = func() time.Time { return base.Add(time.Hour) }

	got, err := c.Get(ctx, "short")
	require.NoError(t, err)
	assert.Nil(t, got)

	n, err := c.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err = c.Get(ctx, "long")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "b", got.Text)
}

func TestKey(t *testing.T) {
	k := Key("anthropic", "m", "", "page", "https://a", "text")
	assert.Len(t, k, 64)
	assert.Equal(t, k, Key("anthropic", "m", "", "page", "https://a", "text"))
	assert.NotEqual(t, k, Key("openai", "m", "", "page", "https://a", "text"))
	assert.NotEqual(t, k, Key("anthropic", "m", "", "section", "https://a", "text"))
	assert.NotEqual(t, k, Key("anthropic", "m", "review=true", "page", "https://a", "text"))
	// Field boundaries matter.
	assert.NotEqual(t, Key("a", "bc", "", "", "", ""), Key("ab", "c", "", "", "", ""))
}

package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/pagedigest/internal/model"
	"github.com/sells-group/pagedigest/internal/summarize"
)

// --- Fetcher Mock ---

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, rawURL string) (*model.Page, error) {
	args := m.Called(ctx, rawURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Page), args.Error(1)
}

// --- Extractor Mock ---

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) Extract(page *model.Page) (*model.Document, error) {
	args := m.Called(page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

// --- Summarizer Mock ---

type mockSummarizer struct {
	mock.Mock
}

func (m *mockSummarizer) Summarize(ctx context.Context, in summarize.Input) (*model.Summary, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Summary), args.Error(1)
}

func ofKind(kind summarize.Kind) interface{} {
	return mock.MatchedBy(func(in summarize.Input) bool { return in.Kind == kind })
}

// --- In-memory cache ---

type memCache struct {
	mu      sync.Mutex
	entries map[string]model.Summary
	sets    int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]model.Summary)}
}

func (c *memCache) Get(_ context.Context, key string) (*model.Summary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sum, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	sum.Cached = true
	return &sum, nil
}

func (c *memCache) Set(_ context.Context, key, _, _ string, sum *model.Summary, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = *sum
	c.sets++
	return nil
}

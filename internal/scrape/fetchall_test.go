package scrape

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pagedigest/internal/model"
)

type stubFetcher struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (s *stubFetcher) Fetch(ctx context.Context, rawURL string) (*model.Page, error) {
	s.mu.Lock()
	s.calls = append(s.calls, rawURL)
	s.mu.Unlock()
	if err := s.fail[rawURL]; err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &model.Page{URL: rawURL, StatusCode: 200, HTML: "<p>" + rawURL + "</p>"}, nil
}

func TestFetchAll_KeepsOrder(t *testing.T) {
	urls := []string{"https://a.test/1", "https://a.test/2", "https://a.test/3", "https://a.test/4"}
	f := &stubFetcher{}

	pages, err := FetchAll(context.Background(), f, urls, 2)
	require.NoError(t, err)
	require.Len(t, pages, len(urls))
	for i, p := range pages {
		assert.Equal(t, urls[i], p.URL)
	}
	assert.Len(t, f.calls, len(urls))
}

func TestFetchAll_FirstErrorReturned(t *testing.T) {
	boom := &StatusError{URL: "https://a.test/bad", StatusCode: 404}
	f := &stubFetcher{fail: map[string]error{"https://a.test/bad": boom}}

	pages, err := FetchAll(context.Background(), f, []string{"https://a.test/ok", "https://a.test/bad"}, 1)
	require.Error(t, err)
	assert.Nil(t, pages)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, 404, statusErr.StatusCode)
}

func TestFetchAll_Empty(t *testing.T) {
	pages, err := FetchAll(context.Background(), &stubFetcher{}, nil, 4)
	require.NoError(t, err)
	assert.Empty(t, pages)
}

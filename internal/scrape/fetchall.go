package scrape

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/pagedigest/internal/model"
)

// FetchAll fetches urls with at most limit requests in flight. Results keep
// the order of urls. The first failure cancels the remaining fetches and is
// returned.
func FetchAll(ctx context.Context, f Fetcher, urls []string, limit int) ([]*model.Page, error) {
	if limit <= 0 {
		limit = 1
	}

	pages := make([]*model.Page, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, u := range urls {
		g.Go(func() error {
			page, err := f.Fetch(gctx, u)
			if err != nil {
				return err
			}
			pages[i] = page
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "scrape: fetch all")
	}
	return pages, nil
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/sells-group/pagedigest/internal/cache"
	"github.com/sells-group/pagedigest/internal/config"
	"github.com/sells-group/pagedigest/internal/cost"
	"github.com/sells-group/pagedigest/internal/extract"
	"github.com/sells-group/pagedigest/internal/pipeline"
	"github.com/sells-group/pagedigest/internal/scrape"
	"github.com/sells-group/pagedigest/internal/summarize"
	anthropicpkg "github.com/sells-group/pagedigest/pkg/anthropic"
)

// pipelineEnv holds the pipeline and the resources it owns.
type pipelineEnv struct {
	Pipeline *pipeline.Pipeline
	Cache    *cache.SQLite // may be nil
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Cache != nil {
		_ = pe.Cache.Close()
	}
}

// initPipeline validates cfg and builds the fetcher, extractor, summarizer
// and optional cache. Callers should defer env.Close().
func initPipeline(ctx context.Context, c *config.Config) (*pipelineEnv, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	costs := cost.NewCalculator(pricingRates(c.Pricing))
	summarizer, err := newSummarizer(ctx, c, costs)
	if err != nil {
		return nil, err
	}

	env := &pipelineEnv{}
	var sc pipeline.SummaryCache
	if c.Cache.Path != "" {
		db, err := openCache(ctx, c.Cache.Path)
		if err != nil {
			return nil, err
		}
		env.Cache = db
		sc = db
		zap.L().Debug("summary cache enabled", zap.String("path", c.Cache.Path))
	}

	env.Pipeline = pipeline.New(
		newFetcher(c),
		newExtractor(c),
		summarizer,
		sc,
		afero.NewOsFs(),
		pipeline.Options{
			Provider:             c.Summarize.Provider,
			Model:                c.ResolvedModel(),
			Variant:              summaryVariant(c.Summarize),
			MaxInputTokens:       c.Summarize.MaxInputTokens,
			Oversize:             c.Summarize.Oversize,
			FetchConcurrency:     c.Fetch.Concurrency,
			SummarizeConcurrency: c.Summarize.Concurrency,
			RequestsPerMinute:    c.Summarize.RequestsPerMinute,
			CacheTTL:             time.Duration(c.Cache.TTLHours) * time.Hour,
		},
	)
	return env, nil
}

// runDigest builds a pipeline from the global config and runs it once.
func runDigest(ctx context.Context, urls []string, output string) (*pipeline.Result, error) {
	env, err := initPipeline(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer env.Close()

	result, err := env.Pipeline.Run(ctx, pipeline.Request{
		URLs:   urls,
		Output: output,
		RunID:  uuid.NewString(),
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline run")
	}
	return result, nil
}

func newFetcher(c *config.Config) *scrape.HTTPFetcher {
	return scrape.NewHTTPFetcher(scrape.Options{
		Timeout:      time.Duration(c.Fetch.TimeoutSecs) * time.Second,
		UserAgent:    c.Fetch.UserAgent,
		MaxBodyBytes: c.Fetch.MaxBodyBytes,
		MaxAttempts:  c.Fetch.MaxAttempts,
	})
}

func newExtractor(c *config.Config) *extract.Extractor {
	return extract.New(extract.Options{
		Mode:             extract.Mode(c.Extract.Mode),
		ExcludeSelectors: c.Extract.ExcludeSelectors,
	})
}

// newSummarizer picks the provider implementation named in the config.
func newSummarizer(ctx context.Context, c *config.Config, costs *cost.Calculator) (summarize.Summarizer, error) {
	opts := summarize.Options{
		Model:           c.ResolvedModel(),
		MaxOutputTokens: c.Summarize.MaxOutputTokens,
		Temperature:     c.Summarize.Temperature,
		Review:          c.Summarize.Review,
		Timeout:         time.Duration(c.Summarize.TimeoutSecs) * time.Second,
		MaxAttempts:     c.Summarize.MaxAttempts,
		Costs:           costs,
	}

	switch c.Summarize.Provider {
	case config.ProviderOpenAI:
		return summarize.NewOpenAI(c.OpenAI.Key, c.OpenAI.BaseURL, opts), nil
	case config.ProviderAnthropic:
		client, err := anthropicpkg.NewClient(ctx, anthropicpkg.Options{
			APIKey:  c.Anthropic.Key,
			BaseURL: c.Anthropic.BaseURL,
			Backend: c.Anthropic.Backend,
			Region:  c.Anthropic.Region,
		})
		if err != nil {
			return nil, eris.Wrap(err, "init anthropic client")
		}
		return summarize.NewClaude(client, opts), nil
	default:
		return nil, eris.Errorf("unknown summarize provider %q", c.Summarize.Provider)
	}
}

// summaryVariant names the summarizer settings that change its output, so
// cached summaries are only reused under the same settings.
func summaryVariant(s config.SummarizeConfig) string {
	return fmt.Sprintf("review=%t max_output=%d temperature=%g", s.Review, s.MaxOutputTokens, s.Temperature)
}

func openCache(ctx context.Context, path string) (*cache.SQLite, error) {
	db, err := cache.Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func pricingRates(p config.PricingConfig) cost.Rates {
	rates := make(cost.Rates, len(p.Models))
	for id, m := range p.Models {
		rates[id] = cost.ModelRate(m)
	}
	return rates
}

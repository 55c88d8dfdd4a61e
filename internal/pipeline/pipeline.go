// Package pipeline drives a run: fetch every URL, extract readable Markdown,
// summarize it within the model's input budget, and write the result.
package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/pagedigest/internal/model"
	"github.com/sells-group/pagedigest/internal/scrape"
	"github.com/sells-group/pagedigest/internal/summarize"
)

var (
	// ErrNoURLs is returned when a Request carries no URLs.
	ErrNoURLs = eris.New("pipeline: no urls")
	// ErrNoOutput is returned when a Request has no output path.
	ErrNoOutput = eris.New("pipeline: no output path")
	// ErrInputTooLarge is returned in fail mode when a prompt exceeds the input budget.
	ErrInputTooLarge = eris.New("pipeline: input exceeds model budget")
)

// Oversize policies.
const (
	OversizeHierarchical = "hierarchical"
	OversizeFail         = "fail"
)

// Extractor converts a fetched page into a Markdown document.
type Extractor interface {
	Extract(page *model.Page) (*model.Document, error)
}

// SummaryCache stores summaries between runs. Get returns nil, nil on a miss.
type SummaryCache interface {
	Get(ctx context.Context, key string) (*model.Summary, error)
	Set(ctx context.Context, key, sourceURL, kind string, sum *model.Summary, ttl time.Duration) error
}

// Options configures a Pipeline.
type Options struct {
	// Provider, Model and Variant are part of the cache key. Variant names
	// the summarizer settings that change its output.
	Provider string
	Model    string
	Variant  string
	// MaxInputTokens is the prompt budget for a single inference call.
	MaxInputTokens int
	// Oversize is OversizeHierarchical (default) or OversizeFail.
	Oversize             string
	FetchConcurrency     int
	SummarizeConcurrency int
	// RequestsPerMinute paces inference calls. Zero disables pacing.
	RequestsPerMinute int
	CacheTTL          time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxInputTokens <= 0 {
		o.MaxInputTokens = 150000
	}
	if o.Oversize == "" {
		o.Oversize = OversizeHierarchical
	}
	if o.FetchConcurrency <= 0 {
		o.FetchConcurrency = 4
	}
	if o.SummarizeConcurrency <= 0 {
		o.SummarizeConcurrency = 2
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = 7 * 24 * time.Hour
	}
	return o
}

// Request is a single run: the pages to digest and where to write the digest.
type Request struct {
	URLs   []string
	Output string
	// RunID tags every log line of the run.
	RunID string
}

// PhaseTiming records how long one phase of a run took.
type PhaseTiming struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
}

// Result describes a completed run.
type Result struct {
	Output    string            `json:"output"`
	Summary   *model.Summary    `json:"summary"`
	Documents []*model.Document `json:"documents"`
	Phases    []PhaseTiming     `json:"phases"`
	Duration  time.Duration     `json:"duration"`
}

// Pipeline wires the fetcher, extractor and summarizer together.
type Pipeline struct {
	fetcher    scrape.Fetcher
	extractor  Extractor
	summarizer summarize.Summarizer
	cache      SummaryCache
	fs         afero.Fs
	limiter    *rate.Limiter
	opts       Options
}

// New creates a Pipeline. cache may be nil to disable caching.
func New(
	fetcher scrape.Fetcher,
	extractor Extractor,
	summarizer summarize.Summarizer,
	cache SummaryCache,
	fs afero.Fs,
	opts Options,
) *Pipeline {
	opts = opts.withDefaults()
	p := &Pipeline{
		fetcher:    fetcher,
		extractor:  extractor,
		summarizer: summarizer,
		cache:      cache,
		fs:         fs,
		opts:       opts,
	}
	if opts.RequestsPerMinute > 0 {
		p.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
	}
	return p
}

// Run fetches, extracts and summarizes req.URLs and writes the summary to
// req.Output. Nothing is written unless a non-empty summary was produced.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if len(req.URLs) == 0 {
		return nil, ErrNoURLs
	}
	if strings.TrimSpace(req.Output) == "" {
		return nil, ErrNoOutput
	}

	log := zap.L().With(zap.String("run_id", req.RunID), zap.Int("urls", len(req.URLs)))
	log.Info("pipeline: starting run", zap.Strings("url_list", req.URLs), zap.String("output", req.Output))

	start := time.Now()
	result := &Result{Output: req.Output}

	var phasesMu sync.Mutex
	trackPhase := func(name string, fn func() error) error {
		phaseStart := time.Now()
		err := fn()
		duration := time.Since(phaseStart)

		phasesMu.Lock()
		result.Phases = append(result.Phases, PhaseTiming{Name: name, Duration: duration})
		phasesMu.Unlock()

		if err != nil {
			log.Error("pipeline: phase failed",
				zap.String("phase", name),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
			return err
		}
		log.Info("pipeline: phase complete",
			zap.String("phase", name),
			zap.Duration("duration", duration),
		)
		return nil
	}

	// Phase 1: fetch.
	var pages []*model.Page
	if err := trackPhase("fetch", func() error {
		var err error
		pages, err = scrape.FetchAll(ctx, p.fetcher, req.URLs, p.opts.FetchConcurrency)
		return err
	}); err != nil {
		return result, err
	}

	// Phase 2: extract.
	if err := trackPhase("extract", func() error {
		for _, page := range pages {
			doc, err := p.extractor.Extract(page)
			if err != nil {
				return eris.Wrapf(err, "pipeline: extract %s", page.URL)
			}
			log.Debug("pipeline: extracted page",
				zap.String("url", doc.URL),
				zap.String("title", doc.Title),
				zap.Int("chars", len(doc.Markdown)),
			)
			result.Documents = append(result.Documents, doc)
		}
		return nil
	}); err != nil {
		return result, err
	}

	// Phase 3: summarize each page, then combine across pages.
	var final *model.Summary
	if err := trackPhase("summarize", func() error {
		var err error
		final, err = p.summarizeDocuments(ctx, log, result.Documents)
		return err
	}); err != nil {
		return result, err
	}
	final.URLs = append([]string(nil), req.URLs...)
	result.Summary = final

	// Phase 4: write.
	if err := trackPhase("write", func() error {
		return writeAtomic(p.fs, req.Output, final.Text)
	}); err != nil {
		return result, err
	}

	result.Duration = time.Since(start)
	log.Info("pipeline: run complete",
		zap.Duration("duration", result.Duration),
		zap.Int("calls", final.Calls),
		zap.Bool("cached", final.Cached),
		zap.Int64("input_tokens", final.Usage.InputTokens),
		zap.Int64("output_tokens", final.Usage.OutputTokens),
	)
	return result, nil
}

// summarizeDocuments produces one summary per document, then merges them
// with combine calls when there is more than one.
func (p *Pipeline) summarizeDocuments(ctx context.Context, log *zap.Logger, docs []*model.Document) (*model.Summary, error) {
	parts := make([]*model.Summary, len(docs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.SummarizeConcurrency)
	for i, doc := range docs {
		g.Go(func() error {
			sum, err := p.summarizeDocument(gCtx, log, doc)
			if err != nil {
				return err
			}
			parts[i] = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(parts) == 1 {
		return parts[0], nil
	}
	return p.reduce(ctx, log, parts, "", "")
}

// summarizeDocument summarizes one page in a single call when it fits the
// budget, otherwise section by section followed by a combine call.
func (p *Pipeline) summarizeDocument(ctx context.Context, log *zap.Logger, doc *model.Document) (*model.Summary, error) {
	if p.fits(doc.Markdown) {
		return p.summarizeOne(ctx, log, summarize.Input{
			Text:      doc.Markdown,
			SourceURL: doc.URL,
			Title:     doc.Title,
			Kind:      summarize.KindPage,
		})
	}

	estimated := EstimateTokens(doc.Markdown) + promptOverheadTokens
	if p.opts.Oversize == OversizeFail {
		return nil, eris.Wrapf(ErrInputTooLarge, "pipeline: %s needs ~%d tokens, budget %d",
			doc.URL, estimated, p.opts.MaxInputTokens)
	}

	chunks := Chunk(doc.Markdown, p.chunkChars())
	log.Info("pipeline: page over budget, summarizing by section",
		zap.String("url", doc.URL),
		zap.Int("estimated_tokens", estimated),
		zap.Int("budget", p.opts.MaxInputTokens),
		zap.Int("chunks", len(chunks)),
	)

	inputs := make([]summarize.Input, len(chunks))
	for i, chunk := range chunks {
		inputs[i] = summarize.Input{
			Text:      chunk,
			SourceURL: doc.URL,
			Title:     doc.Title,
			Kind:      summarize.KindSection,
		}
	}
	sections, err := p.summarizeAll(ctx, log, inputs)
	if err != nil {
		return nil, err
	}
	return p.reduce(ctx, log, sections, doc.URL, doc.Title)
}

// reduce merges summaries with combine calls. When the joined summaries do
// not fit one prompt they are combined in groups first.
func (p *Pipeline) reduce(ctx context.Context, log *zap.Logger, parts []*model.Summary, sourceURL, title string) (*model.Summary, error) {
	for len(parts) > 1 {
		texts := make([]string, len(parts))
		for i, part := range parts {
			texts[i] = part.Text
		}

		groups := packGroups(texts, p.chunkChars())
		if len(groups) == len(parts) {
			return nil, eris.Wrapf(ErrInputTooLarge, "pipeline: %d summaries cannot be combined within budget %d",
				len(parts), p.opts.MaxInputTokens)
		}

		inputs := make([]summarize.Input, len(groups))
		members := make([][]*model.Summary, len(groups))
		next := 0
		for i, group := range groups {
			inputs[i] = summarize.Input{
				Text:      summarize.CombineText(group),
				SourceURL: sourceURL,
				Title:     title,
				Kind:      summarize.KindCombine,
			}
			members[i] = parts[next : next+len(group)]
			next += len(group)
		}

		combined, err := p.summarizeAll(ctx, log, inputs)
		if err != nil {
			return nil, err
		}
		for i := range combined {
			combined[i] = merge(combined[i], members[i])
		}
		parts = combined
	}
	return parts[0], nil
}

// summarizeAll runs inputs concurrently and keeps their order.
func (p *Pipeline) summarizeAll(ctx context.Context, log *zap.Logger, inputs []summarize.Input) ([]*model.Summary, error) {
	out := make([]*model.Summary, len(inputs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.SummarizeConcurrency)
	for i, in := range inputs {
		g.Go(func() error {
			sum, err := p.summarizeOne(gCtx, log, in)
			if err != nil {
				return err
			}
			out[i] = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// summarizeOne is a single paced, cached summarizer call.
func (p *Pipeline) summarizeOne(ctx context.Context, log *zap.Logger, in summarize.Input) (*model.Summary, error) {
	var key string
	if p.cache != nil {
		key = cacheKey(p.opts, in)
		cached, err := p.cache.Get(ctx, key)
		switch {
		case err != nil:
			log.Warn("pipeline: cache lookup failed", zap.String("kind", string(in.Kind)), zap.Error(err))
		case cached != nil:
			log.Info("pipeline: cache hit",
				zap.String("kind", string(in.Kind)),
				zap.String("url", in.SourceURL),
			)
			return reused(cached), nil
		}
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "pipeline: rate limit wait")
		}
	}

	sum, err := p.summarizer.Summarize(ctx, in)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: summarize %s", in.Kind)
	}
	if strings.TrimSpace(sum.Text) == "" {
		return nil, eris.Wrapf(summarize.ErrEmptySummary, "pipeline: summarize %s", in.Kind)
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, key, in.SourceURL, string(in.Kind), sum, p.opts.CacheTTL); err != nil {
			log.Warn("pipeline: cache store failed", zap.String("kind", string(in.Kind)), zap.Error(err))
		}
	}
	return sum, nil
}

// reused marks a summary served from the cache. It cost nothing this run.
func reused(sum *model.Summary) *model.Summary {
	out := *sum
	out.Cached = true
	out.Calls = 0
	out.Usage = model.TokenUsage{}
	return &out
}

// merge folds the usage of the summaries a combine call consumed into it.
// Cached summaries carry zero usage, see reused.
func merge(combined *model.Summary, parts []*model.Summary) *model.Summary {
	out := *combined
	urls := make(map[string]bool)
	out.URLs = nil
	for _, part := range parts {
		out.Cached = out.Cached && part.Cached
		out.Calls += part.Calls
		out.Usage.Add(part.Usage)
		for _, u := range part.URLs {
			if !urls[u] {
				urls[u] = true
				out.URLs = append(out.URLs, u)
			}
		}
	}
	return &out
}

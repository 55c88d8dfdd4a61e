// Package summarize sends extracted page text to a hosted model and returns
// a compressed Markdown summary meant to ground later model calls.
package summarize

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pagedigest/internal/cost"
	"github.com/sells-group/pagedigest/internal/model"
)

// Kind selects the instruction template for a call.
type Kind string

const (
	// KindPage summarizes a whole extracted page.
	KindPage Kind = "page"
	// KindSection summarizes one chunk of an oversized page.
	KindSection Kind = "section"
	// KindCombine merges several summaries into one document.
	KindCombine Kind = "combine"
)

// Input describes the payload for a summary request.
type Input struct {
	// Text is the extracted Markdown, or the joined summaries for KindCombine.
	Text string
	// SourceURL is optional metadata that helps the model reference the origin.
	SourceURL string
	Title     string
	Kind      Kind
}

// Summarizer produces a single summary for a given input text.
type Summarizer interface {
	Summarize(ctx context.Context, in Input) (*model.Summary, error)
}

var (
	// ErrEmptyInput is returned when Input.Text is blank.
	ErrEmptyInput = eris.New("summarize: empty input")
	// ErrEmptySummary is returned when the model answers with no text.
	ErrEmptySummary = eris.New("summarize: empty summary")
	// ErrOutputCeiling is returned when generation stops at the output token limit.
	ErrOutputCeiling = eris.New("summarize: output token ceiling reached")
)

// Options configures the provider summarizers.
type Options struct {
	Model           string
	MaxOutputTokens int64
	Temperature     float64
	// Review adds a second call that checks and revises the first draft.
	Review      bool
	Timeout     time.Duration
	MaxAttempts int
	// Costs, when set, logs estimated cost per call.
	Costs *cost.Calculator
}

func (o Options) withDefaults() Options {
	if o.MaxOutputTokens <= 0 {
		o.MaxOutputTokens = 4096
	}
	if o.Timeout <= 0 {
		o.Timeout = 120 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	return o
}

func sourceURLs(in Input) []string {
	if in.SourceURL == "" {
		return nil
	}
	return []string{in.SourceURL}
}

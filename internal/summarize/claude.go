package summarize

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pagedigest/internal/model"
	"github.com/sells-group/pagedigest/internal/resilience"
	"github.com/sells-group/pagedigest/pkg/anthropic"
)

// ProviderAnthropic names the Claude provider in summaries and cache keys.
const ProviderAnthropic = "anthropic"

var storeTool = anthropic.Tool{
	Name:        storeToolName,
	Description: "Store the finished Markdown summary.",
	Properties: map[string]any{
		"markdown": map[string]any{
			"type":        "string",
			"description": "The complete Markdown summary.",
		},
	},
	Required: []string{"markdown"},
}

// Claude summarizes with the Anthropic Messages API.
type Claude struct {
	client anthropic.Client
	opts   Options
	retry  resilience.Policy
}

// NewClaude creates a Claude summarizer.
func NewClaude(client anthropic.Client, opts Options) *Claude {
	opts = opts.withDefaults()

	retry := resilience.DefaultPolicy().WithAttempts(opts.MaxAttempts)
	retry.Retryable = isRetryableClaude
	retry.OnRetry = resilience.LogRetries("summarize", zap.String("provider", ProviderAnthropic))

	return &Claude{client: client, opts: opts, retry: retry}
}

// Summarize implements Summarizer.
func (c *Claude) Summarize(ctx context.Context, in Input) (*model.Summary, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, ErrEmptyInput
	}
	if in.Kind == "" {
		in.Kind = KindPage
	}

	msgs := []anthropic.Message{{Role: "user", Content: userPrompt(in)}}

	draft, usage, err := c.call(ctx, in.Kind, msgs)
	if err != nil {
		return nil, err
	}
	calls := 1

	if c.opts.Review {
		msgs = append(msgs,
			anthropic.Message{Role: "assistant", Content: draft},
			anthropic.Message{Role: "user", Content: reviewPrompt(true)},
		)
		revised, reviewUsage, err := c.call(ctx, in.Kind, msgs)
		if err != nil {
			return nil, eris.Wrap(err, "summarize: review")
		}
		draft = revised
		usage.Add(reviewUsage)
		calls++
	}

	return &model.Summary{
		Text:     draft,
		URLs:     sourceURLs(in),
		Provider: ProviderAnthropic,
		Model:    c.opts.Model,
		Usage:    usage,
		Calls:    calls,
	}, nil
}

func (c *Claude) call(ctx context.Context, kind Kind, msgs []anthropic.Message) (string, model.TokenUsage, error) {
	temp := c.opts.Temperature
	req := anthropic.MessageRequest{
		Model:       c.opts.Model,
		MaxTokens:   c.opts.MaxOutputTokens,
		System:      systemPrompt(kind, true),
		Messages:    msgs,
		Temperature: &temp,
		Tools:       []anthropic.Tool{storeTool},
		ToolChoice:  storeToolName,
	}

	resp, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
		return c.client.CreateMessage(callCtx, req)
	})
	if err != nil {
		return "", model.TokenUsage{}, eris.Wrapf(err, "summarize: claude %s call", kind)
	}

	usage := model.TokenUsage{
		InputTokens:              resp.Usage.InputTokens,
		OutputTokens:             resp.Usage.OutputTokens,
		CacheCreationInputTokens: resp.Usage.CacheCreationInputTokens,
		CacheReadInputTokens:     resp.Usage.CacheReadInputTokens,
	}
	if c.opts.Costs != nil {
		c.opts.Costs.Log(ProviderAnthropic, c.opts.Model, string(kind), usage)
	}

	if resp.StopReason == anthropic.StopMaxTokens {
		return "", usage, eris.Wrapf(ErrOutputCeiling, "summarize: claude %s call stopped at %d output tokens", kind, c.opts.MaxOutputTokens)
	}

	text := toolMarkdown(resp)
	if text == "" {
		return "", usage, eris.Wrapf(ErrEmptySummary, "summarize: claude %s call (stop reason %s)", kind, resp.StopReason)
	}
	return text, usage, nil
}

// toolMarkdown reads the store_summary tool input, falling back to text blocks.
func toolMarkdown(resp *anthropic.MessageResponse) string {
	if raw, ok := resp.ToolInput(storeToolName); ok {
		var out struct {
			Markdown string `json:"markdown"`
		}
		if err := json.Unmarshal(raw, &out); err == nil && strings.TrimSpace(out.Markdown) != "" {
			return strings.TrimSpace(out.Markdown)
		}
	}
	return strings.TrimSpace(resp.Text())
}

var claudeErrors = resilience.Classifier{Statuses: []resilience.StatusFunc{anthropic.StatusCode}}

func isRetryableClaude(err error) bool { return claudeErrors.Retry(err) }

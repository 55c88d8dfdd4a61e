package summarize

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pagedigest/internal/model"
	"github.com/sells-group/pagedigest/internal/resilience"
)

// ProviderOpenAI names the OpenAI provider in summaries and cache keys.
const ProviderOpenAI = "openai"

// First request budget; doubled on incomplete responses up to MaxOutputTokens.
const openAIStartOutputTokens int64 = 1024

// OpenAI summarizes with the OpenAI Responses API.
type OpenAI struct {
	client openai.Client
	opts   Options
	retry  resilience.Policy
}

// NewOpenAI creates an OpenAI summarizer. An empty apiKey leaves the SDK to
// read OPENAI_API_KEY.
func NewOpenAI(apiKey, baseURL string, opts Options) *OpenAI {
	opts = opts.withDefaults()

	reqOpts := []option.RequestOption{option.WithMaxRetries(0)}
	if apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}

	retry := resilience.DefaultPolicy().WithAttempts(opts.MaxAttempts)
	retry.Retryable = isRetryableOpenAI
	retry.OnRetry = resilience.LogRetries("summarize", zap.String("provider", ProviderOpenAI))

	return &OpenAI{
		client: openai.NewClient(reqOpts...),
		opts:   opts,
		retry:  retry,
	}
}

// Summarize implements Summarizer.
func (s *OpenAI) Summarize(ctx context.Context, in Input) (*model.Summary, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, ErrEmptyInput
	}
	if in.Kind == "" {
		in.Kind = KindPage
	}

	prompt := userPrompt(in)
	draft, usage, calls, err := s.generate(ctx, in.Kind, systemPrompt(in.Kind, false), prompt)
	if err != nil {
		return nil, err
	}

	if s.opts.Review {
		reviewInput := prompt + "\n\n<draft>\n" + draft + "\n</draft>"
		revised, reviewUsage, reviewCalls, err := s.generate(ctx, in.Kind, systemPrompt(in.Kind, false)+"\n\n"+reviewPrompt(false), reviewInput)
		if err != nil {
			return nil, eris.Wrap(err, "summarize: review")
		}
		draft = revised
		usage.Add(reviewUsage)
		calls += reviewCalls
	}

	return &model.Summary{
		Text:     draft,
		URLs:     sourceURLs(in),
		Provider: ProviderOpenAI,
		Model:    s.opts.Model,
		Usage:    usage,
		Calls:    calls,
	}, nil
}

// generate runs one logical request, growing the output budget while the
// response comes back incomplete for max_output_tokens.
func (s *OpenAI) generate(ctx context.Context, kind Kind, instructions, input string) (string, model.TokenUsage, int, error) {
	var usage model.TokenUsage
	calls := 0

	maxOutput := min(openAIStartOutputTokens, s.opts.MaxOutputTokens)
	for {
		params := responses.ResponseNewParams{
			Model:           shared.ResponsesModel(s.opts.Model),
			MaxOutputTokens: openai.Int(maxOutput),
			Instructions:    openai.String(instructions),
			Input: responses.ResponseNewParamsInputUnion{
				OfString: openai.String(input),
			},
		}
		if s.opts.Temperature > 0 {
			params.Temperature = openai.Float(s.opts.Temperature)
		}

		resp, err := resilience.DoVal(ctx, s.retry, func(ctx context.Context) (*responses.Response, error) {
			callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
			defer cancel()
			return s.client.Responses.New(callCtx, params)
		})
		if err != nil {
			return "", usage, calls, eris.Wrapf(err, "summarize: openai %s call", kind)
		}
		calls++

		callUsage := model.TokenUsage{
			InputTokens:          resp.Usage.InputTokens,
			OutputTokens:         resp.Usage.OutputTokens,
			CacheReadInputTokens: resp.Usage.InputTokensDetails.CachedTokens,
		}
		usage.Add(callUsage)
		if s.opts.Costs != nil {
			s.opts.Costs.Log(ProviderOpenAI, s.opts.Model, string(kind), callUsage)
		}

		if resp.Status == "incomplete" {
			if resp.IncompleteDetails.Reason == "max_output_tokens" {
				if maxOutput >= s.opts.MaxOutputTokens {
					return "", usage, calls, eris.Wrapf(ErrOutputCeiling, "summarize: openai %s call stopped at %d output tokens", kind, maxOutput)
				}
				maxOutput = min(maxOutput*2, s.opts.MaxOutputTokens)
				zap.L().Debug("summarize: openai response incomplete, raising output budget",
					zap.Int64("max_output_tokens", maxOutput),
				)
				continue
			}
			return "", usage, calls, eris.Errorf("summarize: openai response incomplete (reason %s)", resp.IncompleteDetails.Reason)
		}

		text := strings.TrimSpace(resp.OutputText())
		if text == "" {
			return "", usage, calls, eris.Wrapf(ErrEmptySummary, "summarize: openai %s call (status %s)", kind, resp.Status)
		}
		return text, usage, calls, nil
	}
}

var openAIErrors = resilience.Classifier{Statuses: []resilience.StatusFunc{openAIStatus}}

func openAIStatus(err error) int {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func isRetryableOpenAI(err error) bool { return openAIErrors.Retry(err) }

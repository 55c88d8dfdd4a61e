package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pagedigest/internal/config"
	"github.com/sells-group/pagedigest/internal/scrape"
)

var cfg *config.Config

var (
	configFile string

	digestURLs   []string
	digestOutput string

	flagProvider string
	flagModel    string
	flagReview   bool
	flagOversize string
	flagCache    string
)

var rootCmd = &cobra.Command{
	Use:   "pagedigest",
	Short: "Summarize web pages into compact Markdown for LLM grounding",
	Long: "Fetches one or more web pages, extracts their readable content as Markdown, " +
		"compresses it with a hosted model and writes the summary to a file.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configFile)
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		applyFlagOverrides(cmd, c)
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		urls := normalizeURLs(digestURLs)
		if len(urls) == 0 {
			return eris.New("at least one --url is required")
		}
		for _, u := range urls {
			if err := scrape.ValidateURL(u); err != nil {
				return err
			}
		}

		result, err := runDigest(ctx, urls, digestOutput)
		if err != nil {
			return err
		}

		zap.L().Info("digest written",
			zap.String("output", result.Output),
			zap.Int("pages", len(result.Documents)),
			zap.Int("calls", result.Summary.Calls),
			zap.Duration("duration", result.Duration),
		)
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file (default ./config.yaml)")
	pf.StringVar(&flagProvider, "provider", "", "summarizer provider: anthropic or openai")
	pf.StringVar(&flagModel, "model", "", "model ID (default depends on provider)")
	pf.BoolVar(&flagReview, "review", false, "add a review pass that checks and revises each summary")
	pf.StringVar(&flagOversize, "oversize", "", "pages over the input budget: hierarchical or fail")
	pf.StringVar(&flagCache, "cache", "", "sqlite summary cache path")

	rootCmd.Flags().StringSliceVar(&digestURLs, "url", nil, "page URL (repeatable or comma separated)")
	rootCmd.Flags().StringVar(&digestOutput, "output", "", "output Markdown file")
	_ = rootCmd.MarkFlagRequired("url")
	_ = rootCmd.MarkFlagRequired("output")
}

// applyFlagOverrides copies explicitly set flags over the loaded config.
func applyFlagOverrides(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("provider") {
		c.Summarize.Provider = flagProvider
	}
	if flags.Changed("model") {
		c.Summarize.Model = flagModel
	}
	if flags.Changed("review") {
		c.Summarize.Review = flagReview
	}
	if flags.Changed("oversize") {
		c.Summarize.Oversize = flagOversize
	}
	if flags.Changed("cache") {
		c.Cache.Path = flagCache
	}
}

// normalizeURLs trims entries and drops blanks and duplicates, keeping order.
func normalizeURLs(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	var out []string
	for _, u := range raw {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		zap.L().Error("pagedigest failed", zap.Error(err))
		_ = zap.L().Sync()
		os.Exit(1)
	}
}

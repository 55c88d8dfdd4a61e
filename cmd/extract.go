package main

import (
	"context"
	"io"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pagedigest/internal/scrape"
)

var (
	extractURL    string
	extractOutput string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Fetch a page and print its extracted Markdown without summarizing",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return runExtract(ctx, afero.NewOsFs(), cmd.OutOrStdout(), extractURL, extractOutput)
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractURL, "url", "", "page URL (required)")
	extractCmd.Flags().StringVar(&extractOutput, "output", "", "write Markdown to this file instead of stdout")
	_ = extractCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(extractCmd)
}

// runExtract fetches rawURL and writes the extracted Markdown to output, or
// to w when output is empty.
func runExtract(ctx context.Context, fs afero.Fs, w io.Writer, rawURL, output string) error {
	if err := scrape.ValidateURL(rawURL); err != nil {
		return err
	}

	page, err := newFetcher(cfg).Fetch(ctx, rawURL)
	if err != nil {
		return err
	}
	doc, err := newExtractor(cfg).Extract(page)
	if err != nil {
		return err
	}

	zap.L().Info("page extracted",
		zap.String("url", doc.URL),
		zap.String("title", doc.Title),
		zap.Int("chars", len(doc.Markdown)),
	)

	text := doc.Markdown + "\n"
	if output == "" {
		_, err := io.WriteString(w, text)
		return eris.Wrap(err, "write markdown")
	}
	return eris.Wrap(afero.WriteFile(fs, output, []byte(text), 0o644), "write markdown file")
}

package pipeline

import (
	"strings"
	"unicode/utf8"

	"github.com/sells-group/pagedigest/internal/cache"
	"github.com/sells-group/pagedigest/internal/extract"
	"github.com/sells-group/pagedigest/internal/summarize"
)

const (
	// charsPerToken is the rough size of a token in English prose.
	charsPerToken = 4
	// promptOverheadTokens covers the instructions and tags around the text.
	promptOverheadTokens = 500
	// minChunkTokens keeps tiny budgets from producing degenerate chunks.
	minChunkTokens = 100
)

// EstimateTokens approximates the token count of text.
func EstimateTokens(text string) int {
	return (utf8.RuneCountInString(text) + charsPerToken - 1) / charsPerToken
}

func (p *Pipeline) fits(text string) bool {
	return EstimateTokens(text)+promptOverheadTokens <= p.opts.MaxInputTokens
}

// chunkChars is the largest text, in bytes, that fits one prompt. Bytes are
// never fewer than runes, so this errs on the small side.
func (p *Pipeline) chunkChars() int {
	avail := p.opts.MaxInputTokens - promptOverheadTokens
	if avail < minChunkTokens {
		avail = minChunkTokens
	}
	return avail * charsPerToken
}

func cacheKey(o Options, in summarize.Input) string {
	return cache.Key(o.Provider, o.Model, o.Variant, string(in.Kind), in.SourceURL, in.Title+"\n"+in.Text)
}

// Chunk splits markdown into pieces of at most maxChars bytes. Whole sections
// are packed together where possible; larger sections are split on paragraph
// boundaries and, failing that, cut near maxChars.
func Chunk(markdown string, maxChars int) []string {
	var pieces []string
	for _, section := range extract.Sections(markdown) {
		pieces = append(pieces, splitOversized(section.Markdown, maxChars)...)
	}
	return pack(pieces, maxChars)
}

// splitOversized breaks text that exceeds maxChars into paragraph-sized pieces.
func splitOversized(text string, maxChars int) []string {
	if len(text) <= maxChars {
		return []string{text}
	}

	var paragraphs []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		for len(para) > maxChars {
			cut := cutPoint(para, maxChars)
			paragraphs = append(paragraphs, strings.TrimSpace(para[:cut]))
			para = strings.TrimSpace(para[cut:])
		}
		if para != "" {
			paragraphs = append(paragraphs, para)
		}
	}
	return pack(paragraphs, maxChars)
}

// cutPoint picks where to hard-cut s so the head is at most maxChars bytes.
// It prefers the last line break or space in the second half of the window
// and never splits a UTF-8 sequence.
func cutPoint(s string, maxChars int) int {
	cut := maxChars
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if i := strings.LastIndexAny(s[:cut], "\n "); i > maxChars/2 {
		cut = i
	}
	if cut == 0 {
		_, size := utf8.DecodeRuneInString(s)
		cut = size
	}
	return cut
}

// pack greedily joins pieces with blank lines while staying within maxChars.
func pack(pieces []string, maxChars int) []string {
	var (
		out []string
		cur strings.Builder
	)
	for _, piece := range pieces {
		if cur.Len() > 0 && cur.Len()+2+len(piece) > maxChars {
			out = append(out, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(piece)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

// packGroups splits summaries into consecutive groups whose combine prompt
// stays within maxChars. Every group holds at least one summary.
func packGroups(texts []string, maxChars int) [][]string {
	var (
		groups [][]string
		cur    []string
	)
	for _, text := range texts {
		if len(cur) > 0 && len(summarize.CombineText(append(cur[:len(cur):len(cur)], text))) > maxChars {
			groups = append(groups, cur)
			cur = nil
		}
		cur = append(cur, text)
	}
	if len(cur) > 0 {
		groups = append(groups, cur)
	}
	return groups
}

package summarize

import (
	"strings"
)

const storeToolName = "store_summary"

const baseGuidelines = `Rules:
- Keep every technical detail: API names and signatures, parameters, configuration keys and values, defaults, limits, error cases, version notes, code snippets.
- Never add information that is not in the source text.
- Drop marketing copy, navigation leftovers, cookie notices and repetition.
- Keep the heading hierarchy of the source where it helps; write valid Markdown (ATX headings, fenced code blocks, "-" bullets).
- Be direct. No preamble, no closing remarks, no questions.`

const (
	toolOutputRule = "\n- Call the " + storeToolName + " tool exactly once with the finished Markdown."
	textOutputRule = "\n- Reply with the finished Markdown document and nothing else."
)

var instructions = map[Kind]string{
	KindPage: `You turn web documentation into compact reference notes that another language model will read as grounding context.

You receive the Markdown rendering of one web page inside <source_text> tags. Produce a shorter Markdown document that keeps everything a model would need to answer questions about the page correctly.

` + baseGuidelines,

	KindSection: `You turn web documentation into compact reference notes that another language model will read as grounding context.

You receive one part of a longer web page inside <source_text> tags. Other parts are handled separately and merged later, so summarize only this part and do not write an introduction or conclusion for the whole page.

` + baseGuidelines,

	KindCombine: `You merge reference notes that another language model will read as grounding context.

You receive several Markdown summaries inside <source_text> tags, each wrapped in a <summary> element. They come from parts of one page or from related pages. Merge them into one coherent Markdown document: keep the original order, remove duplicated material, and keep all technical detail from every summary.

` + baseGuidelines,
}

const reviewRules = `Review the draft against the source text.
- Restore any technical detail that was lost.
- Remove anything that is not supported by the source.
- Fix Markdown problems: heading levels, unclosed code fences, broken lists or tables.
If nothing needs to change, return the draft unchanged.`

// systemPrompt returns the instructions for kind. withTool selects whether
// the answer goes through the store_summary tool or plain text.
func systemPrompt(kind Kind, withTool bool) string {
	p, ok := instructions[kind]
	if !ok {
		p = instructions[KindPage]
	}
	if withTool {
		return p + toolOutputRule
	}
	return p + textOutputRule
}

func reviewPrompt(withTool bool) string {
	if withTool {
		return reviewRules + "\nCall the " + storeToolName + " tool with the corrected document."
	}
	return reviewRules + "\nReply with the corrected document only."
}

func userPrompt(in Input) string {
	var b strings.Builder
	if u := strings.TrimSpace(in.SourceURL); u != "" {
		b.WriteString("Source: ")
		b.WriteString(u)
		b.WriteString("\n")
	}
	if t := strings.TrimSpace(in.Title); t != "" {
		b.WriteString("Title: ")
		b.WriteString(t)
		b.WriteString("\n")
	}
	b.WriteString("<source_text>\n")
	b.WriteString(strings.TrimSpace(in.Text))
	b.WriteString("\n</source_text>")
	return b.String()
}

// CombineText wraps summaries in the <summary> elements the combine
// instructions expect.
func CombineText(summaries []string) string {
	var b strings.Builder
	for i, s := range summaries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("<summary>\n")
		b.WriteString(strings.TrimSpace(s))
		b.WriteString("\n</summary>")
	}
	return b.String()
}

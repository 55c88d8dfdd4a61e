package extract

import (
	"regexp"
	"strings"

	"github.com/sells-group/pagedigest/internal/model"
)

var atxHeadingRe = regexp.MustCompile(`^(#{1,6})[ \t]+(.*?)(?:[ \t]+#+)?[ \t]*$`)

// Sections splits Markdown on ATX headings that sit outside fenced code
// blocks. Each section's Markdown starts with its heading line. Text before
// the first heading becomes a level-0 section with no heading; blank
// preambles are dropped.
func Sections(markdown string) []model.Section {
	var (
		sections []model.Section
		current  = model.Section{}
		body     []string
		fence    string
	)

	flush := func() {
		text := strings.TrimSpace(strings.Join(body, "\n"))
		if text != "" {
			current.Markdown = text
			sections = append(sections, current)
		}
		body = body[:0]
	}

	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimLeft(line, " ")

		if fence != "" {
			if strings.HasPrefix(trimmed, fence) {
				fence = ""
			}
			body = append(body, line)
			continue
		}
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			fence = trimmed[:3]
			body = append(body, line)
			continue
		}

		if m := atxHeadingRe.FindStringSubmatch(line); m != nil {
			flush()
			current = model.Section{Heading: strings.TrimSpace(m[2]), Level: len(m[1])}
		}
		body = append(body, line)
	}
	flush()

	return sections
}

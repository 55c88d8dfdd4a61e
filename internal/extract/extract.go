// Package extract turns fetched HTML into simplified Markdown, keeping
// headings, paragraphs, lists, code blocks and tables and dropping page chrome.
package extract

import (
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pagedigest/internal/model"
)

// ErrNoContent is returned when nothing is left after stripping chrome.
var ErrNoContent = eris.New("extract: no content")

// Mode selects how the main content region is located.
type Mode string

const (
	// ModeDOM strips chrome elements and converts main/article/body.
	ModeDOM Mode = "dom"
	// ModeReadability runs the readability algorithm first.
	ModeReadability Mode = "readability"
)

// Options configures an Extractor.
type Options struct {
	Mode             Mode
	ExcludeSelectors []string
}

// Extractor converts pages to Markdown documents. It is safe for concurrent use.
type Extractor struct {
	mode    Mode
	exclude []string
}

// New creates an Extractor. An empty mode means ModeDOM.
func New(opts Options) *Extractor {
	mode := opts.Mode
	if mode == "" {
		mode = ModeDOM
	}
	return &Extractor{mode: mode, exclude: opts.ExcludeSelectors}
}

// Elements that never carry page content.
var chromeTags = []string{
	"script", "style", "noscript", "template", "svg", "canvas", "iframe",
	"object", "embed", "nav", "footer", "aside", "form", "input",
	"button", "select", "textarea", "dialog", "link", "meta",
}

// Class and id tokens that mark navigation and other chrome.
var chromeTokens = map[string]bool{
	"nav": true, "navbar": true, "navigation": true, "menu": true,
	"sidebar": true, "toc": true, "table-of-contents": true,
	"breadcrumb": true, "breadcrumbs": true, "footer": true,
	"site-header": true, "site-footer": true, "skip-link": true,
	"ad": true, "ads": true, "advertisement": true, "banner": true,
	"cookie": true, "cookie-banner": true, "cookie-consent": true,
	"social": true, "share": true, "comments": true, "related": true,
	"newsletter": true, "popup": true, "modal": true, "edit-this-page": true,
}

var chromeRoles = []string{
	`[role="navigation"]`, `[role="banner"]`, `[role="contentinfo"]`,
	`[role="complementary"]`, `[role="search"]`, `[hidden]`,
}

// Extract converts page HTML to a Document.
func (e *Extractor) Extract(page *model.Page) (*model.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, eris.Wrapf(err, "extract: parse %s", page.URL)
	}

	title := htmlTitle(doc)
	base := page.BaseURL()

	var markdown string
	if e.mode == ModeReadability {
		var articleTitle string
		markdown, articleTitle = e.readable(page.HTML, base)
		if title == "" {
			title = articleTitle
		}
	}
	if markdown == "" {
		e.stripChrome(doc)
		markdown = convert(mainRegion(doc), base)
	}

	if markdown == "" {
		return nil, eris.Wrapf(ErrNoContent, "extract: %s", page.URL)
	}
	if title == "" {
		title = markdownTitle(markdown)
	}

	return &model.Document{
		URL:      page.URL,
		Title:    title,
		Markdown: markdown,
	}, nil
}

// readable returns converted readability output, or "" when the article is
// empty so the caller falls back to the DOM heuristic.
func (e *Extractor) readable(html, base string) (string, string) {
	pageURL, err := url.Parse(base)
	if err != nil {
		pageURL = &url.URL{}
	}

	article, err := readability.FromReader(strings.NewReader(html), pageURL)
	if err != nil || strings.TrimSpace(article.Content) == "" {
		zap.L().Debug("extract: readability found no article, using dom",
			zap.String("url", base),
			zap.Error(err),
		)
		return "", ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return "", ""
	}
	e.stripChrome(doc)
	return convert(mainRegion(doc), base), strings.TrimSpace(article.Title)
}

func (e *Extractor) stripChrome(doc *goquery.Document) {
	doc.Find(strings.Join(chromeTags, ",")).Remove()
	doc.Find(strings.Join(chromeRoles, ",")).Remove()

	doc.Find(`header,[class~="header"],[id="header"]`).Each(func(_ int, s *goquery.Selection) {
		if siteHeader(s) {
			s.Remove()
		}
	})

	doc.Find("[class],[id]").Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "html", "body", "main", "article":
			return
		}
		if hasChromeToken(s) {
			s.Remove()
		}
	})

	for _, sel := range e.exclude {
		doc.Find(sel).Remove()
	}
}

// siteHeader reports whether a header block is page chrome. Headers inside
// the content region hold the article heading and are kept, as are page-level
// headers that carry a heading element.
func siteHeader(s *goquery.Selection) bool {
	switch goquery.NodeName(s) {
	case "html", "body", "main", "article":
		return false
	}
	if s.ParentsFiltered(contentRegions).Length() > 0 {
		return false
	}
	return s.Find("h1,h2,h3,h4,h5,h6").Length() == 0
}

const contentRegions = `main,article,[role="main"]`

func hasChromeToken(s *goquery.Selection) bool {
	if id, ok := s.Attr("id"); ok && chromeTokens[strings.ToLower(id)] {
		return true
	}
	class, _ := s.Attr("class")
	for _, c := range strings.Fields(strings.ToLower(class)) {
		if chromeTokens[c] {
			return true
		}
	}
	return false
}

// mainRegion picks the element most likely to hold the page content.
func mainRegion(doc *goquery.Document) *goquery.Selection {
	for _, sel := range []string{"main", "[role=main]"} {
		if s := doc.Find(sel).First(); hasText(s) {
			return s
		}
	}
	// Listing pages carry many articles; only a single one is the content.
	if s := doc.Find("article"); s.Length() == 1 && hasText(s) {
		return s
	}
	if s := doc.Find("body"); s.Length() > 0 {
		return s
	}
	return doc.Selection
}

func hasText(s *goquery.Selection) bool {
	return s.Length() > 0 && strings.TrimSpace(s.Text()) != ""
}

func convert(s *goquery.Selection, base string) string {
	domain := ""
	if u, err := url.Parse(base); err == nil {
		domain = u.Host
	}

	conv := md.NewConverter(domain, true, &md.Options{
		HeadingStyle:     "atx",
		CodeBlockStyle:   "fenced",
		Fence:            "```",
		BulletListMarker: "-",
		EmDelimiter:      "_",
		StrongDelimiter:  "**",
		LinkStyle:        "inlined",
	})
	conv.Use(plugin.GitHubFlavored())

	return cleanMarkdown(conv.Convert(s))
}

var excessiveLinesRe = regexp.MustCompile(`\n{3,}`)

// cleanMarkdown trims trailing whitespace and collapses runs of blank lines.
func cleanMarkdown(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	content = strings.Join(lines, "\n")
	content = excessiveLinesRe.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}

func htmlTitle(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("head title").First().Text()); t != "" {
		return t
	}
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if og, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok {
		return strings.TrimSpace(og)
	}
	return ""
}

func markdownTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

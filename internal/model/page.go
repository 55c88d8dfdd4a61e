// Package model holds the values passed between pipeline stages.
package model

import "time"

// Page is a fetched web page before extraction.
type Page struct {
	URL         string    `json:"url"`
	FinalURL    string    `json:"final_url"`
	StatusCode  int       `json:"status_code"`
	ContentType string    `json:"content_type"`
	HTML        string    `json:"html,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// BaseURL returns the URL that relative links on the page resolve against.
func (p *Page) BaseURL() string {
	if p.FinalURL != "" {
		return p.FinalURL
	}
	return p.URL
}

// Document is the Markdown representation of a page's readable content.
type Document struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Markdown string `json:"markdown"`
}

// Section is a slice of a Document that starts at a Markdown heading.
// Level is 0 for text that precedes the first heading.
type Section struct {
	Heading  string `json:"heading"`
	Level    int    `json:"level"`
	Markdown string `json:"markdown"`
}

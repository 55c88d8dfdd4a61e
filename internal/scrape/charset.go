package scrape

import (
	"mime"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// decodeBody converts body to UTF-8 using the charset declared in the
// Content-Type header. Missing or unknown charsets return body unchanged.
func decodeBody(contentType string, body []byte) string {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return string(body)
	}
	name := strings.TrimSpace(params["charset"])
	if name == "" {
		return string(body)
	}

	enc, err := htmlindex.Get(name)
	if err != nil || enc == unicode.UTF8 {
		return string(body)
	}

	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return string(body)
	}
	return string(decoded)
}

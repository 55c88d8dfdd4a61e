package scrape

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectBlock(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header http.Header
		body   string
		want   BlockType
	}{
		{"cloudflare 403 header", 403, http.Header{"Cf-Ray": {"abc"}}, "", BlockCloudflare},
		{"cloudflare 503 server", 503, http.Header{"Server": {"cloudflare"}}, "", BlockCloudflare},
		{"challenge page", 200, http.Header{}, "<title>Just a moment...</title>", BlockCloudflare},
		{"recaptcha widget", 200, http.Header{}, `<div class="g-recaptcha"></div>`, BlockCaptcha},
		{"js shell", 200, http.Header{}, "<html><noscript>Enable JavaScript to continue</noscript></html>", BlockJSShell},
		{"app root shell", 200, http.Header{}, `<html><body><div id="root">Loading...</div><noscript>You need to enable JavaScript to run this app.</noscript><script src="/app.js"></script></body></html>`, BlockJSShell},
		{"static page with noscript hint", 200, http.Header{}, "<noscript>Search needs JavaScript.</noscript><h1>CLI flags</h1><p>--verbose prints more output.</p>", BlockNone},
		{"plain 403", 403, http.Header{}, "<p>forbidden</p>", BlockNone},
		{"normal page", 200, http.Header{}, "<h1>Docs</h1><p>Hello</p>", BlockNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{StatusCode: tt.status, Header: tt.header}
			blocked, kind := DetectBlock(resp, []byte(tt.body))
			assert.Equal(t, tt.want != BlockNone, blocked)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestDetectBlock_LargeDocMentioningCaptcha(t *testing.T) {
	body := "<h1>reCAPTCHA integration guide</h1><p>Add the g-recaptcha div.</p>" +
		strings.Repeat("<p>More documentation text.</p>", 1000)
	resp := &http.Response{StatusCode: 200, Header: http.Header{}}

	blocked, kind := DetectBlock(resp, []byte(body))
	assert.False(t, blocked)
	assert.Equal(t, BlockNone, kind)
}

func TestDetectBlock_NilResponse(t *testing.T) {
	blocked, kind := DetectBlock(nil, []byte("anything"))
	assert.False(t, blocked)
	assert.Equal(t, BlockNone, kind)
}

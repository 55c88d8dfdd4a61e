// Package scrape fetches web pages over HTTP.
package scrape

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pagedigest/internal/model"
	"github.com/sells-group/pagedigest/internal/resilience"
)

// ErrBlocked is returned when the server answers with an anti-bot page.
var ErrBlocked = eris.New("scrape: blocked by anti-bot protection")

// ErrBodyTooLarge is returned when a response body exceeds Options.MaxBodyBytes.
var ErrBodyTooLarge = eris.New("scrape: response body exceeds size limit")

// Fetcher retrieves the raw HTML of a URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*model.Page, error)
}

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("scrape: %s returned status %d", e.URL, e.StatusCode)
}

// HTTPStatus lets the retry policy classify the response.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// Options configures an HTTPFetcher. Zero values fall back to defaults.
type Options struct {
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64
	MaxAttempts  int
	Client       *http.Client
}

const (
	defaultUserAgent    = "Mozilla/5.0 (compatible; pagedigest/1.0)"
	defaultTimeout      = 30 * time.Second
	defaultMaxBodyBytes = 10 * 1024 * 1024
	acceptHeader        = "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8"
)

// HTTPFetcher fetches pages with net/http, retrying transient failures.
type HTTPFetcher struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
	retry        resilience.Policy
}

// NewHTTPFetcher creates an HTTPFetcher from opts.
func NewHTTPFetcher(opts Options) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}

	retry := resilience.DefaultPolicy().WithAttempts(opts.MaxAttempts)
	retry.OnRetry = resilience.LogRetries("fetch")

	return &HTTPFetcher{
		client:       client,
		userAgent:    opts.UserAgent,
		maxBodyBytes: opts.MaxBodyBytes,
		retry:        retry,
	}
}

// Fetch performs a GET on rawURL and returns the decoded HTML body.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*model.Page, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}

	page, err := resilience.DoVal(ctx, f.retry, func(ctx context.Context) (*model.Page, error) {
		return f.fetchOnce(ctx, rawURL)
	})
	if err != nil {
		return nil, err
	}

	zap.L().Debug("scrape: fetched page",
		zap.String("url", rawURL),
		zap.String("final_url", page.FinalURL),
		zap.Int("status", page.StatusCode),
		zap.Int("bytes", len(page.HTML)),
	)
	return page, nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, rawURL string) (*model.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: create request")
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: fetch %s", rawURL)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes+1))
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: read body %s", rawURL)
	}

	if blocked, kind := DetectBlock(resp, body); blocked {
		return nil, eris.Wrapf(ErrBlocked, "scrape: %s (%s)", rawURL, kind)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	if int64(len(body)) > f.maxBodyBytes {
		zap.L().Warn("scrape: page over size limit",
			zap.String("url", rawURL),
			zap.Int64("max_body_bytes", f.maxBodyBytes),
		)
		return nil, eris.Wrapf(ErrBodyTooLarge, "scrape: %s over %d bytes", rawURL, f.maxBodyBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	return &model.Page{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		HTML:        decodeBody(contentType, body),
		FetchedAt:   time.Now().UTC(),
	}, nil
}

// ValidateURL accepts only absolute http and https URLs with a host.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return eris.Wrapf(err, "scrape: parse url %q", rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return eris.Errorf("scrape: unsupported url scheme %q in %q", u.Scheme, rawURL)
	}
	if u.Host == "" {
		return eris.Errorf("scrape: url %q has no host", rawURL)
	}
	return nil
}

// Package integration handles external service interactions
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/abelzeko/allerta-bot/internal/entities"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

// desktopUserAgents are rotated per request, some upstream pages refuse
// obvious bots
var desktopUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

// FetcherOptions configures a Fetcher
type FetcherOptions struct {
	Timeout   time.Duration
	Retries   int
	RetryWait time.Duration
	// RatePerSecond limits requests per upstream host, 0 disables the limit.
	RatePerSecond float64
	UserAgents    []string
	// ScraperAPIKey routes every request through ScraperAPI when set.
	ScraperAPIKey string
	ScraperAPIURL string
	ProxyURL      string
}

// Fetcher is the shared HTTP client of all scrapers
type Fetcher struct {
	client *resty.Client
	opts   FetcherOptions

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewFetcher creates a fetcher with retries on transport errors, 5xx and 429
func NewFetcher(opts FetcherOptions) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = 5 * time.Second
	}
	if len(opts.UserAgents) == 0 {
		opts.UserAgents = desktopUserAgents
	}
	if opts.ScraperAPIURL == "" {
		opts.ScraperAPIURL = "http://api.scraperapi.com/"
	}

	client := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(opts.RetryWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r != nil && (r.StatusCode() >= 500 || r.StatusCode() == 429)
		})
	if opts.ProxyURL != "" {
		client.SetProxy(opts.ProxyURL)
	}

	return &Fetcher{
		client:   client,
		opts:     opts,
		limiters: map[string]*rate.Limiter{},
	}
}

// Response is a successful upstream response
type Response struct {
	Body        []byte
	ContentType string
	URL         string
}

// Get fetches rawURL with optional extra headers
func (f *Fetcher) Get(ctx context.Context, rawURL string, headers map[string]string) (*Response, error) {
	return f.do(ctx, resty.MethodGet, rawURL, headers, nil)
}

// PostForm submits form to rawURL
func (f *Fetcher) PostForm(ctx context.Context, rawURL string, form map[string]string) (*Response, error) {
	return f.do(ctx, resty.MethodPost, rawURL, nil, form)
}

// GetJSON fetches rawURL and decodes the JSON body into out
func (f *Fetcher) GetJSON(ctx context.Context, rawURL string, out any) error {
	resp, err := f.Get(ctx, rawURL, map[string]string{"Accept": "application/json"})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return &entities.ParseError{Source: rawURL, Reason: "invalid json", Err: err}
	}
	return nil
}

// GetDocument fetches an HTML page, converting legacy charsets to UTF-8
func (f *Fetcher) GetDocument(ctx context.Context, rawURL string) (*goquery.Document, error) {
	resp, err := f.Get(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return resp.Document()
}

// Document parses the body as HTML
func (r *Response) Document() (*goquery.Document, error) {
	reader, err := charset.NewReader(bytes.NewReader(r.Body), r.ContentType)
	if err != nil {
		return nil, &entities.ParseError{Source: r.URL, Reason: "unknown charset", Err: err}
	}
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, &entities.ParseError{Source: r.URL, Reason: "invalid html", Err: err}
	}
	return doc, nil
}

func (f *Fetcher) do(ctx context.Context, method, rawURL string, headers, form map[string]string) (*Response, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, &entities.FetchError{URL: rawURL, Err: err}
	}
	if err := f.wait(ctx, target.Host); err != nil {
		return nil, &entities.FetchError{URL: rawURL, Err: err}
	}

	req := f.client.R().
		SetContext(ctx).
		SetHeader("User-Agent", f.opts.UserAgents[rand.IntN(len(f.opts.UserAgents))]).
		SetHeaders(headers)
	if form != nil {
		req.SetFormData(form)
	}

	start := time.Now()
	resp, err := req.Execute(method, f.requestURL(rawURL))
	if err != nil {
		slog.Debug("fetch failed", "url", rawURL, "error", err)
		return nil, &entities.FetchError{URL: rawURL, Err: err}
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, &entities.FetchError{URL: rawURL, StatusCode: resp.StatusCode()}
	}
	slog.Debug("fetched", "url", rawURL, "status", resp.StatusCode(), "bytes", len(resp.Body()), "took", time.Since(start))

	return &Response{
		Body:        resp.Body(),
		ContentType: resp.Header().Get("Content-Type"),
		URL:         rawURL,
	}, nil
}

// requestURL rewrites rawURL through ScraperAPI when a key is configured
func (f *Fetcher) requestURL(rawURL string) string {
	if f.opts.ScraperAPIKey == "" {
		return rawURL
	}
	q := url.Values{}
	q.Set("api_key", f.opts.ScraperAPIKey)
	q.Set("url", rawURL)
	return fmt.Sprintf("%s?%s", f.opts.ScraperAPIURL, q.Encode())
}

func (f *Fetcher) wait(ctx context.Context, host string) error {
	if f.opts.RatePerSecond <= 0 {
		return nil
	}
	f.mu.Lock()
	l, ok := f.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(f.opts.RatePerSecond), 1)
		f.limiters[host] = l
	}
	f.mu.Unlock()
	return l.Wait(ctx)
}

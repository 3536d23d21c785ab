package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/corpix/uarand"
	"github.com/gocolly/colly/v2"
)

// ErrHTTPStatus marks a fetch that got a response outside 2xx.
var ErrHTTPStatus = errors.New("unexpected HTTP status")

// Fetcher downloads a page body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

func newFetcher(cfg Config) (Fetcher, error) {
	ua := userAgentFunc(cfg.UserAgent)
	switch cfg.Engine {
	case "", EngineHTTP:
		return &httpFetcher{
			client:    &http.Client{Timeout: cfg.Timeout},
			userAgent: ua,
		}, nil
	case EngineColly:
		return &collyFetcher{timeout: cfg.Timeout, userAgent: ua}, nil
	}
	return nil, fmt.Errorf("unknown crawler engine %q", cfg.Engine)
}

func userAgentFunc(ua string) func() string {
	switch ua {
	case "":
		return func() string { return DefaultUserAgent }
	case RandomUserAgent:
		return uarand.GetRandom
	}
	return func() string { return ua }
}

func statusError(code int) error {
	return fmt.Errorf("%w: %d", ErrHTTPStatus, code)
}

type httpFetcher struct {
	client    *http.Client
	userAgent func() string
}

func (f *httpFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent())

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", statusError(resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}
	return string(body), nil
}

// collyFetcher runs every fetch on a fresh synchronous collector, so
// callbacks never leak between requests.
type collyFetcher struct {
	timeout   time.Duration
	userAgent func() string
}

func (f *collyFetcher) Fetch(ctx context.Context, url string) (string, error) {
	c := colly.NewCollector(
		colly.StdlibContext(ctx),
		colly.ParseHTTPErrorResponse(),
	)
	c.SetRequestTimeout(f.timeout)

	var (
		body   string
		status int
	)
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", f.userAgent())
	})
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = string(r.Body)
	})

	if err := c.Visit(url); err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", statusError(status)
	}
	return body, nil
}

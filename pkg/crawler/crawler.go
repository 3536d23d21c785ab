package crawler

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"openproxy/internal/logger"
	"openproxy/pkg/proxy"
)

// Result is the outcome of crawling one source. A failed source keeps its
// error text and carries no proxies.
type Result struct {
	Source  string        `json:"source" yaml:"source"`
	Proxies []proxy.Proxy `json:"proxies,omitempty" yaml:"proxies,omitempty"`
	Error   string        `json:"error,omitempty" yaml:"error,omitempty"`
}

func (r Result) Success() bool {
	return r.Error == ""
}

type Crawler struct {
	cfg     Config
	fetcher Fetcher
	limiter *rate.Limiter
	log     *logger.Logger
}

// New builds a crawler for cfg. Zero Timeout and empty UserAgent fall back
// to the defaults.
func New(cfg Config) (*Crawler, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("rate limit must not be negative, got %v", cfg.RateLimit)
	}

	fetcher, err := newFetcher(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build crawler: %w", err)
	}
	return newWithFetcher(cfg, fetcher), nil
}

func newWithFetcher(cfg Config, fetcher Fetcher) *Crawler {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return &Crawler{
		cfg:     cfg,
		fetcher: fetcher,
		limiter: limiter,
		log:     logger.New("crawler"),
	}
}

func (c *Crawler) Config() Config {
	return c.cfg
}

// Fetch returns the body of url. Transport failures and non-2xx responses
// are errors.
func (c *Crawler) Fetch(ctx context.Context, url string) (string, error) {
	return c.fetcher.Fetch(ctx, url)
}

func (c *Crawler) CrawlURL(ctx context.Context, url string, typ proxy.Type) ([]proxy.Proxy, error) {
	body, err := c.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return Extract(body, typ), nil
}

// CrawlURLDefault crawls url with the configured default proxy type.
func (c *Crawler) CrawlURLDefault(ctx context.Context, url string) ([]proxy.Proxy, error) {
	return c.CrawlURL(ctx, url, c.cfg.DefaultType)
}

func (c *Crawler) CrawlSource(ctx context.Context, source Source) ([]proxy.Proxy, error) {
	return c.CrawlURL(ctx, source.URL, source.Type)
}

// CrawlURLsWithResults crawls each target in turn. A failing target is
// recorded in its Result and does not stop the rest.
func (c *Crawler) CrawlURLsWithResults(ctx context.Context, targets []Target) []Result {
	sources := make([]Source, len(targets))
	for i, t := range targets {
		sources[i] = NewSource(t.URL, t.URL, t.Type)
	}
	return c.CrawlSourcesWithResults(ctx, sources)
}

// CrawlSourcesWithResults crawls each source in turn, one result per
// source in input order.
func (c *Crawler) CrawlSourcesWithResults(ctx context.Context, sources []Source) []Result {
	log := c.log.WithID(logger.GenerateID())
	results := make([]Result, 0, len(sources))

	for _, source := range sources {
		results = append(results, c.crawlOne(ctx, log, source))
	}

	ok := 0
	for _, r := range results {
		if r.Success() {
			ok++
		}
	}
	log.Info().Int("sources", len(sources)).Int("succeeded", ok).Int("proxies", len(Merge(results))).Msg("crawl finished")
	return results
}

func (c *Crawler) crawlOne(ctx context.Context, log *logger.Logger, source Source) Result {
	if err := c.limiter.Wait(ctx); err != nil {
		return Result{Source: source.Name, Error: err.Error()}
	}

	proxies, err := c.CrawlSource(ctx, source)
	if err != nil {
		log.Warn().Err(err).Str("source", source.Name).Msg("source failed")
		return Result{Source: source.Name, Error: err.Error()}
	}

	log.Debug().Str("source", source.Name).Int("count", len(proxies)).Msg("source crawled")
	return Result{Source: source.Name, Proxies: proxies}
}

// Merge unions the proxies of all successful results, deduplicated by
// host:port.
func Merge(results []Result) []proxy.Proxy {
	var all []proxy.Proxy
	for _, r := range results {
		if r.Success() {
			all = append(all, r.Proxies...)
		}
	}
	return proxy.Dedup(all)
}

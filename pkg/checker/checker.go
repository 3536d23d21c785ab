package checker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"openproxy/internal/logger"
	"openproxy/pkg/geo"
	"openproxy/pkg/proxy"
)

// Locator resolves the location of a literal IP host. *geo.Locator
// implements it.
type Locator interface {
	Lookup(host string) (geo.Location, error)
}

// Checker probes proxies against a test URL. Every probe runs in its own
// goroutine; a weighted semaphore shared by all batches on the same
// Checker caps how many execute at once.
type Checker struct {
	cfg     Config
	locator Locator
	closer  io.Closer
	sem     *semaphore.Weighted
	log     *logger.Logger
}

// New builds a Checker. When cfg.GeoDBPath is set the database is opened
// here, and a failure to open it is returned.
func New(cfg Config) (*Checker, error) {
	cfg = cfg.normalized()
	if cfg.GeoDBPath == "" {
		return NewWithLocator(cfg, nil), nil
	}

	locator, err := geo.Open(cfg.GeoDBPath)
	if err != nil {
		return nil, err
	}
	c := NewWithLocator(cfg, locator)
	c.closer = locator
	return c, nil
}

// NewWithLocator builds a Checker that enriches working results through
// locator. A nil locator disables enrichment.
func NewWithLocator(cfg Config, locator Locator) *Checker {
	cfg = cfg.normalized()
	return &Checker{
		cfg:     cfg,
		locator: locator,
		sem:     semaphore.NewWeighted(int64(cfg.Concurrency)),
		log:     logger.New("checker"),
	}
}

func (c *Checker) Config() Config {
	return c.cfg
}

// Close releases the geo database opened by New, if any.
func (c *Checker) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

// CheckProxy runs a single probe. It never returns an error: every outcome
// is encoded in the Result.
func (c *Checker) CheckProxy(ctx context.Context, p proxy.Proxy) Result {
	transport, err := newTransport(p, c.cfg.Timeout)
	if err != nil {
		return Failed(p, err.Error())
	}
	defer transport.CloseIdleConnections()

	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.cfg.TestURL, nil)
	if err != nil {
		return Failed(p, err.Error())
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "text/plain, application/json")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(probeCtx.Err(), context.DeadlineExceeded) || isTimeoutError(err) {
			return TimedOut(p)
		}
		return Failed(p, err.Error())
	}
	resp.Body.Close()
	latency := time.Since(start).Milliseconds()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Failed(p, fmt.Sprintf("HTTP status: %d", resp.StatusCode))
	}
	return Working(p, latency, c.locate(p))
}

// locate never fails the probe; a lookup error only drops the geo data.
func (c *Checker) locate(p proxy.Proxy) *geo.Location {
	if c.locator == nil {
		return nil
	}
	loc, err := c.locator.Lookup(p.Host)
	if err != nil {
		c.log.Debug().Err(err).Str("proxy", p.Address()).Msg("geo lookup failed")
		return nil
	}
	return &loc
}

// CheckProxiesStream probes every proxy and delivers each result as soon
// as its probe finishes. The channel is closed after the last result.
// A probe goroutine is only started once the semaphore admits it, so at
// most Concurrency probe goroutines exist per checker.
func (c *Checker) CheckProxiesStream(ctx context.Context, proxies []proxy.Proxy) <-chan Result {
	out := make(chan Result, len(proxies))

	go func() {
		var wg sync.WaitGroup
		for _, p := range proxies {
			if err := c.sem.Acquire(ctx, 1); err != nil {
				out <- Failed(p, err.Error())
				continue
			}
			wg.Add(1)
			go func(p proxy.Proxy) {
				defer wg.Done()
				defer c.sem.Release(1)
				out <- c.CheckProxy(ctx, p)
			}(p)
		}
		wg.Wait()
		close(out)
	}()
	return out
}

// CheckProxies probes the whole batch and returns results in completion order.
func (c *Checker) CheckProxies(ctx context.Context, proxies []proxy.Proxy) []Result {
	if len(proxies) == 0 {
		return nil
	}

	log := c.log.WithID(logger.GenerateID())
	log.Debug().Int("count", len(proxies)).Int("concurrency", c.cfg.Concurrency).Msg("starting check batch")

	results := make([]Result, 0, len(proxies))
	for r := range c.CheckProxiesStream(ctx, proxies) {
		results = append(results, r)
	}

	groups := GroupByStatus(results)
	log.Info().
		Int("working", len(groups[StatusWorking])).
		Int("failed", len(groups[StatusFailed])).
		Int("timeout", len(groups[StatusTimeout])).
		Int("total", len(results)).
		Msg("check batch finished")
	return results
}

// CheckAndSeparate runs a batch and splits it into working results and
// everything else, each in completion order.
func (c *Checker) CheckAndSeparate(ctx context.Context, proxies []proxy.Proxy) (working, rest []Result) {
	for _, r := range c.CheckProxies(ctx, proxies) {
		if r.IsWorking() {
			working = append(working, r)
		} else {
			rest = append(rest, r)
		}
	}
	return working, rest
}

func isTimeoutError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
